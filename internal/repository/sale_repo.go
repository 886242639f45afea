package repository

import (
	"context"

	"dukapos/internal/model"

	"gorm.io/gorm"
)

type SaleRepository interface {
	CreateTx(tx *gorm.DB, sale *model.Sale) error
	FindByMpesaReference(ctx context.Context, ref string) (*model.Sale, error)
	ListRecent(ctx context.Context, limit int) ([]model.Sale, error)
	DB() *gorm.DB
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) CreateTx(tx *gorm.DB, sale *model.Sale) error {
	return tx.Create(sale).Error
}

func (r *saleRepo) FindByMpesaReference(ctx context.Context, ref string) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Preload("Branch").
		Preload("Items").
		Preload("Items.Product").
		Where("mpesa_reference = ?", ref).
		First(&s).Error
	return &s, err
}

func (r *saleRepo) ListRecent(ctx context.Context, limit int) ([]model.Sale, error) {
	var sales []model.Sale
	err := r.db.WithContext(ctx).
		Preload("Branch").
		Preload("Items").
		Preload("Items.Product").
		Order("transaction_date DESC").
		Limit(limit).
		Find(&sales).Error
	return sales, err
}

func (r *saleRepo) DB() *gorm.DB { return r.db }
