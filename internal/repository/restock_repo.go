package repository

import (
	"context"

	"dukapos/internal/model"

	"gorm.io/gorm"
)

type RestockRepository interface {
	CreateLogTx(tx *gorm.DB, log *model.RestockLog) error
	CreateHqLogTx(tx *gorm.DB, log *model.HqRestockLog) error
	ListLogs(ctx context.Context, limit int) ([]model.RestockLog, error)
}

type restockRepo struct{ db *gorm.DB }

func NewRestockRepository(db *gorm.DB) RestockRepository { return &restockRepo{db: db} }

func (r *restockRepo) CreateLogTx(tx *gorm.DB, log *model.RestockLog) error {
	return tx.Create(log).Error
}

func (r *restockRepo) CreateHqLogTx(tx *gorm.DB, log *model.HqRestockLog) error {
	return tx.Create(log).Error
}

func (r *restockRepo) ListLogs(ctx context.Context, limit int) ([]model.RestockLog, error) {
	var logs []model.RestockLog
	err := r.db.WithContext(ctx).
		Preload("FromBranch").
		Preload("ToBranch").
		Preload("Items").
		Preload("Items.Product").
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
