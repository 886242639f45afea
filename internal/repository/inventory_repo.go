package repository

import (
	"context"
	"errors"
	"time"

	"dukapos/internal/dto"
	"dukapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientStock is returned by the guarded decrement when the row does
// not hold the requested quantity. Callers inside a transaction must abort on
// it — the guard is what keeps Inventory.Quantity non-negative under
// concurrent writes.
var ErrInsufficientStock = errors.New("insufficient stock")

// InventoryRepository is the data access contract for branch stock ledgers.
// The *Tx methods take the transaction handle explicitly, following the rule
// that multi-row stock moves always happen inside one transaction opened by
// the service layer.
type InventoryRepository interface {
	Find(ctx context.Context, branchID, productID uuid.UUID) (*model.Inventory, error)
	List(ctx context.Context, filter dto.InventoryFilter) ([]model.Inventory, error)
	ListLowStock(ctx context.Context) ([]model.Inventory, error)
	ListInStockByBranch(ctx context.Context, branchID uuid.UUID) ([]model.Inventory, error)

	// FindForUpdateTx loads a row with a FOR UPDATE lock, serialising
	// concurrent restocks/sales touching the same (branch, product) pair.
	FindForUpdateTx(tx *gorm.DB, branchID, productID uuid.UUID) (*model.Inventory, error)

	// DecrementTx applies a guarded decrement: it only writes when the row
	// still holds at least qty units and reports ErrInsufficientStock
	// otherwise.
	DecrementTx(tx *gorm.DB, branchID, productID uuid.UUID, qty int) error

	// UpsertIncrementTx increments a row, creating it on first restock, and
	// stamps LastRestocked.
	UpsertIncrementTx(tx *gorm.DB, branchID, productID uuid.UUID, qty int) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type inventoryRepo struct{ db *gorm.DB }

func NewInventoryRepository(db *gorm.DB) InventoryRepository { return &inventoryRepo{db: db} }

func (r *inventoryRepo) Find(ctx context.Context, branchID, productID uuid.UUID) (*model.Inventory, error) {
	var inv model.Inventory
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND product_id = ?", branchID, productID).
		First(&inv).Error
	return &inv, err
}

func (r *inventoryRepo) List(ctx context.Context, filter dto.InventoryFilter) ([]model.Inventory, error) {
	var rows []model.Inventory
	q := r.db.WithContext(ctx).Preload("Branch").Preload("Product").
		Joins("JOIN branches ON branches.id = inventory.branch_id").
		Joins("JOIN products ON products.id = inventory.product_id")

	if filter.BranchID != "" {
		q = q.Where("inventory.branch_id = ?", filter.BranchID)
	}
	if filter.LowStock {
		q = q.Where("inventory.quantity < inventory.low_stock_threshold")
	}

	err := q.Order("branches.name ASC, products.name ASC").Find(&rows).Error
	return rows, err
}

func (r *inventoryRepo) ListLowStock(ctx context.Context) ([]model.Inventory, error) {
	var rows []model.Inventory
	err := r.db.WithContext(ctx).Preload("Branch").Preload("Product").
		Where("quantity < low_stock_threshold").
		Order("quantity ASC").
		Find(&rows).Error
	return rows, err
}

func (r *inventoryRepo) ListInStockByBranch(ctx context.Context, branchID uuid.UUID) ([]model.Inventory, error) {
	var rows []model.Inventory
	err := r.db.WithContext(ctx).Preload("Product").
		Joins("JOIN products ON products.id = inventory.product_id").
		Where("inventory.branch_id = ? AND inventory.quantity > 0", branchID).
		Order("products.name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *inventoryRepo) FindForUpdateTx(tx *gorm.DB, branchID, productID uuid.UUID) (*model.Inventory, error) {
	var inv model.Inventory
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ? AND product_id = ?", branchID, productID).
		First(&inv).Error
	return &inv, err
}

func (r *inventoryRepo) DecrementTx(tx *gorm.DB, branchID, productID uuid.UUID, qty int) error {
	res := tx.Model(&model.Inventory{}).
		Where("branch_id = ? AND product_id = ? AND quantity >= ?", branchID, productID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *inventoryRepo) UpsertIncrementTx(tx *gorm.DB, branchID, productID uuid.UUID, qty int) error {
	now := time.Now()
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "branch_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":       gorm.Expr("inventory.quantity + ?", qty),
			"last_restocked": now,
			"updated_at":     now,
		}),
	}).Create(&model.Inventory{
		BranchID:      branchID,
		ProductID:     productID,
		Quantity:      qty,
		LastRestocked: &now,
	}).Error
}

func (r *inventoryRepo) DB() *gorm.DB { return r.db }
