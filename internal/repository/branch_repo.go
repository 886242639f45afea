package repository

import (
	"context"

	"dukapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BranchRepository defines the data access contract for branches.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via stubs.
type BranchRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Branch, error)
	FindHQ(ctx context.Context) (*model.Branch, error)
	List(ctx context.Context) ([]model.Branch, error)
}

type branchRepo struct{ db *gorm.DB }

func NewBranchRepository(db *gorm.DB) BranchRepository { return &branchRepo{db: db} }

func (r *branchRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Branch, error) {
	var b model.Branch
	err := r.db.WithContext(ctx).First(&b, id).Error
	return &b, err
}

func (r *branchRepo) FindHQ(ctx context.Context) (*model.Branch, error) {
	var b model.Branch
	err := r.db.WithContext(ctx).Where("is_hq = true").First(&b).Error
	return &b, err
}

func (r *branchRepo) List(ctx context.Context) ([]model.Branch, error) {
	var branches []model.Branch
	err := r.db.WithContext(ctx).Order("name ASC").Find(&branches).Error
	return branches, err
}
