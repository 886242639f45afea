package model

import (
	"time"

	"github.com/google/uuid"
)

// Inventory is one branch's stock ledger for one product. Exactly one row per
// (branch, product) pair; created at seed time or on first restock, never
// deleted. Quantity is only ever mutated through guarded UPDATEs inside a
// transaction, so it can never go negative.
type Inventory struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BranchID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_branch_product"`
	ProductID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_branch_product"`
	Quantity          int       `gorm:"not null;default:0"`
	LowStockThreshold int       `gorm:"not null;default:10"`
	LastRestocked     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Branch  *Branch  `gorm:"foreignKey:BranchID"`
	Product *Product `gorm:"foreignKey:ProductID"`
}

func (Inventory) TableName() string { return "inventory" }

// IsLowStock reports whether the row sits below its alert threshold.
func (i Inventory) IsLowStock() bool { return i.Quantity < i.LowStockThreshold }
