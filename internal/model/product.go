package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog entry shared by every branch. Per-branch stock lives
// in Inventory; Price is the current list price — sales snapshot it into
// SaleItem.PriceAtSale so historical reports survive price changes.
type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string          `gorm:"uniqueIndex;not null"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
