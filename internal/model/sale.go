package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is a settled POS transaction. Created atomically with its items and
// the matching inventory decrements; immutable afterwards. MpesaReference is
// the gateway receipt number — its unique index is what makes retried payment
// confirmations idempotent at the storage layer.
type Sale struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BranchID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	CustomerEmail   *string
	TotalAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PaymentMethod   string          `gorm:"not null;default:'MPESA'"`
	MpesaReference  string          `gorm:"uniqueIndex;not null"`
	TransactionDate time.Time       `gorm:"not null;index"`
	CreatedAt       time.Time

	Branch *Branch    `gorm:"foreignKey:BranchID"`
	Items  []SaleItem `gorm:"foreignKey:SaleID"`
}

// SaleItem is one cart line of a sale. PriceAtSale snapshots the product
// price at settlement; Subtotal = PriceAtSale × Quantity, and the sum of
// subtotals equals Sale.TotalAmount.
type SaleItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity    int             `gorm:"not null"`
	PriceAtSale decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}
