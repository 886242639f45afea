package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentAttempt states. initiated → pending happens as soon as the STK push
// is accepted by the gateway; confirmed, failed and timeout are terminal.
// failed means the gateway gave a definite no (cancelled PIN prompt,
// insufficient funds); timeout means the reconciler gave up waiting — the two
// are deliberately distinct outcomes.
const (
	PaymentInitiated = "initiated"
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentFailed    = "failed"
	PaymentTimeout   = "timeout"
)

// PaymentAttempt is the persisted state of one STK push checkout. The cart is
// copied into PaymentAttemptItem rows at initiate time, so settlement builds
// the Sale from what the customer was actually charged for — the confirm
// endpoint never trusts a client-supplied cart. The unique CheckoutRequestID
// plus a row lock in the settle transaction make confirmation idempotent.
type PaymentAttempt struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BranchID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	TransactionRef    string          `gorm:"uniqueIndex;not null"`
	CheckoutRequestID string          `gorm:"uniqueIndex;not null"`
	MerchantRequestID string          `gorm:"not null"`
	PhoneNumber       string          `gorm:"not null"`
	CustomerEmail     *string
	Amount            decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Status            string          `gorm:"type:varchar(20);not null;default:'initiated';index"`
	ResultDesc        *string
	MpesaReceipt      *string    `gorm:"uniqueIndex"`
	SaleID            *uuid.UUID `gorm:"type:uuid"`
	SettledAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Branch *Branch              `gorm:"foreignKey:BranchID"`
	Items  []PaymentAttemptItem `gorm:"foreignKey:AttemptID"`
}

// Settled reports whether the attempt reached a terminal state.
func (a PaymentAttempt) Settled() bool {
	return a.Status == PaymentConfirmed || a.Status == PaymentFailed || a.Status == PaymentTimeout
}

// PaymentAttemptItem is one cart line frozen at initiate time, with the same
// price snapshot semantics as SaleItem.
type PaymentAttemptItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AttemptID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity    int             `gorm:"not null"`
	PriceAtSale decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}
