package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RestockLog records one HQ → branch stock transfer. Append-only audit trail:
// written in the same transaction as the inventory moves it describes.
type RestockLog struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FromBranchID  uuid.UUID `gorm:"type:uuid;not null;index"`
	ToBranchID    uuid.UUID `gorm:"type:uuid;not null;index"`
	PerformedByID uuid.UUID `gorm:"type:uuid;not null"`
	Notes         *string
	CreatedAt     time.Time

	FromBranch *Branch       `gorm:"foreignKey:FromBranchID"`
	ToBranch   *Branch       `gorm:"foreignKey:ToBranchID"`
	Items      []RestockItem `gorm:"foreignKey:LogID"`
}

type RestockItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LogID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"type:uuid;not null"`
	Quantity  int       `gorm:"not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

// HqRestockLog records supplier deliveries into HQ. Pure inbound: there is no
// source-side deduction, so unlike RestockLog it carries supplier metadata
// instead of a from-branch.
type HqRestockLog struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	HqBranchID    uuid.UUID `gorm:"type:uuid;not null;index"`
	PerformedByID uuid.UUID `gorm:"type:uuid;not null"`
	SupplierName  *string
	ReferenceNo   *string
	Notes         *string
	CreatedAt     time.Time

	Items []HqRestockItem `gorm:"foreignKey:LogID"`
}

func (HqRestockLog) TableName() string { return "hq_restock_logs" }

type HqRestockItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LogID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"type:uuid;not null"`
	Quantity  int       `gorm:"not null"`
	UnitCost  *decimal.Decimal `gorm:"type:decimal(10,2)"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

func (HqRestockItem) TableName() string { return "hq_restock_items" }
