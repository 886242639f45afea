package dto

import "github.com/shopspring/decimal"

// InventoryFilter is bound from the query string of GET /api/inventory.
type InventoryFilter struct {
	BranchID string `form:"branch_id" validate:"omitempty,uuid"`
	LowStock bool   `form:"low_stock"`
}

type InventoryRow struct {
	ID                string          `json:"id"`
	Branch            string          `json:"branch"`
	IsHQ              bool            `json:"is_hq"`
	Product           string          `json:"product"`
	Price             decimal.Decimal `json:"price"`
	Quantity          int             `json:"quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	IsLowStock        bool            `json:"is_low_stock"`
	LastRestocked     *string         `json:"last_restocked"`
}

type LowStockRow struct {
	Branch       string `json:"branch"`
	Product      string `json:"product"`
	CurrentStock int    `json:"current_stock"`
	Threshold    int    `json:"threshold"`
	Deficit      int    `json:"deficit"`
}

// RestockLine is one (product, quantity) pair of a transfer. Quantity must be
// strictly positive — zero or negative lines reject the whole request.
type RestockLine struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"   validate:"required,gt=0"`
}

type RestockRequest struct {
	BranchID string        `json:"branch_id" validate:"required,uuid"`
	Products []RestockLine `json:"products"  validate:"required,min=1,dive"`
	Notes    *string       `json:"notes"     validate:"omitempty,max=500"`
}

type RestockItemResponse struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type RestockResponse struct {
	Message     string                `json:"message"`
	LogID       string                `json:"log_id"`
	FromBranch  string                `json:"from_branch"`
	ToBranch    string                `json:"to_branch"`
	Items       []RestockItemResponse `json:"items"`
	PerformedAt string                `json:"performed_at"`
}

// HqRestockLine additionally carries the optional supplier unit cost.
type HqRestockLine struct {
	ProductID string           `json:"product_id" validate:"required,uuid"`
	Quantity  int              `json:"quantity"   validate:"required,gt=0"`
	UnitCost  *decimal.Decimal `json:"unit_cost"`
}

type HqRestockRequest struct {
	Products     []HqRestockLine `json:"products"      validate:"required,min=1,dive"`
	SupplierName *string         `json:"supplier_name" validate:"omitempty,max=200"`
	ReferenceNo  *string         `json:"reference_no"  validate:"omitempty,max=100"`
	Notes        *string         `json:"notes"         validate:"omitempty,max=500"`
}

type HqRestockResponse struct {
	Message     string                `json:"message"`
	LogID       string                `json:"log_id"`
	Branch      string                `json:"branch"`
	Items       []RestockItemResponse `json:"items"`
	PerformedAt string                `json:"performed_at"`
}

type RestockLogRow struct {
	ID          string                `json:"id"`
	FromBranch  string                `json:"from_branch"`
	ToBranch    string                `json:"to_branch"`
	Items       []RestockItemResponse `json:"items"`
	Notes       *string               `json:"notes"`
	PerformedAt string                `json:"performed_at"`
}

type BranchResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	IsHQ     bool   `json:"is_hq"`
}

type ProductResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description *string         `json:"description"`
}
