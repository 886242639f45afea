package dto

import "github.com/shopspring/decimal"

type CartLine struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"   validate:"required,gt=0"`
}

type PreviewRequest struct {
	BranchID string     `json:"branch_id" validate:"required,uuid"`
	Items    []CartLine `json:"items"     validate:"required,min=1,dive"`
}

type PreviewLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type PreviewResponse struct {
	Branch BranchResponse  `json:"branch"`
	Items  []PreviewLine   `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

type InitiatePaymentRequest struct {
	BranchID      string     `json:"branch_id"      validate:"required,uuid"`
	PhoneNumber   string     `json:"phone_number"   validate:"required,min=9,max=15"`
	Items         []CartLine `json:"items"          validate:"required,min=1,dive"`
	CustomerEmail *string    `json:"customer_email" validate:"omitempty,email"`
}

type InitiatePaymentResponse struct {
	TransactionRef    string          `json:"transaction_ref"`
	CheckoutRequestID string          `json:"checkout_request_id"`
	MerchantRequestID string          `json:"merchant_request_id"`
	Amount            decimal.Decimal `json:"amount"`
	Message           string          `json:"message"`
}

type ConfirmPaymentRequest struct {
	CheckoutRequestID string `json:"checkout_request_id" validate:"required"`
}

// PaymentStatusResponse is returned by both confirm and the status poll.
// Status is one of: pending | confirmed | failed | timeout.
type PaymentStatusResponse struct {
	Status         string  `json:"status"`
	TransactionRef string  `json:"transaction_ref"`
	MpesaReference *string `json:"mpesa_reference,omitempty"`
	SaleID         *string `json:"sale_id,omitempty"`
	ResultDesc     *string `json:"result_desc,omitempty"`
}

type ReceiptLine struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type ReceiptResponse struct {
	TransactionRef string          `json:"transaction_ref"`
	Branch         string          `json:"branch"`
	Location       string          `json:"location"`
	Date           string          `json:"date"`
	Items          []ReceiptLine   `json:"items"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  string          `json:"payment_method"`
}

type BranchProductsResponse struct {
	Branch   BranchResponse  `json:"branch"`
	Products []BranchProduct `json:"products"`
}

type BranchProduct struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Description    *string         `json:"description"`
	AvailableStock int             `json:"available_stock"`
}
