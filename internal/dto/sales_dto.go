package dto

import "github.com/shopspring/decimal"

// ReportFilter is bound from the query string of GET /api/sales/reports and
// GET /api/sales/detailed. Dates are YYYY-MM-DD.
type ReportFilter struct {
	StartDate string `form:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date"   validate:"omitempty,datetime=2006-01-02"`
	BranchID  string `form:"branch_id"  validate:"omitempty,uuid"`
	ProductID string `form:"product_id" validate:"omitempty,uuid"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type ReportSummary struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalSales   int64           `json:"total_sales"`
}

type ProductSalesRow struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type BranchSalesRow struct {
	BranchID     string          `json:"branch_id"`
	BranchName   string          `json:"branch_name"`
	TotalSales   int64           `json:"total_sales"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

type SalesReportResponse struct {
	Summary        ReportSummary     `json:"summary"`
	SalesByProduct []ProductSalesRow `json:"sales_by_product"`
	SalesByBranch  []BranchSalesRow  `json:"sales_by_branch"`
	TopProducts    []ProductSalesRow `json:"top_products"`
}

type DetailedSaleRow struct {
	ID             string            `json:"id"`
	Branch         string            `json:"branch"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	MpesaReference string            `json:"mpesa_reference"`
	Date           string            `json:"date"`
	Items          []TransactionItem `json:"items"`
}

type DetailedSalesResponse struct {
	Data  []DetailedSaleRow `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type DayOfWeekSales struct {
	Day        string          `json:"day"`
	SalesCount int64           `json:"sales_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}

type SalesAnalyticsResponse struct {
	AverageTransactionValue decimal.Decimal  `json:"average_transaction_value"`
	SalesByDayOfWeek        []DayOfWeekSales `json:"sales_by_day_of_week"`
}
