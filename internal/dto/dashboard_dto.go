package dto

import "github.com/shopspring/decimal"

type ProductRevenue struct {
	ProductName string          `json:"product_name"`
	Revenue     decimal.Decimal `json:"revenue"`
	UnitsSold   int             `json:"units_sold"`
}

type BranchSales struct {
	BranchName string          `json:"branch_name"`
	SalesCount int64           `json:"sales_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}

type MetricsResponse struct {
	TotalRevenue     decimal.Decimal  `json:"total_revenue"`
	TotalSales       int64            `json:"total_sales"`
	RevenueByProduct []ProductRevenue `json:"revenue_by_product"`
	SalesByBranch    []BranchSales    `json:"sales_by_branch"`
	LowStockAlerts   []LowStockRow    `json:"low_stock_alerts"`
}

type TimelinePoint struct {
	Date       string          `json:"date"`
	SalesCount int64           `json:"sales_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}

type RecentTransaction struct {
	ID             string            `json:"id"`
	Date           string            `json:"date"`
	Branch         string            `json:"branch"`
	CustomerEmail  *string           `json:"customer_email"`
	Amount         decimal.Decimal   `json:"amount"`
	MpesaReference string            `json:"mpesa_reference"`
	Items          []TransactionItem `json:"items"`
}

type TransactionItem struct {
	Product  string          `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}
