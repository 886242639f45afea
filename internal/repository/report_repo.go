package repository

import (
	"context"
	"time"

	"dukapos/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductRevenueRow is one row of the revenue-by-product aggregation.
type ProductRevenueRow struct {
	ProductID   string
	ProductName string
	Revenue     decimal.Decimal
	UnitsSold   int
}

// BranchSalesRow is one row of the sales-by-branch aggregation.
type BranchSalesRow struct {
	BranchID   string
	BranchName string
	SalesCount int64
	Revenue    decimal.Decimal
}

// TimelineRow is one day of the sales timeline.
type TimelineRow struct {
	Day        time.Time
	SalesCount int64
	Revenue    decimal.Decimal
}

// DayOfWeekRow is one weekday bucket of the analytics aggregation.
// DayOfWeek follows Postgres EXTRACT(DOW): 0 = Sunday … 6 = Saturday.
type DayOfWeekRow struct {
	DayOfWeek  int
	SalesCount int64
	Revenue    decimal.Decimal
}

// ReportQuery narrows the aggregations; zero values mean "no filter".
type ReportQuery struct {
	Start     *time.Time
	End       *time.Time
	BranchID  string
	ProductID string
}

// ReportRepository holds the read-side aggregation queries for dashboards and
// sales reports. Pure reads — no locking concerns beyond normal consistency.
type ReportRepository interface {
	TotalRevenueAndCount(ctx context.Context, q ReportQuery) (decimal.Decimal, int64, error)
	RevenueByProduct(ctx context.Context, q ReportQuery) ([]ProductRevenueRow, error)
	SalesByBranch(ctx context.Context, q ReportQuery) ([]BranchSalesRow, error)
	SalesTimeline(ctx context.Context, since time.Time) ([]TimelineRow, error)
	DetailedSales(ctx context.Context, q ReportQuery, page, limit int) ([]model.Sale, int64, error)
	AverageSaleValue(ctx context.Context) (decimal.Decimal, error)
	SalesByDayOfWeek(ctx context.Context, since time.Time) ([]DayOfWeekRow, error)
}

type reportRepo struct{ db *gorm.DB }

func NewReportRepository(db *gorm.DB) ReportRepository { return &reportRepo{db: db} }

func (r *reportRepo) saleScope(ctx context.Context, q ReportQuery) *gorm.DB {
	s := r.db.WithContext(ctx).Model(&model.Sale{})
	if q.Start != nil {
		s = s.Where("transaction_date >= ?", *q.Start)
	}
	if q.End != nil {
		s = s.Where("transaction_date <= ?", *q.End)
	}
	if q.BranchID != "" {
		s = s.Where("branch_id = ?", q.BranchID)
	}
	return s
}

func (r *reportRepo) TotalRevenueAndCount(ctx context.Context, q ReportQuery) (decimal.Decimal, int64, error) {
	var row struct {
		Total decimal.Decimal
		Count int64
	}
	err := r.saleScope(ctx, q).
		Select("COALESCE(SUM(total_amount), 0) AS total, COUNT(*) AS count").
		Scan(&row).Error
	return row.Total, row.Count, err
}

func (r *reportRepo) RevenueByProduct(ctx context.Context, q ReportQuery) ([]ProductRevenueRow, error) {
	var rows []ProductRevenueRow
	query := r.db.WithContext(ctx).
		Table("sale_items si").
		Select("p.id AS product_id, p.name AS product_name, SUM(si.subtotal) AS revenue, SUM(si.quantity) AS units_sold").
		Joins("JOIN products p ON p.id = si.product_id").
		Joins("JOIN sales s ON s.id = si.sale_id").
		Group("p.id, p.name").
		Order("revenue DESC")

	if q.Start != nil {
		query = query.Where("s.transaction_date >= ?", *q.Start)
	}
	if q.End != nil {
		query = query.Where("s.transaction_date <= ?", *q.End)
	}
	if q.BranchID != "" {
		query = query.Where("s.branch_id = ?", q.BranchID)
	}
	if q.ProductID != "" {
		query = query.Where("p.id = ?", q.ProductID)
	}

	err := query.Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) SalesByBranch(ctx context.Context, q ReportQuery) ([]BranchSalesRow, error) {
	var rows []BranchSalesRow
	query := r.db.WithContext(ctx).
		Table("sales s").
		Select("b.id AS branch_id, b.name AS branch_name, COUNT(*) AS sales_count, COALESCE(SUM(s.total_amount), 0) AS revenue").
		Joins("JOIN branches b ON b.id = s.branch_id").
		Group("b.id, b.name").
		Order("revenue DESC")

	if q.Start != nil {
		query = query.Where("s.transaction_date >= ?", *q.Start)
	}
	if q.End != nil {
		query = query.Where("s.transaction_date <= ?", *q.End)
	}
	if q.BranchID != "" {
		query = query.Where("s.branch_id = ?", q.BranchID)
	}

	err := query.Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) SalesTimeline(ctx context.Context, since time.Time) ([]TimelineRow, error) {
	var rows []TimelineRow
	err := r.db.WithContext(ctx).
		Table("sales").
		Select("DATE(transaction_date) AS day, COUNT(*) AS sales_count, SUM(total_amount) AS revenue").
		Where("transaction_date >= ?", since).
		Group("DATE(transaction_date)").
		Order("day ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) AverageSaleValue(ctx context.Context) (decimal.Decimal, error) {
	var row struct {
		Avg decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Table("sales").
		Select("COALESCE(AVG(total_amount), 0) AS avg").
		Scan(&row).Error
	return row.Avg, err
}

func (r *reportRepo) SalesByDayOfWeek(ctx context.Context, since time.Time) ([]DayOfWeekRow, error) {
	var rows []DayOfWeekRow
	err := r.db.WithContext(ctx).
		Table("sales").
		Select("EXTRACT(DOW FROM transaction_date)::int AS day_of_week, COUNT(*) AS sales_count, SUM(total_amount) AS revenue").
		Where("transaction_date >= ?", since).
		Group("day_of_week").
		Order("day_of_week ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) DetailedSales(ctx context.Context, q ReportQuery, page, limit int) ([]model.Sale, int64, error) {
	var total int64
	if err := r.saleScope(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sales []model.Sale
	err := r.saleScope(ctx, q).
		Preload("Branch").
		Preload("Items").
		Preload("Items.Product").
		Order("transaction_date DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&sales).Error
	return sales, total, err
}
