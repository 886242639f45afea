package service

import (
	"context"
	"time"

	"dukapos/internal/dto"
	"dukapos/internal/repository"
)

type SalesService interface {
	Report(ctx context.Context, filter dto.ReportFilter) (*dto.SalesReportResponse, error)
	Detailed(ctx context.Context, filter dto.ReportFilter) (*dto.DetailedSalesResponse, error)
	Analytics(ctx context.Context) (*dto.SalesAnalyticsResponse, error)
}

type salesService struct {
	reportRepo repository.ReportRepository
}

func NewSalesService(reportRepo repository.ReportRepository) SalesService {
	return &salesService{reportRepo: reportRepo}
}

// reportQuery translates the wire filter into the repository query. The end
// date is pushed to the last instant of that day so a single-day range
// (start == end) still covers it.
func reportQuery(filter dto.ReportFilter) repository.ReportQuery {
	q := repository.ReportQuery{
		BranchID:  filter.BranchID,
		ProductID: filter.ProductID,
	}
	if t, err := time.Parse("2006-01-02", filter.StartDate); err == nil {
		q.Start = &t
	}
	if t, err := time.Parse("2006-01-02", filter.EndDate); err == nil {
		end := t.Add(24*time.Hour - time.Nanosecond)
		q.End = &end
	}
	return q
}

func (s *salesService) Report(ctx context.Context, filter dto.ReportFilter) (*dto.SalesReportResponse, error) {
	q := reportQuery(filter)

	revenue, count, err := s.reportRepo.TotalRevenueAndCount(ctx, q)
	if err != nil {
		return nil, err
	}
	byProduct, err := s.reportRepo.RevenueByProduct(ctx, q)
	if err != nil {
		return nil, err
	}
	byBranch, err := s.reportRepo.SalesByBranch(ctx, q)
	if err != nil {
		return nil, err
	}

	resp := &dto.SalesReportResponse{
		Summary: dto.ReportSummary{
			TotalRevenue: revenue,
			TotalSales:   count,
		},
		SalesByProduct: make([]dto.ProductSalesRow, 0, len(byProduct)),
		SalesByBranch:  make([]dto.BranchSalesRow, 0, len(byBranch)),
	}
	for _, row := range byProduct {
		resp.SalesByProduct = append(resp.SalesByProduct, dto.ProductSalesRow{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			QuantitySold: row.UnitsSold,
			Revenue:      row.Revenue,
		})
	}
	for _, row := range byBranch {
		resp.SalesByBranch = append(resp.SalesByBranch, dto.BranchSalesRow{
			BranchID:     row.BranchID,
			BranchName:   row.BranchName,
			TotalSales:   row.SalesCount,
			TotalRevenue: row.Revenue,
		})
	}

	// RevenueByProduct is already ordered by revenue descending.
	top := resp.SalesByProduct
	if len(top) > 5 {
		top = top[:5]
	}
	resp.TopProducts = top

	return resp, nil
}

func (s *salesService) Detailed(ctx context.Context, filter dto.ReportFilter) (*dto.DetailedSalesResponse, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}

	sales, total, err := s.reportRepo.DetailedSales(ctx, reportQuery(filter), page, limit)
	if err != nil {
		return nil, err
	}

	resp := &dto.DetailedSalesResponse{
		Data:  make([]dto.DetailedSaleRow, 0, len(sales)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for _, sale := range sales {
		row := dto.DetailedSaleRow{
			ID:             sale.ID.String(),
			TotalAmount:    sale.TotalAmount,
			MpesaReference: sale.MpesaReference,
			Date:           sale.TransactionDate.Format(time.RFC3339),
		}
		if sale.Branch != nil {
			row.Branch = sale.Branch.Name
		}
		for _, item := range sale.Items {
			name := ""
			if item.Product != nil {
				name = item.Product.Name
			}
			row.Items = append(row.Items, dto.TransactionItem{
				Product:  name,
				Quantity: item.Quantity,
				Subtotal: item.Subtotal,
			})
		}
		resp.Data = append(resp.Data, row)
	}
	return resp, nil
}

// dayNames indexes Postgres EXTRACT(DOW): 0 = Sunday … 6 = Saturday.
var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Analytics returns the average transaction value across all sales and the
// weekday distribution of the last 30 days.
func (s *salesService) Analytics(ctx context.Context) (*dto.SalesAnalyticsResponse, error) {
	avg, err := s.reportRepo.AverageSaleValue(ctx)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -30)
	byDay, err := s.reportRepo.SalesByDayOfWeek(ctx, since)
	if err != nil {
		return nil, err
	}

	resp := &dto.SalesAnalyticsResponse{
		AverageTransactionValue: avg,
		SalesByDayOfWeek:        make([]dto.DayOfWeekSales, 0, len(byDay)),
	}
	for _, row := range byDay {
		if row.DayOfWeek < 0 || row.DayOfWeek > 6 {
			continue
		}
		resp.SalesByDayOfWeek = append(resp.SalesByDayOfWeek, dto.DayOfWeekSales{
			Day:        dayNames[row.DayOfWeek],
			SalesCount: row.SalesCount,
			Revenue:    row.Revenue,
		})
	}
	return resp, nil
}
