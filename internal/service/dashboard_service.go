package service

import (
	"context"
	"time"

	"dukapos/internal/dto"
	"dukapos/internal/repository"
)

type DashboardService interface {
	Metrics(ctx context.Context) (*dto.MetricsResponse, error)
	Timeline(ctx context.Context) ([]dto.TimelinePoint, error)
	RecentTransactions(ctx context.Context, limit int) ([]dto.RecentTransaction, error)
}

type dashboardService struct {
	reportRepo repository.ReportRepository
	saleRepo   repository.SaleRepository
	invRepo    repository.InventoryRepository
}

func NewDashboardService(
	reportRepo repository.ReportRepository,
	saleRepo repository.SaleRepository,
	invRepo repository.InventoryRepository,
) DashboardService {
	return &dashboardService{reportRepo: reportRepo, saleRepo: saleRepo, invRepo: invRepo}
}

func (s *dashboardService) Metrics(ctx context.Context) (*dto.MetricsResponse, error) {
	all := repository.ReportQuery{}

	revenue, count, err := s.reportRepo.TotalRevenueAndCount(ctx, all)
	if err != nil {
		return nil, err
	}
	byProduct, err := s.reportRepo.RevenueByProduct(ctx, all)
	if err != nil {
		return nil, err
	}
	byBranch, err := s.reportRepo.SalesByBranch(ctx, all)
	if err != nil {
		return nil, err
	}
	lowStock, err := s.invRepo.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.MetricsResponse{
		TotalRevenue:     revenue,
		TotalSales:       count,
		RevenueByProduct: make([]dto.ProductRevenue, 0, len(byProduct)),
		SalesByBranch:    make([]dto.BranchSales, 0, len(byBranch)),
		LowStockAlerts:   make([]dto.LowStockRow, 0, len(lowStock)),
	}
	for _, row := range byProduct {
		resp.RevenueByProduct = append(resp.RevenueByProduct, dto.ProductRevenue{
			ProductName: row.ProductName,
			Revenue:     row.Revenue,
			UnitsSold:   row.UnitsSold,
		})
	}
	for _, row := range byBranch {
		resp.SalesByBranch = append(resp.SalesByBranch, dto.BranchSales{
			BranchName: row.BranchName,
			SalesCount: row.SalesCount,
			Revenue:    row.Revenue,
		})
	}
	for _, inv := range lowStock {
		alert := dto.LowStockRow{
			CurrentStock: inv.Quantity,
			Threshold:    inv.LowStockThreshold,
			Deficit:      inv.LowStockThreshold - inv.Quantity,
		}
		if inv.Branch != nil {
			alert.Branch = inv.Branch.Name
		}
		if inv.Product != nil {
			alert.Product = inv.Product.Name
		}
		resp.LowStockAlerts = append(resp.LowStockAlerts, alert)
	}
	return resp, nil
}

// Timeline returns per-day sales for the last 30 days.
func (s *dashboardService) Timeline(ctx context.Context) ([]dto.TimelinePoint, error) {
	since := time.Now().AddDate(0, 0, -30)
	rows, err := s.reportRepo.SalesTimeline(ctx, since)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TimelinePoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.TimelinePoint{
			Date:       row.Day.Format("2006-01-02"),
			SalesCount: row.SalesCount,
			Revenue:    row.Revenue,
		})
	}
	return out, nil
}

func (s *dashboardService) RecentTransactions(ctx context.Context, limit int) ([]dto.RecentTransaction, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	sales, err := s.saleRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RecentTransaction, 0, len(sales))
	for _, sale := range sales {
		tx := dto.RecentTransaction{
			ID:             sale.ID.String(),
			Date:           sale.TransactionDate.Format(time.RFC3339),
			CustomerEmail:  sale.CustomerEmail,
			Amount:         sale.TotalAmount,
			MpesaReference: sale.MpesaReference,
		}
		if sale.Branch != nil {
			tx.Branch = sale.Branch.Name
		}
		for _, item := range sale.Items {
			name := ""
			if item.Product != nil {
				name = item.Product.Name
			}
			tx.Items = append(tx.Items, dto.TransactionItem{
				Product:  name,
				Quantity: item.Quantity,
				Subtotal: item.Subtotal,
			})
		}
		out = append(out, tx)
	}
	return out, nil
}
