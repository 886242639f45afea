package service

import (
	"context"
	"testing"
	"time"

	"dukapos/internal/dto"
	"dukapos/internal/model"
	"dukapos/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReportRepo struct {
	avg      decimal.Decimal
	byDay    []repository.DayOfWeekRow
	daySince time.Time
}

func (r *stubReportRepo) TotalRevenueAndCount(_ context.Context, _ repository.ReportQuery) (decimal.Decimal, int64, error) {
	return decimal.Zero, 0, nil
}

func (r *stubReportRepo) RevenueByProduct(_ context.Context, _ repository.ReportQuery) ([]repository.ProductRevenueRow, error) {
	return nil, nil
}

func (r *stubReportRepo) SalesByBranch(_ context.Context, _ repository.ReportQuery) ([]repository.BranchSalesRow, error) {
	return nil, nil
}

func (r *stubReportRepo) SalesTimeline(_ context.Context, _ time.Time) ([]repository.TimelineRow, error) {
	return nil, nil
}

func (r *stubReportRepo) DetailedSales(_ context.Context, _ repository.ReportQuery, _, _ int) ([]model.Sale, int64, error) {
	return nil, 0, nil
}

func (r *stubReportRepo) AverageSaleValue(_ context.Context) (decimal.Decimal, error) {
	return r.avg, nil
}

func (r *stubReportRepo) SalesByDayOfWeek(_ context.Context, since time.Time) ([]repository.DayOfWeekRow, error) {
	r.daySince = since
	return r.byDay, nil
}

func TestAnalyticsMapsWeekdayBuckets(t *testing.T) {
	repo := &stubReportRepo{
		avg: decimal.NewFromFloat(245.50),
		byDay: []repository.DayOfWeekRow{
			{DayOfWeek: 0, SalesCount: 4, Revenue: decimalFromInt(800)},
			{DayOfWeek: 5, SalesCount: 12, Revenue: decimalFromInt(2600)},
			{DayOfWeek: 6, SalesCount: 9, Revenue: decimalFromInt(1900)},
		},
	}
	svc := NewSalesService(repo)

	resp, err := svc.Analytics(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.AverageTransactionValue.Equal(decimal.NewFromFloat(245.50)))

	require.Len(t, resp.SalesByDayOfWeek, 3)
	assert.Equal(t, "Sunday", resp.SalesByDayOfWeek[0].Day)
	assert.Equal(t, "Friday", resp.SalesByDayOfWeek[1].Day)
	assert.Equal(t, "Saturday", resp.SalesByDayOfWeek[2].Day)
	assert.Equal(t, int64(12), resp.SalesByDayOfWeek[1].SalesCount)

	// The weekday window looks back 30 days.
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -30), repo.daySince, time.Minute)
}

func TestReportQueryCoversFullEndDay(t *testing.T) {
	q := reportQuery(dto.ReportFilter{StartDate: "2026-08-01", EndDate: "2026-08-01"})
	require.NotNil(t, q.Start)
	require.NotNil(t, q.End)
	assert.True(t, q.End.After(*q.Start), "a single-day range must still span that day")
	assert.Equal(t, 23, q.End.Hour())
}
