package service

import (
	"context"
	"math"
	"time"

	"github.com/movenorth/booking-backend/internal/repository"
)

// WindowStats is the dashboard shape for a total plus two trailing
// 7-day windows.
type WindowStats struct {
	Total         float64 `json:"total"`
	Last7Days     float64 `json:"last_7_days"`
	Previous7Days float64 `json:"previous_7_days"`
	GrowthPercent float64 `json:"growth_percent"`
}

// MonthlyCount is one month's entry in a 12-element series.
type MonthlyCount struct {
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

// MonthlyAmount is one month's entry in a 12-element revenue series.
type MonthlyAmount struct {
	Month  int     `json:"month"`
	Amount float64 `json:"amount"`
}

// StatsService serves the read-only dashboard aggregations.
type StatsService struct {
	bookings repository.BookingStore
	users    repository.UserStore
	invoices repository.InvoiceStore
}

func NewStatsService(bookings repository.BookingStore, users repository.UserStore, invoices repository.InvoiceStore) *StatsService {
	return &StatsService{bookings: bookings, users: users, invoices: invoices}
}

// GrowthPercent implements the dashboard growth rule: 100 when
// starting from zero, 0 when both windows are empty, otherwise the
// relative change rounded to 2 decimals.
func GrowthPercent(previous, current float64) float64 {
	switch {
	case previous == 0 && current == 0:
		return 0
	case previous == 0:
		return 100
	default:
		return math.Round((current-previous)/previous*100*100) / 100
	}
}

func window(now time.Time) (weekAgo, twoWeeksAgo time.Time) {
	return now.AddDate(0, 0, -7), now.AddDate(0, 0, -14)
}

// BookingStats returns booking counts over the trailing windows ending
// at now.
func (s *StatsService) BookingStats(ctx context.Context, now time.Time) (*WindowStats, error) {
	weekAgo, twoWeeksAgo := window(now)
	total, err := s.bookings.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	last7, err := s.bookings.CountCreatedBetween(ctx, weekAgo, now)
	if err != nil {
		return nil, err
	}
	prev7, err := s.bookings.CountCreatedBetween(ctx, twoWeeksAgo, weekAgo)
	if err != nil {
		return nil, err
	}
	return windowStats(float64(total), float64(last7), float64(prev7)), nil
}

// UserStats returns signup counts over the trailing windows.
func (s *StatsService) UserStats(ctx context.Context, now time.Time) (*WindowStats, error) {
	weekAgo, twoWeeksAgo := window(now)
	total, err := s.users.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	last7, err := s.users.CountCreatedBetween(ctx, weekAgo, now)
	if err != nil {
		return nil, err
	}
	prev7, err := s.users.CountCreatedBetween(ctx, twoWeeksAgo, weekAgo)
	if err != nil {
		return nil, err
	}
	return windowStats(float64(total), float64(last7), float64(prev7)), nil
}

// RevenueStats returns paid revenue over the trailing windows.
func (s *StatsService) RevenueStats(ctx context.Context, now time.Time) (*WindowStats, error) {
	weekAgo, twoWeeksAgo := window(now)
	total, err := s.invoices.SumPaidAll(ctx)
	if err != nil {
		return nil, err
	}
	last7, err := s.invoices.SumPaidBetween(ctx, weekAgo, now)
	if err != nil {
		return nil, err
	}
	prev7, err := s.invoices.SumPaidBetween(ctx, twoWeeksAgo, weekAgo)
	if err != nil {
		return nil, err
	}
	return windowStats(total, last7, prev7), nil
}

func windowStats(total, last7, prev7 float64) *WindowStats {
	return &WindowStats{
		Total:         total,
		Last7Days:     last7,
		Previous7Days: prev7,
		GrowthPercent: GrowthPercent(prev7, last7),
	}
}

// MonthlyBookings returns exactly 12 entries for the year, zero-filled
// and sorted by month ascending.
func (s *StatsService) MonthlyBookings(ctx context.Context, year int) ([]MonthlyCount, error) {
	counts, err := s.bookings.MonthlyCounts(ctx, year)
	if err != nil {
		return nil, err
	}
	return fillCounts(counts), nil
}

// MonthlyCustomerBookings returns a user's booking counts per month.
func (s *StatsService) MonthlyCustomerBookings(ctx context.Context, userUID string, year int) ([]MonthlyCount, error) {
	counts, err := s.bookings.MonthlyCountsForUser(ctx, userUID, year)
	if err != nil {
		return nil, err
	}
	return fillCounts(counts), nil
}

// MonthlyRevenue returns paid revenue per month.
func (s *StatsService) MonthlyRevenue(ctx context.Context, year int) ([]MonthlyAmount, error) {
	revenue, err := s.invoices.MonthlyRevenue(ctx, year)
	if err != nil {
		return nil, err
	}
	out := make([]MonthlyAmount, 12)
	for m := 1; m <= 12; m++ {
		out[m-1] = MonthlyAmount{Month: m, Amount: revenue[m]}
	}
	return out, nil
}

func fillCounts(counts map[int]int64) []MonthlyCount {
	out := make([]MonthlyCount, 12)
	for m := 1; m <= 12; m++ {
		out[m-1] = MonthlyCount{Month: m, Count: counts[m]}
	}
	return out
}
