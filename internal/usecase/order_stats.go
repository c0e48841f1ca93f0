package usecase

import (
	"context"
	"time"
)

const statsWindowDays = 30

// OrderSummary is the per-order slice of the stats breakdown.
type OrderSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Total     int64     `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

type DailyOrders struct {
	Date   string         `json:"date"` // dd/MM
	Count  int            `json:"count"`
	Orders []OrderSummary `json:"orders"`
}

type OrderStats struct {
	OrderCount   int64         `json:"orderCount"`
	RevenueCents int64         `json:"revenues"`
	LastOrders   []DailyOrders `json:"lastOrders"`
}

// GetOrderStats is the admin read path: completed-order count and revenue
// for the current month, plus a 31-entry daily breakdown over the last 30
// days. Pure aggregation over already-durable rows.
type GetOrderStats struct {
	repo OrderRepo
	now  func() time.Time
}

func NewGetOrderStats(repo OrderRepo) *GetOrderStats {
	return &GetOrderStats{repo: repo, now: time.Now}
}

func (uc *GetOrderStats) Execute(ctx context.Context) (*OrderStats, error) {
	now := uc.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	count, revenue, err := uc.repo.CompletedTotals(ctx, monthStart)
	if err != nil {
		return nil, err
	}

	windowStart := startOfDay(now.AddDate(0, 0, -statsWindowDays))
	recent, err := uc.repo.CompletedSince(ctx, windowStart)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]OrderSummary)
	for _, o := range recent {
		day := startOfDay(o.CreatedAt.UTC()).Format("02/01")
		byDay[day] = append(byDay[day], OrderSummary{
			ID:        o.ID,
			Status:    string(o.Status),
			Total:     o.TotalCents,
			CreatedAt: o.CreatedAt,
		})
	}

	// Oldest day first, today last: 31 buckets including both endpoints.
	breakdown := make([]DailyOrders, 0, statsWindowDays+1)
	for i := 0; i <= statsWindowDays; i++ {
		day := startOfDay(now.AddDate(0, 0, -(statsWindowDays - i))).Format("02/01")
		orders := byDay[day]
		if orders == nil {
			orders = []OrderSummary{}
		}
		breakdown = append(breakdown, DailyOrders{Date: day, Count: len(orders), Orders: orders})
	}

	return &OrderStats{OrderCount: count, RevenueCents: revenue, LastOrders: breakdown}, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
