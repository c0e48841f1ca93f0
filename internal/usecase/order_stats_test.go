package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/getf1tickets/order-service/internal/entity"
)

type statsRepo struct {
	fakeOrderRepo
	count   int64
	revenue int64
	recent  []domain.Order
}

func (r *statsRepo) CompletedTotals(context.Context, time.Time) (int64, int64, error) {
	return r.count, r.revenue, nil
}

func (r *statsRepo) CompletedSince(context.Context, time.Time) ([]domain.Order, error) {
	return r.recent, nil
}

func TestGetOrderStats(t *testing.T) {
	now := time.Date(2024, 6, 15, 11, 30, 0, 0, time.UTC)
	repo := &statsRepo{
		count:   3,
		revenue: 45000,
		recent: []domain.Order{
			{ID: "O1", Status: domain.StatusCompleted, TotalCents: 10000, CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "O2", Status: domain.StatusCompleted, TotalCents: 15000, CreatedAt: now.AddDate(0, 0, -1)},
			{ID: "O3", Status: domain.StatusCompleted, TotalCents: 20000, CreatedAt: now.AddDate(0, 0, -1)},
		},
	}
	uc := NewGetOrderStats(repo)
	uc.now = func() time.Time { return now }

	stats, err := uc.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.OrderCount)
	assert.Equal(t, int64(45000), stats.RevenueCents)
	require.Len(t, stats.LastOrders, 31)

	last := stats.LastOrders[30]
	assert.Equal(t, "15/06", last.Date)
	assert.Equal(t, 1, last.Count)

	yesterday := stats.LastOrders[29]
	assert.Equal(t, "14/06", yesterday.Date)
	assert.Equal(t, 2, yesterday.Count)

	oldest := stats.LastOrders[0]
	assert.Equal(t, "16/05", oldest.Date)
	assert.Equal(t, 0, oldest.Count)
	assert.NotNil(t, oldest.Orders, "empty buckets serialize as [], not null")
}
