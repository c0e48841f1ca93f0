package usecase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/getf1tickets/order-service/internal/entity"
)

func TestComputePricing(t *testing.T) {
	p, err := ComputePricing([]ResolvedLine{
		{Product: domain.Product{ID: "P1", PriceCents: 5000}, Quantity: 2},
		{Product: domain.Product{ID: "P2", PriceCents: 1250}, Quantity: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), p.SubtotalCents)
	assert.Equal(t, int64(0), p.DiscountCents)
	assert.Equal(t, p.SubtotalCents, p.TotalCents)
}

func TestComputePricingEmpty(t *testing.T) {
	p, err := ComputePricing(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.TotalCents)
}

func TestComputePricingRejectsBadQuantity(t *testing.T) {
	_, err := ComputePricing([]ResolvedLine{
		{Product: domain.Product{ID: "P1", PriceCents: 100}, Quantity: 0},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = ComputePricing([]ResolvedLine{
		{Product: domain.Product{ID: "P1", PriceCents: 100}, Quantity: -1},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestComputePricingOverflow(t *testing.T) {
	_, err := ComputePricing([]ResolvedLine{
		{Product: domain.Product{ID: "P1", PriceCents: math.MaxInt64}, Quantity: 2},
	})
	assert.ErrorIs(t, err, domain.ErrOutOfRange)

	_, err = ComputePricing([]ResolvedLine{
		{Product: domain.Product{ID: "P1", PriceCents: math.MaxInt64}, Quantity: 1},
		{Product: domain.Product{ID: "P2", PriceCents: 1}, Quantity: 1},
	})
	assert.ErrorIs(t, err, domain.ErrOutOfRange)
}
