package usecase

import (
	"math"

	domain "github.com/getf1tickets/order-service/internal/entity"
)

// Pricing holds the derived amounts for one order, cents in a single
// currency.
type Pricing struct {
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
}

// ResolvedLine pairs a catalog product with the quantity the caller asked
// for. Quantity comes from the request, price from the catalog.
type ResolvedLine struct {
	Product  domain.Product
	Quantity int64
}

// ComputePricing folds resolved lines into subtotal/discount/total.
// Discount is fixed at zero; there is no promotion logic in this workflow.
// Overflow is rejected with ErrOutOfRange rather than wrapping around.
func ComputePricing(lines []ResolvedLine) (Pricing, error) {
	var subtotal int64
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Pricing{}, domain.ErrInvalidQuantity
		}
		if l.Product.PriceCents < 0 {
			return Pricing{}, domain.ErrOutOfRange
		}
		if l.Product.PriceCents > 0 && l.Quantity > math.MaxInt64/l.Product.PriceCents {
			return Pricing{}, domain.ErrOutOfRange
		}
		cost := l.Product.PriceCents * l.Quantity
		if subtotal > math.MaxInt64-cost {
			return Pricing{}, domain.ErrOutOfRange
		}
		subtotal += cost
	}
	return Pricing{SubtotalCents: subtotal, DiscountCents: 0, TotalCents: subtotal}, nil
}
