package usecase

import (
	"context"
	"fmt"

	domain "github.com/getf1tickets/order-service/internal/entity"
)

// GetOrder is the single-order read path: header plus line items annotated
// with product name/price, plus the resolved address when it still exists.
type GetOrder struct {
	repo OrderRepo
}

func NewGetOrder(repo OrderRepo) *GetOrder {
	return &GetOrder{repo: repo}
}

// Execute returns the projection for one order owned by user. A foreign
// order is reported as not found, not as forbidden.
func (uc *GetOrder) Execute(ctx context.Context, user domain.User, orderID string) (*OrderDetail, error) {
	detail, err := uc.repo.GetDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if detail.Order.UserID != user.ID {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return detail, nil
}
