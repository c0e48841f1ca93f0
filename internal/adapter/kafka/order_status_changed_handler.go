package kafka

import (
	"context"

	domain "github.com/getf1tickets/order-service/internal/entity"
	"github.com/getf1tickets/order-service/internal/usecase"
)

// OrderStatusChangedHandler applies downstream settlement results. The
// transition is guarded: only a created order moves, so replays and
// out-of-order deliveries are harmless.
type OrderStatusChangedHandler struct {
	Repo  usecase.OrderRepo
	Cache usecase.StatusCache // optional
}

func NewOrderStatusChangedHandler(repo usecase.OrderRepo, cache usecase.StatusCache) *OrderStatusChangedHandler {
	return &OrderStatusChangedHandler{Repo: repo, Cache: cache}
}

func (h *OrderStatusChangedHandler) Handle(ctx context.Context, ev usecase.OrderStatusChangedMsg) error {
	var next domain.Status
	switch ev.Status {
	case "COMPLETED":
		next = domain.StatusCompleted
	case "CANCELLED":
		next = domain.StatusCancelled
	default:
		// unknown statuses are ignored, additive changes tolerated
		return nil
	}

	if _, err := h.Repo.UpdateStatusIf(ctx, ev.OrderID, domain.StatusCreated, next); err != nil {
		return err
	}

	if h.Cache != nil {
		_ = h.Cache.SetStatus(ctx, ev.OrderID, next)
	}
	return nil
}
