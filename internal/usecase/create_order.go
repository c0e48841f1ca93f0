package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domain "github.com/getf1tickets/order-service/internal/entity"
	"github.com/getf1tickets/order-service/internal/logging"
)

var ErrDuplicate = errors.New("duplicate idempotency key")

var ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "orders_created_total",
	Help: "Orders durably persisted by the creation workflow",
})

const (
	EventExchange  = "order.crud"
	RoutingCreated = "created"
)

// LineRequest is one product+quantity entry from the caller; it is validated
// and folded into totals, never persisted as-is.
type LineRequest struct {
	ProductID string
	Quantity  int64
}

type CreateOrderInput struct {
	User           domain.User
	AddressID      string
	Lines          []LineRequest
	IdempotencyKey string // optional; empty means no dedup
}

// CreateOrder runs the order-creation workflow: resolve products, validate
// the address, price, persist header+lines+event atomically. Publication
// happens through the outbox, so a nil return guarantees the event will
// eventually reach the broker.
type CreateOrder struct {
	catalog ProductCatalog
	repo    OrderRepo
	idem    IdempotencyStore
}

func NewCreateOrder(catalog ProductCatalog, repo OrderRepo, idem IdempotencyStore) *CreateOrder {
	return &CreateOrder{catalog: catalog, repo: repo, idem: idem}
}

func (uc *CreateOrder) Execute(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if in.IdempotencyKey == "" {
		return uc.create(ctx, in)
	}

	id, ok, err := uc.idem.Recall(ctx, in.User.ID, in.IdempotencyKey)
	if err != nil {
		logging.FromCtx(ctx).Warn("idempotency recall failed",
			"user_id", in.User.ID, "err", err)
	}
	if ok {
		return uc.repo.GetByID(ctx, id)
	}
	locked, err := uc.idem.TryLock(ctx, in.User.ID, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrDuplicate
	}

	order, err := uc.create(ctx, in)
	if err != nil {
		// Release the key so a corrected or retried request is not stuck
		// behind a lock that never produced an order.
		_ = uc.idem.Unlock(ctx, in.User.ID, in.IdempotencyKey)
		return nil, err
	}
	_ = uc.idem.Remember(ctx, in.User.ID, in.IdempotencyKey, order.ID)
	return order, nil
}

func (uc *CreateOrder) create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	lines, err := mergeLines(in.Lines)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := uc.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	// No partial orders for partially-known product sets.
	if len(products) != len(ids) {
		return nil, fmt.Errorf("resolve products: %w", domain.ErrNotFound)
	}

	if !in.User.HasAddress(in.AddressID) {
		return nil, fmt.Errorf("resolve address: %w", domain.ErrNotFound)
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	resolved := make([]ResolvedLine, len(lines))
	for i, l := range lines {
		resolved[i] = ResolvedLine{Product: byID[l.ProductID], Quantity: l.Quantity}
	}
	pricing, err := ComputePricing(resolved)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:            uuid.NewString(),
		UserID:        in.User.ID,
		Status:        domain.StatusCreated,
		SubtotalCents: pricing.SubtotalCents,
		DiscountCents: pricing.DiscountCents,
		TotalCents:    pricing.TotalCents,
		AddressID:     in.AddressID,
		CreatedAt:     time.Now().UTC(),
	}

	event, err := createdEvent(in.User, order, lines)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.Create(ctx, order, lines, event); err != nil {
		logging.FromCtx(ctx).Error("order create failed",
			"user_id", in.User.ID, "order_id", order.ID, "err", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}

	ordersCreated.Inc()
	return order, nil
}

// mergeLines collapses duplicate product ids into one line with the summed
// quantity, preserving first-seen order. Zero or negative quantities are a
// caller error.
func mergeLines(in []LineRequest) ([]domain.OrderLine, error) {
	idx := make(map[string]int, len(in))
	out := make([]domain.OrderLine, 0, len(in))
	for _, l := range in {
		if l.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if i, ok := idx[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, domain.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out, nil
}

func createdEvent(user domain.User, order *domain.Order, lines []domain.OrderLine) (OutboxMessage, error) {
	snap := OrderCreatedMsg{
		User: UserSnapshot{ID: user.ID, Email: user.Email},
		Order: OrderSnapshot{
			ID:        order.ID,
			Status:    string(order.Status),
			Subtotal:  order.SubtotalCents,
			Discount:  order.DiscountCents,
			Total:     order.TotalCents,
			AddressID: order.AddressID,
			Products:  make([]LineSnapshot, len(lines)),
		},
	}
	for i, l := range lines {
		snap.Order.Products[i] = LineSnapshot{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{Exchange: EventExchange, RoutingKey: RoutingCreated, Payload: payload}, nil
}
