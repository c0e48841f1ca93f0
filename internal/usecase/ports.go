package usecase

import (
	"context"
	"encoding/json"
	"time"

	domain "github.com/getf1tickets/order-service/internal/entity"
)

// ProductCatalog resolves product records by id in one batched lookup.
// Unknown ids are simply absent from the result, not an error.
type ProductCatalog interface {
	FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
}

// UserDirectory loads the authenticated user together with their known
// delivery addresses. Owned by the auth collaborator; read-only here.
type UserDirectory interface {
	GetWithAddresses(ctx context.Context, userID string) (*domain.User, error)
}

// OutboxMessage is the event row written in the same transaction as the
// order and drained to the broker by the dispatcher.
type OutboxMessage struct {
	ID         int64
	Exchange   string
	RoutingKey string
	Payload    json.RawMessage
	RetryCount int
}

// OrderRepo persists and reads orders. Create must write the header, every
// line, and the outbox row as one atomic unit: either all rows become
// visible or none do.
type OrderRepo interface {
	Create(ctx context.Context, o *domain.Order, lines []domain.OrderLine, event OutboxMessage) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetDetail(ctx context.Context, id string) (*OrderDetail, error)
	UpdateStatusIf(ctx context.Context, id string, from, to domain.Status) (bool, error)
	CompletedTotals(ctx context.Context, since time.Time) (count int64, revenueCents int64, err error)
	CompletedSince(ctx context.Context, since time.Time) ([]domain.Order, error)
}

// OutboxRepo is the dispatcher's view of the outbox table.
type OutboxRepo interface {
	FetchPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, nextAttempt time.Time) error
	MarkDead(ctx context.Context, id int64) error
}

// EventPublisher delivers one payload to the broker. At-least-once: the
// caller retries until Publish returns nil, duplicates are acceptable.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, payload []byte) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Unlock(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// StatusCache mirrors the latest known order status, best-effort.
type StatusCache interface {
	SetStatus(ctx context.Context, orderID string, status domain.Status) error
	GetStatus(ctx context.Context, orderID string) (domain.Status, bool, error)
}

// OrderDetail is the read-side projection for GET /orders/:id. Address is
// optional by design: it is populated by an explicit join, and older orders
// may reference an address that has since been removed.
type OrderDetail struct {
	Order    domain.Order
	Address  *domain.Address
	Products []OrderLineDetail
}

// OrderLineDetail annotates a line with the catalog description of its
// product at read time.
type OrderLineDetail struct {
	ProductID  string
	Quantity   int64
	Name       string
	PriceCents int64
}
