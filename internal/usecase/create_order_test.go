package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/getf1tickets/order-service/internal/entity"
)

type fakeCatalog struct {
	products map[string]domain.Product
	calls    int
}

func (f *fakeCatalog) FindByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	f.calls++
	var out []domain.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeOrderRepo struct {
	createErr error
	created   *domain.Order
	lines     []domain.OrderLine
	event     OutboxMessage
	byID      map[string]*domain.Order
}

func (f *fakeOrderRepo) Create(_ context.Context, o *domain.Order, lines []domain.OrderLine, event OutboxMessage) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = o
	f.lines = lines
	f.event = event
	return nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	if o, ok := f.byID[id]; ok {
		return o, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeOrderRepo) GetDetail(context.Context, string) (*OrderDetail, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeOrderRepo) UpdateStatusIf(context.Context, string, domain.Status, domain.Status) (bool, error) {
	return false, nil
}

func (f *fakeOrderRepo) CompletedTotals(context.Context, time.Time) (int64, int64, error) {
	return 0, 0, nil
}

func (f *fakeOrderRepo) CompletedSince(context.Context, time.Time) ([]domain.Order, error) {
	return nil, nil
}

type fakeIdem struct {
	locks  map[string]bool
	values map[string]string
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{locks: map[string]bool{}, values: map[string]string{}}
}

func (f *fakeIdem) TryLock(_ context.Context, scope, key string) (bool, error) {
	k := scope + ":" + key
	if f.locks[k] {
		return false, nil
	}
	f.locks[k] = true
	return true, nil
}

func (f *fakeIdem) Unlock(_ context.Context, scope, key string) error {
	delete(f.locks, scope+":"+key)
	return nil
}

func (f *fakeIdem) Remember(_ context.Context, scope, key, value string) error {
	f.values[scope+":"+key] = value
	return nil
}

func (f *fakeIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	v, ok := f.values[scope+":"+key]
	return v, ok, nil
}

func testUser() domain.User {
	return domain.User{
		ID:    "U1",
		Email: "driver@example.com",
		Addresses: []domain.Address{
			{ID: "A1", UserID: "U1"},
		},
	}
}

func TestCreateOrderHappyPath(t *testing.T) {
	catalog := &fakeCatalog{products: map[string]domain.Product{
		"P1": {ID: "P1", Name: "GP Ticket", PriceCents: 5000},
	}}
	repo := &fakeOrderRepo{}
	uc := NewCreateOrder(catalog, repo, newFakeIdem())

	order, err := uc.Execute(context.Background(), CreateOrderInput{
		User:      testUser(),
		AddressID: "A1",
		Lines:     []LineRequest{{ProductID: "P1", Quantity: 2}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.StatusCreated, order.Status)
	assert.Equal(t, int64(10000), order.SubtotalCents)
	assert.Equal(t, int64(0), order.DiscountCents)
	assert.Equal(t, int64(10000), order.TotalCents)
	assert.Equal(t, "A1", order.AddressID)

	require.Len(t, repo.lines, 1)
	assert.Equal(t, domain.OrderLine{ProductID: "P1", Quantity: 2}, repo.lines[0])

	// the event rides in the same repo call as the order rows
	assert.Equal(t, EventExchange, repo.event.Exchange)
	assert.Equal(t, RoutingCreated, repo.event.RoutingKey)
	var msg OrderCreatedMsg
	require.NoError(t, json.Unmarshal(repo.event.Payload, &msg))
	assert.Equal(t, "U1", msg.User.ID)
	assert.Equal(t, order.ID, msg.Order.ID)
	assert.Equal(t, int64(10000), msg.Order.Total)
	require.Len(t, msg.Order.Products, 1)
	assert.Equal(t, "P1", msg.Order.Products[0].ProductID)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	catalog := &fakeCatalog{products: map[string]domain.Product{
		"P1": {ID: "P1", PriceCents: 5000},
	}}
	repo := &fakeOrderRepo{}
	uc := NewCreateOrder(catalog, repo, newFakeIdem())

	_, err := uc.Execute(context.Background(), CreateOrderInput{
		User:      testUser(),
		AddressID: "A1",
		Lines: []LineRequest{
			{ProductID: "P1", Quantity: 1},
			{ProductID: "GHOST", Quantity: 1},
		},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, repo.created, "no order row may exist after a rejected request")
}

func TestCreateOrderForeignAddress(t *testing.T) {
	catalog := &fakeCatalog{products: map[string]domain.Product{
		"P1": {ID: "P1", PriceCents: 5000},
	}}
	repo := &fakeOrderRepo{}
	uc := NewCreateOrder(catalog, repo, newFakeIdem())

	_, err := uc.Execute(context.Background(), CreateOrderInput{
		User:      testUser(),
		AddressID: "SOMEONE-ELSES",
		Lines:     []LineRequest{{ProductID: "P1", Quantity: 2}},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, repo.created)
}

func TestCreateOrderMergesDuplicateProducts(t *testing.T) {
	catalog := &fakeCatalog{products: map[string]domain.Product{
		"P1": {ID: "P1", PriceCents: 5000},
	}}
	repo := &fakeOrderRepo{}
	uc := NewCreateOrder(catalog, repo, newFakeIdem())

	order, err := uc.Execute(context.Background(), CreateOrderInput{
		User:      testUser(),
		AddressID: "A1",
		Lines: []LineRequest{
			{ProductID: "P1", Quantity: 1},
			{ProductID: "P1", Quantity: 1},
		},
	})
	require.NoError(t, err)

	require.Len(t, repo.lines, 1, "duplicate ids merge into one line")
	assert.Equal(t, int64(2), repo.lines[0].Quantity)
	assert.Equal(t, int64(10000), order.TotalCents)
	assert.Equal(t, 1, catalog.calls, "one batched catalog lookup")
}

func TestCreateOrderRejectsZeroQuantity(t *testing.T) {
	repo := &fakeOrderRepo{}
	uc := NewCreateOrder(&fakeCatalog{}, repo, newFakeIdem())

	_, err := uc.Execute(context.Background(), CreateOrderInput{
		User:      testUser(),
		AddressID: "A1",
		Lines:     []LineRequest{{ProductID: "P1", Quantity: 0}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.Nil(t, repo.created)
}

func TestCreateOrderPersistenceFailure(t *testing.T) {
	catalog := &fakeCatalog{products: map[string]domain.Product{
		"P1": {ID: "P1", PriceCents: 5000},
	}}
	repo := &fakeOrderRepo{createErr: errors.New("deadlock")}
	uc := NewCreateOrder(catalog, repo, newFakeIdem())

	_, err := uc.Execute(context.Background(), CreateOrderInput{
		User:      testUser(),
		AddressID: "A1",
		Lines:     []LineRequest{{ProductID: "P1", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrPersistenceFailed)
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	catalog := &fakeCatalog{products: map[string]domain.Product{
		"P1": {ID: "P1", PriceCents: 5000},
	}}
	repo := &fakeOrderRepo{byID: map[string]*domain.Order{}}
	uc := NewCreateOrder(catalog, repo, newFakeIdem())

	in := CreateOrderInput{
		User:           testUser(),
		AddressID:      "A1",
		Lines:          []LineRequest{{ProductID: "P1", Quantity: 1}},
		IdempotencyKey: "key-1",
	}
	first, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)
	repo.byID[first.ID] = first

	second, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "replay with same key returns the same order")
}

func TestCreateOrderKeyReleasedAfterPersistenceFailure(t *testing.T) {
	catalog := &fakeCatalog{products: map[string]domain.Product{
		"P1": {ID: "P1", PriceCents: 5000},
	}}
	repo := &fakeOrderRepo{createErr: errors.New("deadlock"), byID: map[string]*domain.Order{}}
	uc := NewCreateOrder(catalog, repo, newFakeIdem())

	in := CreateOrderInput{
		User:           testUser(),
		AddressID:      "A1",
		Lines:          []LineRequest{{ProductID: "P1", Quantity: 1}},
		IdempotencyKey: "key-1",
	}
	_, err := uc.Execute(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrPersistenceFailed)

	repo.createErr = nil
	order, err := uc.Execute(context.Background(), in)
	require.NoError(t, err, "retry with the same key after a failed write must not be rejected as a duplicate")
	assert.NotNil(t, order)
}

func TestCreateOrderKeyReleasedAfterValidationFailure(t *testing.T) {
	catalog := &fakeCatalog{products: map[string]domain.Product{
		"P1": {ID: "P1", PriceCents: 5000},
	}}
	repo := &fakeOrderRepo{byID: map[string]*domain.Order{}}
	uc := NewCreateOrder(catalog, repo, newFakeIdem())

	_, err := uc.Execute(context.Background(), CreateOrderInput{
		User:           testUser(),
		AddressID:      "A1",
		Lines:          []LineRequest{{ProductID: "MISSING", Quantity: 1}},
		IdempotencyKey: "key-1",
	})
	require.ErrorIs(t, err, domain.ErrNotFound)

	order, err := uc.Execute(context.Background(), CreateOrderInput{
		User:           testUser(),
		AddressID:      "A1",
		Lines:          []LineRequest{{ProductID: "P1", Quantity: 1}},
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err, "a corrected request may reuse the key once the first attempt failed")
	assert.NotNil(t, order)
}

func TestCreateOrderNoKeyCreatesDistinctOrders(t *testing.T) {
	catalog := &fakeCatalog{products: map[string]domain.Product{
		"P1": {ID: "P1", PriceCents: 5000},
	}}
	repo := &fakeOrderRepo{}
	uc := NewCreateOrder(catalog, repo, newFakeIdem())

	in := CreateOrderInput{
		User:      testUser(),
		AddressID: "A1",
		Lines:     []LineRequest{{ProductID: "P1", Quantity: 1}},
	}
	first, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)
	second, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}
