package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getf1tickets/order-service/internal/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOutboxRepo struct {
	pending      []usecase.OutboxMessage
	sent         []int64
	failed       []int64
	nextAttempts []time.Time
	dead         []int64
}

func (f *fakeOutboxRepo) FetchPending(context.Context, int) ([]usecase.OutboxMessage, error) {
	out := f.pending
	f.pending = nil
	return out, nil
}

func (f *fakeOutboxRepo) MarkSent(_ context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(_ context.Context, id int64, next time.Time) error {
	f.failed = append(f.failed, id)
	f.nextAttempts = append(f.nextAttempts, next)
	return nil
}

func (f *fakeOutboxRepo) MarkDead(_ context.Context, id int64) error {
	f.dead = append(f.dead, id)
	return nil
}

type flakyPublisher struct {
	failures  int
	published [][]byte
}

func (p *flakyPublisher) Publish(_ context.Context, _, _ string, payload []byte) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, payload)
	return nil
}

func msg(id int64, retries int) usecase.OutboxMessage {
	return usecase.OutboxMessage{
		ID:         id,
		Exchange:   "order.crud",
		RoutingKey: "created",
		Payload:    json.RawMessage(`{"order":{"id":"O1"}}`),
		RetryCount: retries,
	}
}

func TestDrainMarksSentAfterConfirm(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []usecase.OutboxMessage{msg(1, 0), msg(2, 0)}}
	pub := &flakyPublisher{}
	d := NewOutboxDispatcher(repo, pub, testLogger())

	d.Drain(context.Background())

	assert.Equal(t, []int64{1, 2}, repo.sent)
	assert.Empty(t, repo.failed)
	assert.Len(t, pub.published, 2)
}

func TestDrainRetriesTransientFailure(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []usecase.OutboxMessage{msg(1, 0)}}
	pub := &flakyPublisher{failures: 1}
	d := NewOutboxDispatcher(repo, pub, testLogger())

	// first pass fails, row is rescheduled
	d.Drain(context.Background())
	assert.Empty(t, repo.sent)
	require.Equal(t, []int64{1}, repo.failed)

	// broker recovered; row comes back with a bumped retry count
	repo.pending = []usecase.OutboxMessage{msg(1, 1)}
	d.Drain(context.Background())
	assert.Equal(t, []int64{1}, repo.sent)
	assert.Len(t, pub.published, 1, "event delivered despite the transient failure")
}

func TestDrainBackoffCappedAtHighRetryCounts(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []usecase.OutboxMessage{msg(1, 500)}}
	pub := &flakyPublisher{failures: 1}
	d := NewOutboxDispatcher(repo, pub, testLogger())
	d.MaxRetries = 1000

	before := time.Now()
	d.Drain(context.Background())

	require.Len(t, repo.nextAttempts, 1)
	next := repo.nextAttempts[0]
	assert.True(t, next.After(before), "reschedule must stay in the future, got %v", next)
	assert.True(t, next.Before(before.Add(d.Backoff<<17)),
		"backoff must stop growing past the cap, got %v", next)
}

func TestDrainParksRowAfterMaxRetries(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []usecase.OutboxMessage{msg(7, 9)}}
	pub := &flakyPublisher{failures: 1}
	d := NewOutboxDispatcher(repo, pub, testLogger())
	d.MaxRetries = 10

	d.Drain(context.Background())

	assert.Equal(t, []int64{7}, repo.dead)
	assert.Empty(t, repo.failed)
}
