package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/getf1tickets/order-service/internal/usecase"
)

var (
	outboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox rows successfully delivered to the broker",
	})
	outboxFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Publish attempts that failed and were scheduled for retry",
	})
	outboxDead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_dead_total",
		Help: "Outbox rows parked after exhausting retries",
	})
)

// OutboxDispatcher drains pending outbox rows to the broker. Delivery is
// at-least-once: a row is marked sent only after the broker confirms, so a
// crash between publish and mark re-sends the event.
type OutboxDispatcher struct {
	Repo       usecase.OutboxRepo
	Publisher  usecase.EventPublisher
	Log        *slog.Logger
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Backoff    time.Duration
}

func NewOutboxDispatcher(repo usecase.OutboxRepo, pub usecase.EventPublisher, log *slog.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		Repo:       repo,
		Publisher:  pub,
		Log:        log,
		Interval:   500 * time.Millisecond,
		BatchSize:  100,
		MaxRetries: 10,
		Backoff:    time.Second,
	}
}

// Start polls until ctx is cancelled. Blocking; run it in a goroutine.
func (d *OutboxDispatcher) Start(ctx context.Context) {
	t := time.NewTicker(d.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.Drain(ctx)
		}
	}
}

// Drain processes one batch. Exported so a commit hook or test can flush
// eagerly instead of waiting for the next tick.
func (d *OutboxDispatcher) Drain(ctx context.Context) {
	msgs, err := d.Repo.FetchPending(ctx, d.BatchSize)
	if err != nil {
		d.Log.Error("outbox fetch failed", "err", err)
		return
	}
	for _, m := range msgs {
		if err := d.Publisher.Publish(ctx, m.Exchange, m.RoutingKey, m.Payload); err != nil {
			outboxFailures.Inc()
			d.Log.Warn("outbox publish failed",
				"outbox_id", m.ID, "routing_key", m.RoutingKey,
				"retry_count", m.RetryCount, "err", err)
			if m.RetryCount+1 >= d.MaxRetries {
				outboxDead.Inc()
				d.Log.Error("outbox row parked", "outbox_id", m.ID)
				if err := d.Repo.MarkDead(ctx, m.ID); err != nil {
					d.Log.Error("outbox mark dead failed", "outbox_id", m.ID, "err", err)
				}
				continue
			}
			next := time.Now().Add(d.backoffAfter(m.RetryCount))
			if err := d.Repo.MarkFailed(ctx, m.ID, next); err != nil {
				d.Log.Error("outbox mark failed failed", "outbox_id", m.ID, "err", err)
			}
			continue
		}
		outboxPublished.Inc()
		if err := d.Repo.MarkSent(ctx, m.ID); err != nil {
			// Row stays pending; the event will go out again. Consumers
			// de-duplicate by order id.
			d.Log.Warn("outbox mark sent failed", "outbox_id", m.ID, "err", err)
		}
	}
}

// backoffAfter doubles the delay per attempt, capped so large retry counts
// cannot overflow the shift into a negative duration.
func (d *OutboxDispatcher) backoffAfter(retryCount int) time.Duration {
	const maxShift = 16
	shift := retryCount
	if shift > maxShift {
		shift = maxShift
	}
	return d.Backoff << uint(shift)
}
