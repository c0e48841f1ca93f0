package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/getf1tickets/order-service/internal/usecase"
)
// MySQLOutboxRepo is the dispatcher's view of the outbox table. Rows are
// inserted by MySQLOrderRepo.Create inside the order transaction.
type MySQLOutboxRepo struct{ db *sql.DB }

func NewMySQLOutboxRepo(db *sql.DB) *MySQLOutboxRepo { return &MySQLOutboxRepo{db: db} }

func (r *MySQLOutboxRepo) FetchPending(ctx context.Context, limit int) ([]usecase.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,exchange_name,routing_key,payload,retry_count
FROM outbox
WHERE status='PENDING' AND next_attempt_at <= NOW()
ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usecase.OutboxMessage
	for rows.Next() {
		var m usecase.OutboxMessage
		var payload []byte
		if err := rows.Scan(&m.ID, &m.Exchange, &m.RoutingKey, &payload, &m.RetryCount); err != nil {
			return nil, err
		}
		m.Payload = payload
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MySQLOutboxRepo) MarkSent(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE outbox SET status='SENT', sent_at=NOW() WHERE id=?`, id)
}

func (r *MySQLOutboxRepo) MarkFailed(ctx context.Context, id int64, nextAttempt time.Time) error {
	return r.exec(ctx, `
UPDATE outbox SET retry_count=retry_count+1, next_attempt_at=? WHERE id=?`, nextAttempt, id)
}

// MarkDead parks a row that exhausted its retries; it stays visible for
// operators but the dispatcher skips it.
func (r *MySQLOutboxRepo) MarkDead(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE outbox SET status='DEAD' WHERE id=?`, id)
}

func (r *MySQLOutboxRepo) exec(ctx context.Context, q string, args ...any) error {
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

var _ usecase.OutboxRepo = (*MySQLOutboxRepo)(nil)
