package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/getf1tickets/order-service/internal/entity"
	"github.com/getf1tickets/order-service/internal/usecase"
)

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

// Create writes the order header, every line, and the order-created outbox
// row in one transaction. Either all rows commit or none do; no reader ever
// observes an order with a partial set of lines.
func (r *MySQLOrderRepo) Create(ctx context.Context, o *domain.Order, lines []domain.OrderLine, event usecase.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO orders (id,user_id,status,subtotal_cents,discount_cents,total_cents,address_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		o.ID, o.UserID, string(o.Status), o.SubtotalCents, o.DiscountCents, o.TotalCents,
		o.AddressID, o.CreatedAt, o.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, l := range lines {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO order_products (order_id,product_id,quantity) VALUES (?,?,?)`,
			o.ID, l.ProductID, l.Quantity,
		); err != nil {
			return fmt.Errorf("insert line %s: %w", l.ProductID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO outbox (exchange_name,routing_key,payload,status,retry_count,next_attempt_at,created_at)
VALUES (?,?,?,'PENDING',0,NOW(),NOW())`,
		event.Exchange, event.RoutingKey, []byte(event.Payload),
	); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,user_id,status,subtotal_cents,discount_cents,total_cents,address_id,created_at
FROM orders WHERE id=?`, id)
	return scanOrder(row)
}

// GetDetail joins lines with their catalog products and the delivery
// address. The address join is optional: a removed address leaves the field
// nil rather than failing the read.
func (r *MySQLOrderRepo) GetDetail(ctx context.Context, id string) (*usecase.OrderDetail, error) {
	o, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &usecase.OrderDetail{Order: *o}

	rows, err := r.db.QueryContext(ctx, `
SELECT op.product_id, op.quantity, p.name, p.price_cents
FROM order_products op
JOIN products p ON p.id = op.product_id
WHERE op.order_id=?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l usecase.OrderLineDetail
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.Name, &l.PriceCents); err != nil {
			return nil, err
		}
		detail.Products = append(detail.Products, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var a domain.Address
	err = r.db.QueryRowContext(ctx, `
SELECT id,user_id,street,city,zip,country FROM user_addresses WHERE id=?`, o.AddressID).
		Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.Zip, &a.Country)
	switch {
	case err == nil:
		detail.Address = &a
	case errors.Is(err, sql.ErrNoRows):
		// keep Address nil
	default:
		return nil, err
	}
	return detail, nil
}

// UpdateStatusIf applies a guarded transition; false means nothing matched
// (unknown id or status already moved on).
func (r *MySQLOrderRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET status=?, updated_at=NOW() WHERE id=? AND status=?`,
		string(to), id, string(from))
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *MySQLOrderRepo) CompletedTotals(ctx context.Context, since time.Time) (int64, int64, error) {
	var count, revenue int64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(total_cents),0)
FROM orders WHERE status=? AND created_at >= ?`,
		string(domain.StatusCompleted), since).Scan(&count, &revenue)
	return count, revenue, err
}

func (r *MySQLOrderRepo) CompletedSince(ctx context.Context, since time.Time) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,user_id,status,subtotal_cents,discount_cents,total_cents,address_id,created_at
FROM orders WHERE status=? AND created_at >= ? ORDER BY created_at`,
		string(domain.StatusCompleted), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(&o.ID, &o.UserID, &status, &o.SubtotalCents, &o.DiscountCents,
		&o.TotalCents, &o.AddressID, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)
	return &o, nil
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
