package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/getf1tickets/order-service/internal/entity"
	"github.com/getf1tickets/order-service/internal/usecase"
)

// MySQLUserRepo loads the request context for the auth middleware: the user
// row plus their delivery addresses.
type MySQLUserRepo struct{ db *sql.DB }

func NewMySQLUserRepo(db *sql.DB) *MySQLUserRepo { return &MySQLUserRepo{db: db} }

func (r *MySQLUserRepo) GetWithAddresses(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id,email,is_admin FROM users WHERE id=?`, userID).
		Scan(&u.ID, &u.Email, &u.Admin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id,user_id,street,city,zip,country FROM user_addresses WHERE user_id=?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a domain.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.Zip, &a.Country); err != nil {
			return nil, err
		}
		u.Addresses = append(u.Addresses, a)
	}
	return &u, rows.Err()
}

var _ usecase.UserDirectory = (*MySQLUserRepo)(nil)
