package domain

import (
	"errors"
	"time"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	// ErrNotFound covers both unresolved products and an address the user
	// does not own. Callers cannot tell the two apart by error kind.
	ErrNotFound = errors.New("not found")

	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrOutOfRange        = errors.New("amount out of range")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrPublishFailed     = errors.New("publish failed")
)

// Product is read-only from the order workflow's perspective; the catalog
// owns it.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
}

type Address struct {
	ID      string
	UserID  string
	Street  string
	City    string
	Zip     string
	Country string
}

// User is the immutable request context supplied by the auth collaborator:
// the authenticated user plus their known delivery addresses.
type User struct {
	ID        string
	Email     string
	Admin     bool
	Addresses []Address
}

func (u User) HasAddress(id string) bool {
	for _, a := range u.Addresses {
		if a.ID == id {
			return true
		}
	}
	return false
}

// OrderLine references a product by id; the price is not stored on the line,
// it is baked into the order totals at creation time.
type OrderLine struct {
	ProductID string
	Quantity  int64
}

// Order is the header record. All amounts are cents in a single currency.
type Order struct {
	ID            string
	UserID        string
	Status        Status
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
	AddressID     string
	CreatedAt     time.Time
}

func (o *Order) Validate() error {
	if o.SubtotalCents < 0 || o.TotalCents < 0 || o.DiscountCents < 0 {
		return ErrOutOfRange
	}
	if o.TotalCents != o.SubtotalCents-o.DiscountCents {
		return ErrOutOfRange
	}
	return nil
}
