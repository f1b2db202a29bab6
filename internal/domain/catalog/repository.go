package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Catalog owns product records and their available stock.
//
// Reserve is an atomic check-and-decrement relative to every other Reserve and
// Release on the same product; different products never contend. Release is
// idempotent per reservation and never undoes a committed reservation.
type Catalog interface {
	Reserve(ctx context.Context, productID string, quantity int) (Reservation, error)
	Release(ctx context.Context, r Reservation) error
	Commit(ctx context.Context, r Reservation) error

	Get(ctx context.Context, productID string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)

	Add(ctx context.Context, p *Product) error
	Replenish(ctx context.Context, productID string, quantity int) (*Product, error)
	UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) (*Product, error)
}
