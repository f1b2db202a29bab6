package order

import "context"

// Ledger is the authoritative store of orders.
//
// Update runs fn against a private copy of the order under that order's own
// critical section and persists the copy only when fn returns nil.
type Ledger interface {
	Put(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, id string, fn func(*Order) error) (*Order, error)
	List(ctx context.Context, customerID string) ([]*Order, error)
}
