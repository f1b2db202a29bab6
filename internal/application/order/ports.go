package order

import (
	"context"
)

type IDGenerator interface {
	NewID() string
}

// IdempotencyStore remembers the order that answered a customer's idempotency key.
type IdempotencyStore interface {
	Lookup(ctx context.Context, customerID, key string) (orderID string, found bool, err error)
	Remember(ctx context.Context, customerID, key, orderID string) error
}
