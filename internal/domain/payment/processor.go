package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Processor authorizes a charge. A decline is a normal Result; an error means
// the request itself was malformed or the processor could not be reached.
type Processor interface {
	Authorize(ctx context.Context, customerID string, amount decimal.Decimal, details Details) (Result, error)
}

// Voider is implemented by processors that can cancel an authorization that
// completed after the caller stopped waiting for it.
type Voider interface {
	Void(ctx context.Context, transactionRef string) error
}
