package order

import (
	"errors"
	"fmt"

	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
)

var (
	ErrInvalidRequest    = errors.New("order: invalid request")
	ErrProductNotFound   = domcatalog.ErrProductNotFound
	ErrInsufficientStock = domcatalog.ErrInsufficientStock
	ErrPaymentDeclined   = errors.New("order: payment declined")
	ErrPaymentTimeout    = errors.New("order: payment timed out")
	ErrOrderNotFound     = domain.ErrNotFound
	ErrInvalidState      = errors.New("order: invalid state")
	ErrRepository        = errors.New("order: repository failure")
)

// StockError is returned when one line of an order could not be reserved.
// Every reservation already taken for the order has been released.
type StockError struct {
	OrderID   string
	ProductID string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("order: insufficient stock for %s (requested %d, available %d)", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// PaymentError is returned when authorization did not succeed. The order's
// reservations have been released.
type PaymentError struct {
	OrderID string
	Reason  string
	Timeout bool
	Cause   error
}

func (e *PaymentError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("order: payment timed out for %s", e.OrderID)
	}
	return fmt.Sprintf("order: payment declined for %s: %s", e.OrderID, e.Reason)
}

func (e *PaymentError) Unwrap() []error {
	base := ErrPaymentDeclined
	if e.Timeout {
		base = ErrPaymentTimeout
	}
	if e.Cause != nil {
		return []error{base, e.Cause}
	}
	return []error{base}
}

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrOrderNotFound
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
