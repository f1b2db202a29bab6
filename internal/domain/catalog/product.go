package catalog

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound    = errors.New("catalog: product not found")
	ErrInvalidQuantity    = errors.New("catalog: quantity must be greater than zero")
	ErrInvalidPrice       = errors.New("catalog: price must be zero or greater")
	ErrInvalidProduct     = errors.New("catalog: product id is required")
	ErrInsufficientStock  = errors.New("catalog: insufficient stock")
	ErrDuplicateProduct   = errors.New("catalog: product already exists")
	ErrStockOverflow      = errors.New("catalog: stock would exceed the maximum")
	ErrReservationNotHeld = errors.New("catalog: reservation is not held")
)

// Product is a sellable item. Stock is only ever changed through Deduct and Restock.
type Product struct {
	ID        string
	Name      string
	Author    string
	Price     decimal.Decimal
	Stock     int
	UpdatedAt time.Time
}

func NewProduct(id, name, author string, price decimal.Decimal, stock int) (*Product, error) {
	if id == "" {
		return nil, ErrInvalidProduct
	}
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if stock < 0 {
		return nil, fmt.Errorf("%w: initial stock %d", ErrInvalidQuantity, stock)
	}
	return &Product{
		ID:        id,
		Name:      name,
		Author:    author,
		Price:     price,
		Stock:     stock,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Deduct removes quantity units from stock or fails without changing anything.
func (p *Product) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.Stock {
		return &StockError{ProductID: p.ID, Requested: quantity, Available: p.Stock}
	}
	p.Stock -= quantity
	p.touch()
	return nil
}

// Restock adds quantity units back to stock. Stock never wraps around.
func (p *Product) Restock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > math.MaxInt-p.Stock {
		return fmt.Errorf("%w: %s has %d, adding %d", ErrStockOverflow, p.ID, p.Stock, quantity)
	}
	p.Stock += quantity
	p.touch()
	return nil
}

func (p *Product) Reprice(price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	p.Price = price
	p.touch()
	return nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}

// StockError reports a reservation that asked for more than was available.
type StockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("catalog: insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
