package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog keeps products in memory. Each product has its own mutex guarding its
// stock and its outstanding reservations; the map lock is only held long enough
// to find the slot, so reservations for different products never wait on each other.
type Catalog struct {
	mu    sync.RWMutex
	slots map[string]*productSlot
}

type productSlot struct {
	mu      sync.Mutex
	product *domain.Product
	holds   map[string]int // reservation id -> held quantity
}

func NewCatalog() *Catalog {
	return &Catalog{
		slots: make(map[string]*productSlot),
	}
}

func (c *Catalog) slot(productID string) (*productSlot, error) {
	c.mu.RLock()
	s, ok := c.slots[productID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return s, nil
}

func (c *Catalog) Add(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return domain.ErrInvalidProduct
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.slots[p.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateProduct, p.ID)
	}
	c.slots[p.ID] = &productSlot{
		product: p.Clone(),
		holds:   make(map[string]int),
	}
	return nil
}

func (c *Catalog) Reserve(ctx context.Context, productID string, quantity int) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	if quantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	s, err := c.slot(productID)
	if err != nil {
		return domain.Reservation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.product.Deduct(quantity); err != nil {
		return domain.Reservation{}, err
	}
	r := domain.Reservation{
		ID:         uuid.NewString(),
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  s.product.Price,
		ReservedAt: time.Now().UTC(),
	}
	s.holds[r.ID] = quantity
	return r, nil
}

func (c *Catalog) Release(ctx context.Context, r domain.Reservation) error {
	_ = ctx
	s, err := c.slot(r.ProductID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	quantity, ok := s.holds[r.ID]
	if !ok {
		return nil
	}
	if err := s.product.Restock(quantity); err != nil {
		return err
	}
	delete(s.holds, r.ID)
	return nil
}

func (c *Catalog) Commit(ctx context.Context, r domain.Reservation) error {
	_ = ctx
	s, err := c.slot(r.ProductID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.holds[r.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrReservationNotHeld, r.ID)
	}
	delete(s.holds, r.ID)
	return nil
}

// HoldState reports whether a reservation is still held. Settled reservations
// are dropped, so released and committed tokens both report false.
func (c *Catalog) HoldState(r domain.Reservation) (domain.HoldState, bool) {
	s, err := c.slot(r.ProductID)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holds[r.ID]; !ok {
		return "", false
	}
	return domain.HoldActive, true
}

func (c *Catalog) Get(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx
	s, err := c.slot(productID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.product.Clone(), nil
}

func (c *Catalog) List(ctx context.Context) ([]*domain.Product, error) {
	_ = ctx

	c.mu.RLock()
	slots := make([]*productSlot, 0, len(c.slots))
	for _, s := range c.slots {
		slots = append(slots, s)
	}
	c.mu.RUnlock()

	out := make([]*domain.Product, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		out = append(out, s.product.Clone())
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Catalog) Replenish(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	_ = ctx
	s, err := c.slot(productID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.product.Restock(quantity); err != nil {
		return nil, err
	}
	return s.product.Clone(), nil
}

func (c *Catalog) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) (*domain.Product, error) {
	_ = ctx
	s, err := c.slot(productID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.product.Reprice(price); err != nil {
		return nil, err
	}
	return s.product.Clone(), nil
}
