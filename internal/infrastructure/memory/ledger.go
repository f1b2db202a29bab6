package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
)

// Ledger stores orders in memory with one critical section per order.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]*orderRecord
}

type orderRecord struct {
	mu    sync.Mutex
	order *domain.Order
}

func NewLedger() *Ledger {
	return &Ledger{
		records: make(map[string]*orderRecord),
	}
}

func (l *Ledger) Put(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order ledger: id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[order.ID]; exists {
		return domain.ErrConflict
	}
	l.records[order.ID] = &orderRecord{order: order.Clone()}
	return nil
}

func (l *Ledger) record(id string) (*orderRecord, error) {
	l.mu.RLock()
	rec, ok := l.records[id]
	l.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx
	rec, err := l.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.order.Clone(), nil
}

func (l *Ledger) Update(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	_ = ctx
	rec, err := l.record(id)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	working := rec.order.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	rec.order = working
	return working.Clone(), nil
}

// List returns orders sorted by creation time; an empty customerID lists every order.
func (l *Ledger) List(ctx context.Context, customerID string) ([]*domain.Order, error) {
	_ = ctx

	l.mu.RLock()
	recs := make([]*orderRecord, 0, len(l.records))
	for _, rec := range l.records {
		recs = append(recs, rec)
	}
	l.mu.RUnlock()

	out := make([]*domain.Order, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if customerID == "" || rec.order.CustomerID == customerID {
			out = append(out, rec.order.Clone())
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
