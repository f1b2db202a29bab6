package memory

import (
	"context"
	"sync"
	"time"
)

// IdempotencyStore remembers which order answered a (customer, key) pair.
// Entries expire after ttl; a zero ttl keeps them for the life of the process.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
	ttl     time.Duration
	now     func() time.Time
}

type idempotencyEntry struct {
	orderID   string
	expiresAt time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		entries: make(map[string]idempotencyEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func idempotencyKey(customerID, key string) string {
	return customerID + "\x00" + key
}

func (s *IdempotencyStore) Lookup(ctx context.Context, customerID, key string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	k := idempotencyKey(customerID, key)
	e, ok := s.entries[k]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, k)
		return "", false, nil
	}
	return e.orderID, true, nil
}

// Remember keeps the first order recorded for a key; later calls do not overwrite it.
func (s *IdempotencyStore) Remember(ctx context.Context, customerID, key, orderID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	k := idempotencyKey(customerID, key)
	if e, ok := s.entries[k]; ok && (e.expiresAt.IsZero() || s.now().Before(e.expiresAt)) {
		return nil
	}
	var expires time.Time
	if s.ttl > 0 {
		expires = s.now().Add(s.ttl)
	}
	s.entries[k] = idempotencyEntry{orderID: orderID, expiresAt: expires}
	return nil
}
