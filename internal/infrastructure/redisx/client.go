package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// idem:order:place:{len(customer)}:{customer}:{key} -> order_id
	KeyIdemOrderPlace = "idem:order:place:%d:%s:%s"

	dialTimeout = 2 * time.Second
)

var TTLIdempotency = 24 * time.Hour

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  dialTimeout,
		ReadTimeout:  dialTimeout,
		WriteTimeout: dialTimeout,
	})
}

// Ping fails fast when the server is unreachable at startup.
func Ping(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func idempotencyKey(customerID, key string) string {
	return fmt.Sprintf(KeyIdemOrderPlace, len(customerID), customerID, key)
}

// IdempotencyStore keeps idempotency keys in Redis so replays survive a restart
// and are shared between replicas.
type IdempotencyStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewIdempotencyStore uses TTLIdempotency when ttl is zero or negative.
func NewIdempotencyStore(rdb redis.Cmdable, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *IdempotencyStore) Lookup(ctx context.Context, customerID, key string) (string, bool, error) {
	orderID, err := s.rdb.Get(ctx, idempotencyKey(customerID, key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return orderID, true, nil
}

// Remember keeps the first order recorded for a key.
func (s *IdempotencyStore) Remember(ctx context.Context, customerID, key, orderID string) error {
	if err := s.rdb.SetNX(ctx, idempotencyKey(customerID, key), orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}
