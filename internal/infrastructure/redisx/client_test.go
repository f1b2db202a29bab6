package redisx

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIdempotencyKeyIsUnambiguous(t *testing.T) {
	a := idempotencyKey("a:b", "c")
	b := idempotencyKey("a", "b:c")
	if a == b {
		t.Fatalf("keys collide: %q", a)
	}
	if got, want := idempotencyKey("alice", "k1"), "idem:order:place:5:alice:k1"; got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
}

func TestNewIdempotencyStoreDefaultsTTL(t *testing.T) {
	if s := NewIdempotencyStore(nil, 0); s.ttl != TTLIdempotency {
		t.Fatalf("ttl = %v", s.ttl)
	}
	if s := NewIdempotencyStore(nil, time.Minute); s.ttl != time.Minute {
		t.Fatalf("ttl = %v", s.ttl)
	}
}

func TestIdempotencyStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	rdb := New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	if err := Ping(ctx, rdb); err != nil {
		t.Fatal(err)
	}

	store := NewIdempotencyStore(rdb, time.Minute)
	customer := "c-" + uuid.NewString()
	if _, found, err := store.Lookup(ctx, customer, "k1"); err != nil || found {
		t.Fatalf("Lookup before Remember = %v, %v", found, err)
	}
	if err := store.Remember(ctx, customer, "k1", "order-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Remember(ctx, customer, "k1", "order-2"); err != nil {
		t.Fatal(err)
	}
	id, found, err := store.Lookup(ctx, customer, "k1")
	if err != nil || !found || id != "order-1" {
		t.Fatalf("Lookup = %q, %v, %v; want order-1", id, found, err)
	}
}
