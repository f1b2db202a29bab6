package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
)

func newOrder(t *testing.T, id, customer string) *domain.Order {
	t.Helper()
	o, err := domain.New(id, customer, "", "")
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestLedgerPutConflict(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	o := newOrder(t, "o1", "alice")

	if err := l.Put(ctx, o); err != nil {
		t.Fatal(err)
	}
	if err := l.Put(ctx, o); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second Put: err = %v", err)
	}
	if _, err := l.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get missing: err = %v", err)
	}
}

func TestLedgerUpdateDiscardsFailedChanges(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	_ = l.Put(ctx, newOrder(t, "o1", "alice"))

	boom := errors.New("boom")
	_, err := l.Update(ctx, "o1", func(o *domain.Order) error {
		o.CustomerID = "mallory"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	got, _ := l.Get(ctx, "o1")
	if got.CustomerID != "alice" {
		t.Fatalf("failed update persisted: customer = %s", got.CustomerID)
	}
}

func TestLedgerUpdateIsAtomicPerRecord(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	_ = l.Put(ctx, newOrder(t, "o1", "alice"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Update(ctx, "o1", func(o *domain.Order) error {
				o.FailureReason += "x"
				return nil
			})
			if err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := l.Get(ctx, "o1")
	if len(got.FailureReason) != 50 {
		t.Fatalf("lost updates: %d of 50 applied", len(got.FailureReason))
	}
}

func TestLedgerListFiltersByCustomer(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	for _, o := range []*domain.Order{newOrder(t, "o1", "alice"), newOrder(t, "o2", "bob"), newOrder(t, "o3", "alice")} {
		if err := l.Put(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	alice, _ := l.List(ctx, "alice")
	if len(alice) != 2 {
		t.Fatalf("alice has %d orders", len(alice))
	}
	all, _ := l.List(ctx, "")
	if len(all) != 3 {
		t.Fatalf("all = %d orders", len(all))
	}
}
