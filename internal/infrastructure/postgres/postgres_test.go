package postgres

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// These tests need a disposable database: POSTGRES_TEST_DSN=postgres://... go test ./...
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return pool
}

func TestCatalogReserveReleaseCommit(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	cat := NewCatalog(pool)

	id := "pg-" + uuid.NewString()
	p, err := domcatalog.NewProduct(id, "Dune", "Frank Herbert", decimal.RequireFromString("14.99"), 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := cat.Add(ctx, p); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := cat.Add(ctx, p); !errors.Is(err, domcatalog.ErrDuplicateProduct) {
		t.Fatalf("second Add: err = %v", err)
	}

	r, err := cat.Reserve(ctx, id, 2)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !r.UnitPrice.Equal(decimal.RequireFromString("14.99")) {
		t.Fatalf("unit price = %s", r.UnitPrice)
	}
	if _, err := cat.Reserve(ctx, id, 2); !errors.Is(err, domcatalog.ErrInsufficientStock) {
		t.Fatalf("overdraw: err = %v", err)
	}
	if err := cat.Release(ctx, r); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := cat.Release(ctx, r); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	got, err := cat.Get(ctx, id)
	if err != nil || got.Stock != 3 {
		t.Fatalf("Get = %+v, %v; want stock 3", got, err)
	}

	sold, err := cat.Reserve(ctx, id, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := cat.Commit(ctx, sold); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := cat.Release(ctx, sold); err != nil {
		t.Fatalf("Release after Commit: %v", err)
	}
	if got, _ := cat.Get(ctx, id); got.Stock != 2 {
		t.Fatalf("stock after commit = %d, want 2", got.Stock)
	}
	if _, err := cat.Replenish(ctx, id, math.MaxInt32); !errors.Is(err, domcatalog.ErrStockOverflow) {
		t.Fatalf("overflowing Replenish: err = %v", err)
	}
}

func TestLedgerPutGetUpdate(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	ledger := NewLedger(pool)

	o, err := domorder.New("ord-"+uuid.NewString(), "alice", "k1", "1 Main St")
	if err != nil {
		t.Fatal(err)
	}
	line, _ := domorder.NewLine("A", "Book A", 2, decimal.RequireFromString("10"))
	_ = o.BeginReservation()
	_ = o.MarkReserved([]domorder.Line{line})
	_ = o.BeginAuthorization()
	_ = o.Confirm("tx-1")

	if err := ledger.Put(ctx, o); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ledger.Put(ctx, o); !errors.Is(err, domorder.ErrConflict) {
		t.Fatalf("second Put: err = %v", err)
	}
	got, err := ledger.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Total.Equal(decimal.RequireFromString("20")) || len(got.Lines) != 1 || got.Status != domorder.StatusConfirmed {
		t.Fatalf("Get = %+v", got)
	}
	if err := got.VerifyTotal(); err != nil {
		t.Fatal(err)
	}

	updated, err := ledger.Update(ctx, o.ID, func(cur *domorder.Order) error { return cur.ScheduleDelivery("task-1") })
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != domorder.StatusDeliveryScheduled {
		t.Fatalf("status = %s", updated.Status)
	}
	if _, err := ledger.Get(ctx, "missing-"+uuid.NewString()); !errors.Is(err, domorder.ErrNotFound) {
		t.Fatalf("missing: err = %v", err)
	}
}
