package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"github.com/shopspring/decimal"
)

var testCard = dompay.Details{CardNumber: "4242424242424242", Expiry: "12/99", CardHolder: "Test Buyer"}

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return fmt.Sprintf("ord-%d", s.n.Add(1)) }

// fakeProcessor approves everything unless authorize is set.
type fakeProcessor struct {
	calls     atomic.Int64
	authorize func(ctx context.Context, customerID string, amount decimal.Decimal) (dompay.Result, error)

	mu     sync.Mutex
	voided []string
	voidCh chan string
}

func (p *fakeProcessor) Authorize(ctx context.Context, customerID string, amount decimal.Decimal, _ dompay.Details) (dompay.Result, error) {
	n := p.calls.Add(1)
	if p.authorize != nil {
		return p.authorize(ctx, customerID, amount)
	}
	return dompay.Approved(fmt.Sprintf("tx-%d", n)), nil
}

func (p *fakeProcessor) Void(_ context.Context, ref string) error {
	p.mu.Lock()
	p.voided = append(p.voided, ref)
	p.mu.Unlock()
	if p.voidCh != nil {
		p.voidCh <- ref
	}
	return nil
}

// flakyLedger fails the first failPuts writes. With land set, a failing write
// is stored anyway, like a commit whose acknowledgement was lost.
type flakyLedger struct {
	*memory.Ledger
	failPuts int
	land     bool
	puts     atomic.Int64
}

func (l *flakyLedger) Put(ctx context.Context, o *domain.Order) error {
	n := l.puts.Add(1)
	if int(n) <= l.failPuts {
		if l.land {
			_ = l.Ledger.Put(ctx, o)
		}
		return errors.New("ledger unavailable")
	}
	return l.Ledger.Put(ctx, o)
}

type countingCounter struct {
	mu    sync.Mutex
	total float64
}

func (c *countingCounter) Add(delta float64, _ ...observability.Label) {
	c.mu.Lock()
	c.total += delta
	c.mu.Unlock()
}

func (c *countingCounter) Bind(...observability.Label) observability.BoundCounter {
	return boundCount{c}
}

func (c *countingCounter) value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

type boundCount struct{ c *countingCounter }

func (b boundCount) Add(delta float64) { b.c.Add(delta) }

// countingTel records counter totals per metric and discards everything else.
type countingTel struct {
	mu       sync.Mutex
	counters map[observability.MetricKey]*countingCounter
}

func newCountingTel() *countingTel {
	return &countingTel{counters: make(map[observability.MetricKey]*countingCounter)}
}

func (t *countingTel) Tracer() observability.Tracer   { return observability.NopTracer() }
func (t *countingTel) Logger() observability.Logger   { return observability.NopLogger() }
func (t *countingTel) Metrics() observability.Metrics { return t }

func (t *countingTel) Counter(key observability.MetricKey) observability.Counter {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counters[key]
	if !ok {
		c = &countingCounter{}
		t.counters[key] = c
	}
	return c
}

func (t *countingTel) Histogram(observability.MetricKey) observability.Histogram {
	return observability.NopHistogram()
}

func (t *countingTel) count(key observability.MetricKey) float64 {
	return t.Counter(key).(*countingCounter).value()
}

type fixture struct {
	catalog    *memory.Catalog
	ledger     *memory.Ledger
	deliveries *memory.DeliveryScheduler
	payments   *fakeProcessor
	orch       *Orchestrator
}

func newFixture(t *testing.T, opts Options, products ...*domcatalog.Product) *fixture {
	t.Helper()
	f := &fixture{
		catalog:    memory.NewCatalog(),
		ledger:     memory.NewLedger(),
		deliveries: memory.NewDeliveryScheduler(),
		payments:   &fakeProcessor{},
	}
	for _, p := range products {
		if err := f.catalog.Add(context.Background(), p); err != nil {
			t.Fatalf("seed %s: %v", p.ID, err)
		}
	}
	f.orch = NewOrchestrator(Dependencies{
		Catalog:     f.catalog,
		Ledger:      f.ledger,
		Payments:    f.payments,
		Deliveries:  f.deliveries,
		Idempotency: memory.NewIdempotencyStore(0),
		IDs:         &seqIDs{},
	}, opts, observability.Nop())
	return f
}

func product(t *testing.T, id, price string, stock int) *domcatalog.Product {
	t.Helper()
	p, err := domcatalog.NewProduct(id, "Book "+id, "Author "+id, decimal.RequireFromString(price), stock)
	if err != nil {
		t.Fatalf("new product %s: %v", id, err)
	}
	return p
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.catalog.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return p.Stock
}

func buy(customer string, lines ...LineInput) PlaceOrderInput {
	return PlaceOrderInput{
		CustomerID:      customer,
		Lines:           lines,
		Payment:         testCard,
		ShippingAddress: "1 Main St",
	}
}
