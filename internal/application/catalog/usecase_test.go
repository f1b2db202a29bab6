package catalog

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"

	"github.com/shopspring/decimal"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func seeded(t *testing.T) *memory.Catalog {
	t.Helper()
	c := memory.NewCatalog()
	p, err := domain.NewProduct("A", "Book A", "Author", decimal.NewFromInt(10), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Add(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestReplenishPublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	uc := NewReplenishStockUseCase(seeded(t), pub, nil)

	p, err := uc.Execute(context.Background(), ReplenishStockInput{ProductID: "A", Quantity: 4})
	if err != nil {
		t.Fatal(err)
	}
	if p.Stock != 5 {
		t.Fatalf("stock = %d", p.Stock)
	}
	if len(pub.events) != 1 {
		t.Fatalf("events = %d", len(pub.events))
	}
	evt, ok := pub.events[0].(domain.StockReplenishedEvent)
	if !ok || evt.ProductID != "A" || evt.Added != 4 || evt.Stock != 5 {
		t.Fatalf("event = %+v", pub.events[0])
	}
}

func TestReplenishSurvivesPublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus down")}
	uc := NewReplenishStockUseCase(seeded(t), pub, nil)
	if _, err := uc.Execute(context.Background(), ReplenishStockInput{ProductID: "A", Quantity: 1}); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
}

func TestCatalogUseCaseErrors(t *testing.T) {
	c := seeded(t)
	ctx := context.Background()
	replenish := NewReplenishStockUseCase(c, nil, nil)
	reprice := NewUpdatePriceUseCase(c, nil)
	get := NewGetProductUseCase(c, nil)

	cases := []struct {
		name string
		call func() error
		want error
	}{
		{"replenish zero", func() error {
			_, err := replenish.Execute(ctx, ReplenishStockInput{ProductID: "A"})
			return err
		}, ErrInvalidRequest},
		{"replenish overflow", func() error {
			_, err := replenish.Execute(ctx, ReplenishStockInput{ProductID: "A", Quantity: math.MaxInt})
			return err
		}, ErrInvalidRequest},
		{"replenish unknown", func() error {
			_, err := replenish.Execute(ctx, ReplenishStockInput{ProductID: "Z", Quantity: 1})
			return err
		}, ErrProductNotFound},
		{"negative price", func() error {
			_, err := reprice.Execute(ctx, UpdatePriceInput{ProductID: "A", Price: decimal.NewFromInt(-1)})
			return err
		}, ErrInvalidRequest},
		{"reprice unknown", func() error {
			_, err := reprice.Execute(ctx, UpdatePriceInput{ProductID: "Z", Price: decimal.NewFromInt(1)})
			return err
		}, ErrProductNotFound},
		{"get blank id", func() error {
			_, err := get.Execute(ctx, " ")
			return err
		}, ErrInvalidRequest},
		{"get unknown", func() error {
			_, err := get.Execute(ctx, "Z")
			return err
		}, ErrProductNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestListProductsAndUpdatePrice(t *testing.T) {
	c := seeded(t)
	ctx := context.Background()

	p, err := NewUpdatePriceUseCase(c, nil).Execute(ctx, UpdatePriceInput{ProductID: "A", Price: decimal.RequireFromString("7.25")})
	if err != nil {
		t.Fatal(err)
	}
	if !p.Price.Equal(decimal.RequireFromString("7.25")) {
		t.Fatalf("price = %s", p.Price)
	}
	list, err := NewListProductsUseCase(c, nil).Execute(ctx, struct{}{})
	if err != nil || len(list) != 1 || !list[0].Price.Equal(p.Price) {
		t.Fatalf("list = %+v, %v", list, err)
	}
}
