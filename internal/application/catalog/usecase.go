package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	catalogService        = "catalog-service"
	useCaseGetProduct     = "catalog.get"
	useCaseListProducts   = "catalog.list"
	useCaseReplenishStock = "catalog.replenish"
	useCaseUpdatePrice    = "catalog.update_price"
	publishPeer           = "outbox"
	publishTimeout        = 300 * time.Millisecond
)

var (
	ErrInvalidRequest  = errors.New("catalog: invalid request")
	ErrProductNotFound = domain.ErrProductNotFound
)

func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return err
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidPrice), errors.Is(err, domain.ErrStockOverflow):
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	default:
		return fmt.Errorf("catalog: %w", err)
	}
}

type GetProductUseCase struct {
	catalog domain.Catalog
	in      application.Instruments
}

func NewGetProductUseCase(c domain.Catalog, tel observability.Observability) *GetProductUseCase {
	return &GetProductUseCase{catalog: c, in: application.NewInstruments(tel, catalogService)}
}

func (uc *GetProductUseCase) Execute(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, probe := uc.in.Start(ctx, useCaseGetProduct, "GetProduct", attribute.String("product.id", id))
	defer func() { probe.End(err) }()

	if strings.TrimSpace(id) == "" {
		probe.Fail("INVALID_REQUEST")
		return nil, fmt.Errorf("%w: product id is required", ErrInvalidRequest)
	}
	p, err := uc.catalog.Get(ctx, id)
	if err != nil {
		probe.Fail("LOOKUP_FAILED")
		return nil, classify(err)
	}
	return p, nil
}

type ListProductsUseCase struct {
	catalog domain.Catalog
	in      application.Instruments
}

func NewListProductsUseCase(c domain.Catalog, tel observability.Observability) *ListProductsUseCase {
	return &ListProductsUseCase{catalog: c, in: application.NewInstruments(tel, catalogService)}
}

func (uc *ListProductsUseCase) Execute(ctx context.Context, _ struct{}) (_ []*domain.Product, err error) {
	ctx, probe := uc.in.Start(ctx, useCaseListProducts, "ListProducts")
	defer func() { probe.End(err) }()

	products, err := uc.catalog.List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	probe.Field("count", len(products))
	return products, nil
}

type ReplenishStockInput struct {
	ProductID string
	Quantity  int
}

// ReplenishStockUseCase adds units back to a product, e.g. after a delivery from a supplier.
type ReplenishStockUseCase struct {
	catalog   domain.Catalog
	publisher domoutbox.Publisher
	in        application.Instruments
}

func NewReplenishStockUseCase(c domain.Catalog, publisher domoutbox.Publisher, tel observability.Observability) *ReplenishStockUseCase {
	return &ReplenishStockUseCase{catalog: c, publisher: publisher, in: application.NewInstruments(tel, catalogService)}
}

func (uc *ReplenishStockUseCase) Execute(ctx context.Context, cmd ReplenishStockInput) (_ *domain.Product, err error) {
	ctx, probe := uc.in.Start(ctx, useCaseReplenishStock, "ReplenishStock",
		attribute.String("product.id", cmd.ProductID),
		attribute.Int("product.quantity", cmd.Quantity),
	)
	defer func() { probe.End(err) }()
	probe.Field("product_id", cmd.ProductID)
	probe.Field("quantity", cmd.Quantity)

	if cmd.Quantity <= 0 {
		probe.Fail("INVALID_REQUEST")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, domain.ErrInvalidQuantity)
	}
	p, err := uc.catalog.Replenish(ctx, cmd.ProductID, cmd.Quantity)
	if err != nil {
		probe.Fail("REPLENISH_FAILED")
		return nil, classify(err)
	}

	if uc.publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		started := time.Now()
		if perr := uc.publisher.Publish(pubCtx, domain.NewStockReplenishedEvent(p, cmd.Quantity)); perr != nil {
			probe.External(publishPeer, "catalog.stock_replenished", "error", started)
			probe.Logger().Warn("event_publish_failed", observability.F("error", perr.Error()))
		} else {
			probe.External(publishPeer, "catalog.stock_replenished", "success", started)
		}
	}
	return p, nil
}

type UpdatePriceInput struct {
	ProductID string
	Price     decimal.Decimal
}

// UpdatePriceUseCase changes the list price. Orders that already reserved
// stock keep the price captured at reservation time.
type UpdatePriceUseCase struct {
	catalog domain.Catalog
	in      application.Instruments
}

func NewUpdatePriceUseCase(c domain.Catalog, tel observability.Observability) *UpdatePriceUseCase {
	return &UpdatePriceUseCase{catalog: c, in: application.NewInstruments(tel, catalogService)}
}

func (uc *UpdatePriceUseCase) Execute(ctx context.Context, cmd UpdatePriceInput) (_ *domain.Product, err error) {
	ctx, probe := uc.in.Start(ctx, useCaseUpdatePrice, "UpdatePrice",
		attribute.String("product.id", cmd.ProductID),
	)
	defer func() { probe.End(err) }()
	probe.Field("product_id", cmd.ProductID)
	probe.Field("price", cmd.Price.String())

	if cmd.Price.IsNegative() {
		probe.Fail("INVALID_REQUEST")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, domain.ErrInvalidPrice)
	}
	p, err := uc.catalog.UpdatePrice(ctx, cmd.ProductID, cmd.Price)
	if err != nil {
		probe.Fail("UPDATE_FAILED")
		return nil, classify(err)
	}
	return p, nil
}
