package order

import (
	"context"

	appcatalog "github.com/Zhima-Mochi/minishop-orders/internal/application/catalog"
	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domdelivery "github.com/Zhima-Mochi/minishop-orders/internal/domain/delivery"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
)

// Dependencies are the stores and collaborators the orchestrator is built from.
type Dependencies struct {
	Catalog     domcatalog.Catalog
	Ledger      domain.Ledger
	Payments    dompay.Processor
	Deliveries  domdelivery.Scheduler
	Idempotency IdempotencyStore
	IDs         IDGenerator
	Publisher   domoutbox.Publisher
}

// Orchestrator is the entry point callers use to buy, look up and ship orders.
type Orchestrator struct {
	placeOrder       *PlaceOrderUseCase
	getOrder         *GetOrderUseCase
	listOrders       *ListOrdersUseCase
	scheduleDelivery *ScheduleDeliveryUseCase
	getProduct       *appcatalog.GetProductUseCase
	listProducts     *appcatalog.ListProductsUseCase
}

func NewOrchestrator(deps Dependencies, opts Options, tel observability.Observability) *Orchestrator {
	return &Orchestrator{
		placeOrder: NewPlaceOrderUseCase(
			deps.Catalog, deps.Ledger, deps.Payments, deps.Idempotency, deps.IDs, deps.Publisher, opts, tel,
		),
		getOrder:         NewGetOrderUseCase(deps.Ledger, tel),
		listOrders:       NewListOrdersUseCase(deps.Ledger, tel),
		scheduleDelivery: NewScheduleDeliveryUseCase(deps.Ledger, deps.Deliveries, deps.Publisher, tel),
		getProduct:       appcatalog.NewGetProductUseCase(deps.Catalog, tel),
		listProducts:     appcatalog.NewListProductsUseCase(deps.Catalog, tel),
	}
}

func (o *Orchestrator) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	return o.placeOrder.Execute(ctx, in)
}

func (o *Orchestrator) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return o.getOrder.Execute(ctx, id)
}

func (o *Orchestrator) ListOrders(ctx context.Context, customerID string) ([]*domain.Order, error) {
	return o.listOrders.Execute(ctx, customerID)
}

func (o *Orchestrator) ScheduleDelivery(ctx context.Context, in ScheduleDeliveryInput) (*domdelivery.Task, error) {
	return o.scheduleDelivery.Execute(ctx, in)
}

func (o *Orchestrator) GetProduct(ctx context.Context, id string) (*domcatalog.Product, error) {
	return o.getProduct.Execute(ctx, id)
}

func (o *Orchestrator) ListProducts(ctx context.Context) ([]*domcatalog.Product, error) {
	return o.listProducts.Execute(ctx, struct{}{})
}
