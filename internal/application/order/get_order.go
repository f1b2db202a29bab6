package order

import (
	"context"
	"strings"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseGetOrder   = "order.get"
	useCaseListOrders = "order.list"
)

type GetOrderUseCase struct {
	ledger domain.Ledger
	in     application.Instruments
}

func NewGetOrderUseCase(ledger domain.Ledger, tel observability.Observability) *GetOrderUseCase {
	return &GetOrderUseCase{ledger: ledger, in: application.NewInstruments(tel, orderService)}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, id string) (_ *domain.Order, err error) {
	ctx, probe := uc.in.Start(ctx, useCaseGetOrder, "GetOrder", attribute.String("order.id", id))
	defer func() { probe.End(err) }()

	if strings.TrimSpace(id) == "" {
		probe.Fail("INVALID_REQUEST")
		return nil, newValidation("order id is required")
	}
	o, err := uc.ledger.Get(ctx, id)
	if err != nil {
		probe.Fail("NOT_FOUND")
		return nil, wrapRepositoryError(err)
	}
	return o, nil
}

// ListOrdersUseCase lists orders, optionally narrowed to one customer.
type ListOrdersUseCase struct {
	ledger domain.Ledger
	in     application.Instruments
}

func NewListOrdersUseCase(ledger domain.Ledger, tel observability.Observability) *ListOrdersUseCase {
	return &ListOrdersUseCase{ledger: ledger, in: application.NewInstruments(tel, orderService)}
}

func (uc *ListOrdersUseCase) Execute(ctx context.Context, customerID string) (_ []*domain.Order, err error) {
	ctx, probe := uc.in.Start(ctx, useCaseListOrders, "ListOrders")
	defer func() { probe.End(err) }()

	orders, err := uc.ledger.List(ctx, customerID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	probe.Field("count", len(orders))
	return orders, nil
}
