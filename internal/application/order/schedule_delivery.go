package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domdelivery "github.com/Zhima-Mochi/minishop-orders/internal/domain/delivery"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseScheduleDelivery = "order.schedule_delivery"

type ScheduleDeliveryInput struct {
	OrderID string
	// Address overrides the shipping address captured with the order.
	Address string
	Courier string
}

// ScheduleDeliveryUseCase creates the delivery task of a confirmed order.
// Calling it again for the same order returns the task created the first time.
type ScheduleDeliveryUseCase struct {
	ledger    domain.Ledger
	scheduler domdelivery.Scheduler
	publisher domoutbox.Publisher
	in        application.Instruments
}

func NewScheduleDeliveryUseCase(
	ledger domain.Ledger,
	scheduler domdelivery.Scheduler,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *ScheduleDeliveryUseCase {
	return &ScheduleDeliveryUseCase{
		ledger:    ledger,
		scheduler: scheduler,
		publisher: publisher,
		in:        application.NewInstruments(tel, orderService),
	}
}

func (uc *ScheduleDeliveryUseCase) Execute(ctx context.Context, cmd ScheduleDeliveryInput) (_ *domdelivery.Task, err error) {
	ctx, probe := uc.in.Start(ctx, useCaseScheduleDelivery, "ScheduleDelivery",
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { probe.End(err) }()
	probe.Field("order_id", cmd.OrderID)
	logger := probe.Logger()

	if strings.TrimSpace(cmd.OrderID) == "" {
		probe.Fail("INVALID_REQUEST")
		return nil, newValidation("order id is required")
	}

	o, err := uc.ledger.Get(ctx, cmd.OrderID)
	if err != nil {
		probe.Fail("ORDER_LOOKUP_FAILED")
		return nil, wrapRepositoryError(err)
	}
	if !o.Status.Deliverable() {
		probe.Fail("INVALID_STATE")
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidState, o.ID, o.Status)
	}

	if o.Status == domain.StatusDeliveryScheduled && o.DeliveryTaskID != "" {
		task, err := uc.scheduler.Get(ctx, o.DeliveryTaskID)
		if err == nil {
			probe.Status("ALREADY_SCHEDULED")
			return task, nil
		}
		if !errors.Is(err, domdelivery.ErrNotFound) {
			probe.Fail("DELIVERY_LOOKUP_FAILED")
			return nil, fmt.Errorf("order: load delivery task: %w", err)
		}
	}

	address := strings.TrimSpace(cmd.Address)
	if address == "" {
		address = o.ShippingAddress
	}
	if address == "" {
		probe.Fail("INVALID_REQUEST")
		return nil, newValidation("delivery address is required")
	}

	// The task is created before the order record is touched so no ledger
	// lock is held while the scheduler takes its own.
	task, created, err := uc.scheduler.Create(ctx, o.ID, address, cmd.Courier)
	if err != nil {
		probe.Fail("DELIVERY_CREATE_FAILED")
		if errors.Is(err, domdelivery.ErrAddressRequired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("order: create delivery task: %w", err)
	}
	probe.Field("task_id", task.ID)

	if _, err := uc.ledger.Update(ctx, o.ID, func(cur *domain.Order) error {
		return cur.ScheduleDelivery(task.ID)
	}); err != nil {
		probe.Fail("ORDER_UPDATE_FAILED")
		return nil, wrapRepositoryError(err)
	}

	if !created {
		probe.Status("ALREADY_SCHEDULED")
		return task, nil
	}
	if uc.publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := uc.publisher.Publish(pubCtx, domdelivery.NewDeliveryScheduledEvent(task)); err != nil {
			logger.Warn("event_publish_failed",
				observability.F("event", "delivery.scheduled"),
				observability.F("error", err.Error()),
			)
		}
	}
	return task, nil
}
