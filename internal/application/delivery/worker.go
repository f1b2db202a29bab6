package delivery

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/delivery"
	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"
)

const autoScheduleWorker = "delivery_auto_schedule_worker"

// AutoScheduleWorker books a delivery for every confirmed order that carries a
// shipping address.
type AutoScheduleWorker struct {
	subscriber domoutbox.Subscriber
	schedule   application.UseCase[apporder.ScheduleDeliveryInput, *domain.Task]
	log        observability.Logger
}

func NewAutoScheduleWorker(
	subscriber domoutbox.Subscriber,
	schedule application.UseCase[apporder.ScheduleDeliveryInput, *domain.Task],
	tel observability.Observability,
) *AutoScheduleWorker {
	return &AutoScheduleWorker{
		subscriber: subscriber,
		schedule:   schedule,
		log:        observability.Or(tel).Logger().With(observability.F("component", autoScheduleWorker)),
	}
}

func (w *AutoScheduleWorker) Start() {
	if w.subscriber == nil || w.schedule == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderConfirmedEvent{}.EventName(), w.handleOrderConfirmed)
}

func (w *AutoScheduleWorker) handleOrderConfirmed(ctx context.Context, e domoutbox.Event) error {
	logger := logctx.FromOr(ctx, w.log).With(observability.F("event", e.EventName()))

	evt, ok := e.(domorder.OrderConfirmedEvent)
	if !ok {
		return nil
	}
	if evt.ShippingAddress == "" {
		logger.Debug("delivery_not_scheduled_no_address", observability.F("order_id", evt.OrderID))
		return nil
	}

	task, err := w.schedule.Execute(ctx, apporder.ScheduleDeliveryInput{OrderID: evt.OrderID})
	if err != nil {
		if errors.Is(err, apporder.ErrInvalidState) {
			// already moved on; nothing to do
			return nil
		}
		logger.Warn("delivery_auto_schedule_failed",
			observability.F("order_id", evt.OrderID),
			observability.F("error", err.Error()),
		)
		return err
	}

	logger.Info("delivery_auto_scheduled",
		observability.F("order_id", evt.OrderID),
		observability.F("task_id", task.ID),
	)
	return nil
}
