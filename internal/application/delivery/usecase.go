package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/delivery"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	deliveryService       = "delivery-service"
	useCaseGetDelivery    = "delivery.get"
	useCaseListDeliveries = "delivery.list"
	useCaseUpdateStatus   = "delivery.update_status"
	publishTimeout        = 300 * time.Millisecond
)

var (
	ErrInvalidRequest = errors.New("delivery: invalid request")
	ErrNotFound       = domain.ErrNotFound
	ErrInvalidState   = domain.ErrInvalidStateTransition
)

type GetDeliveryUseCase struct {
	scheduler domain.Scheduler
	in        application.Instruments
}

func NewGetDeliveryUseCase(s domain.Scheduler, tel observability.Observability) *GetDeliveryUseCase {
	return &GetDeliveryUseCase{scheduler: s, in: application.NewInstruments(tel, deliveryService)}
}

func (uc *GetDeliveryUseCase) Execute(ctx context.Context, id string) (_ *domain.Task, err error) {
	ctx, probe := uc.in.Start(ctx, useCaseGetDelivery, "GetDelivery", attribute.String("delivery.id", id))
	defer func() { probe.End(err) }()

	if strings.TrimSpace(id) == "" {
		probe.Fail("INVALID_REQUEST")
		return nil, fmt.Errorf("%w: task id is required", ErrInvalidRequest)
	}
	task, err := uc.scheduler.Get(ctx, id)
	if err != nil {
		probe.Fail("NOT_FOUND")
		return nil, err
	}
	return task, nil
}

type ListDeliveriesUseCase struct {
	scheduler domain.Scheduler
	in        application.Instruments
}

func NewListDeliveriesUseCase(s domain.Scheduler, tel observability.Observability) *ListDeliveriesUseCase {
	return &ListDeliveriesUseCase{scheduler: s, in: application.NewInstruments(tel, deliveryService)}
}

func (uc *ListDeliveriesUseCase) Execute(ctx context.Context, _ struct{}) (_ []*domain.Task, err error) {
	ctx, probe := uc.in.Start(ctx, useCaseListDeliveries, "ListDeliveries")
	defer func() { probe.End(err) }()

	tasks, err := uc.scheduler.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("delivery: list: %w", err)
	}
	probe.Field("count", len(tasks))
	return tasks, nil
}

type UpdateStatusInput struct {
	TaskID string
	Status string
}

// UpdateStatusUseCase records courier progress on a task.
type UpdateStatusUseCase struct {
	scheduler domain.Scheduler
	publisher domoutbox.Publisher
	in        application.Instruments
}

func NewUpdateStatusUseCase(s domain.Scheduler, publisher domoutbox.Publisher, tel observability.Observability) *UpdateStatusUseCase {
	return &UpdateStatusUseCase{scheduler: s, publisher: publisher, in: application.NewInstruments(tel, deliveryService)}
}

func (uc *UpdateStatusUseCase) Execute(ctx context.Context, cmd UpdateStatusInput) (_ *domain.Task, err error) {
	ctx, probe := uc.in.Start(ctx, useCaseUpdateStatus, "UpdateDeliveryStatus",
		attribute.String("delivery.id", cmd.TaskID),
		attribute.String("delivery.status", cmd.Status),
	)
	defer func() { probe.End(err) }()
	probe.Field("task_id", cmd.TaskID)
	probe.Field("status_requested", cmd.Status)

	status, err := domain.ParseStatus(cmd.Status)
	if err != nil {
		probe.Fail("INVALID_REQUEST")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	before, err := uc.scheduler.Get(ctx, cmd.TaskID)
	if err != nil {
		probe.Fail("NOT_FOUND")
		return nil, err
	}
	task, err := uc.scheduler.UpdateStatus(ctx, cmd.TaskID, status)
	if err != nil {
		probe.Fail("TRANSITION_REJECTED")
		return nil, err
	}

	if before.Status != task.Status && uc.publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if perr := uc.publisher.Publish(pubCtx, domain.NewDeliveryStatusChangedEvent(task)); perr != nil {
			probe.Logger().Warn("event_publish_failed",
				observability.F("event", "delivery.status_changed"),
				observability.F("error", perr.Error()),
			)
		}
	}
	return task, nil
}
