package delivery

import "time"

// DeliveryScheduledEvent is emitted when a task is first created for an order.
type DeliveryScheduledEvent struct {
	TaskID     string
	OrderID    string
	Courier    string
	OccurredAt time.Time
}

func (DeliveryScheduledEvent) EventName() string { return "delivery.scheduled" }

func NewDeliveryScheduledEvent(t *Task) DeliveryScheduledEvent {
	return DeliveryScheduledEvent{
		TaskID:     t.ID,
		OrderID:    t.OrderID,
		Courier:    t.Courier,
		OccurredAt: time.Now().UTC(),
	}
}

// DeliveryStatusChangedEvent is emitted when a courier reports progress.
type DeliveryStatusChangedEvent struct {
	TaskID     string
	OrderID    string
	Status     Status
	OccurredAt time.Time
}

func (DeliveryStatusChangedEvent) EventName() string { return "delivery.status_changed" }

func NewDeliveryStatusChangedEvent(t *Task) DeliveryStatusChangedEvent {
	return DeliveryStatusChangedEvent{
		TaskID:     t.ID,
		OrderID:    t.OrderID,
		Status:     t.Status,
		OccurredAt: time.Now().UTC(),
	}
}
