package delivery

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound               = errors.New("delivery: task not found")
	ErrInvalidStatus          = errors.New("delivery: unknown status")
	ErrInvalidStateTransition = errors.New("delivery: invalid status transition")
	ErrAddressRequired        = errors.New("delivery: address is required")
)

const DefaultCourier = "local"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

var validNext = map[Status]map[Status]bool{
	StatusScheduled: {StatusInTransit: true, StatusFailed: true},
	StatusInTransit: {StatusDelivered: true, StatusFailed: true},
	StatusDelivered: {},
	StatusFailed:    {},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validNext[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Task is a delivery created for a confirmed order.
type Task struct {
	ID        string
	OrderID   string
	Address   string
	Courier   string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTask(id, orderID, address, courier string) (*Task, error) {
	if id == "" || orderID == "" {
		return nil, errors.New("delivery: task id and order id are required")
	}
	if address == "" {
		return nil, ErrAddressRequired
	}
	if courier == "" {
		courier = DefaultCourier
	}
	now := time.Now().UTC()
	return &Task{
		ID:        id,
		OrderID:   orderID,
		Address:   address,
		Courier:   courier,
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Advance moves the task to status. Setting the current status again is a no-op.
func (t *Task) Advance(status Status) error {
	if t.Status == status {
		return nil
	}
	if !CanTransition(t.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, status)
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
