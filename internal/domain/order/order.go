package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already exists")
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount          = errors.New("order: amount must be zero or greater")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrTotalMismatch          = errors.New("order: total does not match lines")
)

// Line is one product of an order. Quantity and UnitPrice are captured when the
// stock is reserved and never change afterwards.
type Line struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

func NewLine(productID, name string, quantity int, unitPrice decimal.Decimal) (Line, error) {
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return Line{}, ErrInvalidAmount
	}
	return Line{
		ProductID:   productID,
		ProductName: name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		LineTotal:   unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

type Order struct {
	ID              string
	CustomerID      string
	IdempotencyKey  string
	Lines           []Line
	Total           decimal.Decimal
	Status          Status
	PaymentRef      string
	FailureReason   string
	ShippingAddress string
	DeliveryTaskID  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func New(id, customerID, idempotencyKey, shippingAddress string) (*Order, error) {
	if id == "" {
		return nil, errors.New("order: id is required")
	}
	if customerID == "" {
		return nil, errors.New("order: customer id is required")
	}
	now := time.Now().UTC()
	return &Order{
		ID:              id,
		CustomerID:      customerID,
		IdempotencyKey:  idempotencyKey,
		ShippingAddress: shippingAddress,
		Total:           decimal.Zero,
		Status:          StatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// BeginReservation moves a fresh order into the reserving step.
func (o *Order) BeginReservation() error {
	return o.transition(StatusReserving)
}

// MarkReserved records the snapshotted lines and freezes the total.
func (o *Order) MarkReserved(lines []Line) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: no lines", ErrInvalidQuantity)
	}
	if err := o.transition(StatusReserved); err != nil {
		return err
	}
	o.Lines = append([]Line(nil), lines...)
	o.Total = sumLines(o.Lines)
	return nil
}

func (o *Order) RejectStock(reason string) error {
	if err := o.transition(StatusRejectedInsufficientStock); err != nil {
		return err
	}
	o.FailureReason = reason
	return nil
}

func (o *Order) BeginAuthorization() error {
	return o.transition(StatusAuthorizing)
}

func (o *Order) Confirm(paymentRef string) error {
	if paymentRef == "" {
		return errors.New("order: payment reference is required")
	}
	if err := o.transition(StatusConfirmed); err != nil {
		return err
	}
	o.PaymentRef = paymentRef
	o.FailureReason = ""
	return nil
}

func (o *Order) BeginCompensation(reason string) error {
	if err := o.transition(StatusCompensating); err != nil {
		return err
	}
	o.FailureReason = reason
	return nil
}

func (o *Order) Cancel() error {
	return o.transition(StatusCancelled)
}

// ScheduleDelivery links a delivery task. Repeating it with the same task is a no-op.
func (o *Order) ScheduleDelivery(taskID string) error {
	if taskID == "" {
		return errors.New("order: delivery task id is required")
	}
	if o.Status == StatusDeliveryScheduled && o.DeliveryTaskID == taskID {
		return nil
	}
	if err := o.transition(StatusDeliveryScheduled); err != nil {
		return err
	}
	o.DeliveryTaskID = taskID
	return nil
}

// VerifyTotal checks Total == sum(quantity * unit price).
func (o *Order) VerifyTotal() error {
	if want := sumLines(o.Lines); !want.Equal(o.Total) {
		return fmt.Errorf("%w: recorded %s, lines sum to %s", ErrTotalMismatch, o.Total, want)
	}
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = append([]Line(nil), o.Lines...)
	return &clone
}

func (o *Order) transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, o.Status, to)
	}
	o.Status = to
	o.touch()
	return nil
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

func sumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
