package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderConfirmedEvent is emitted once payment is authorized and the order is in the ledger.
type OrderConfirmedEvent struct {
	OrderID         string
	CustomerID      string
	Total           decimal.Decimal
	PaymentRef      string
	ShippingAddress string
	OccurredAt      time.Time
}

func (OrderConfirmedEvent) EventName() string { return "order.confirmed" }

func NewOrderConfirmedEvent(o *Order) OrderConfirmedEvent {
	return OrderConfirmedEvent{
		OrderID:         o.ID,
		CustomerID:      o.CustomerID,
		Total:           o.Total,
		PaymentRef:      o.PaymentRef,
		ShippingAddress: o.ShippingAddress,
		OccurredAt:      time.Now().UTC(),
	}
}

// OrderRejectedEvent is emitted when stock could not be reserved for every line.
type OrderRejectedEvent struct {
	OrderID    string
	CustomerID string
	ProductID  string
	Reason     string
	OccurredAt time.Time
}

func (OrderRejectedEvent) EventName() string { return "order.rejected" }

func NewOrderRejectedEvent(o *Order, productID string) OrderRejectedEvent {
	return OrderRejectedEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		ProductID:  productID,
		Reason:     o.FailureReason,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted after a failed payment has been compensated.
type OrderCancelledEvent struct {
	OrderID    string
	CustomerID string
	Reason     string
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Reason:     o.FailureReason,
		OccurredAt: time.Now().UTC(),
	}
}
