package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation is the token returned by Reserve. It identifies a provisional
// decrement of one product's stock and carries the unit price seen at that moment.
type Reservation struct {
	ID         string
	ProductID  string
	Quantity   int
	UnitPrice  decimal.Decimal
	ReservedAt time.Time
}

// HoldState tracks what happened to a reservation after it was granted.
type HoldState string

const (
	HoldActive    HoldState = "held"
	HoldReleased  HoldState = "released"
	HoldCommitted HoldState = "committed"
)
