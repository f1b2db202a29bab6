package order

type Status string

const (
	StatusCreated                   Status = "created"
	StatusReserving                 Status = "reserving"
	StatusReserved                  Status = "reserved"
	StatusAuthorizing               Status = "authorizing"
	StatusConfirmed                 Status = "confirmed"
	StatusRejectedInsufficientStock Status = "rejected_insufficient_stock"
	StatusCompensating              Status = "compensating"
	StatusCancelled                 Status = "cancelled"
	StatusDeliveryScheduled         Status = "delivery_scheduled"
)

// validNext lists the lifecycle edges. Anything not listed is rejected.
var validNext = map[Status]map[Status]bool{
	StatusCreated:                   {StatusReserving: true},
	StatusReserving:                 {StatusReserved: true, StatusRejectedInsufficientStock: true},
	StatusReserved:                  {StatusAuthorizing: true},
	StatusAuthorizing:               {StatusConfirmed: true, StatusCompensating: true},
	StatusCompensating:              {StatusCancelled: true},
	StatusConfirmed:                 {StatusDeliveryScheduled: true},
	StatusRejectedInsufficientStock: {},
	StatusCancelled:                 {},
	StatusDeliveryScheduled:         {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// Deliverable reports whether a delivery may be scheduled (or already was) for the status.
func (s Status) Deliverable() bool {
	return s == StatusConfirmed || s == StatusDeliveryScheduled
}
