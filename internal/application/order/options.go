package order

import "time"

const (
	DefaultHoldTimeout     = 5 * time.Second
	DefaultRetryBaseDelay  = 50 * time.Millisecond
	DefaultRetryMaxDelay   = 5 * time.Second
	DefaultRetryAlertAfter = 5
)

// Options tune the PlaceOrder workflow.
type Options struct {
	// HoldTimeout bounds how long reserved stock waits on payment authorization.
	HoldTimeout time.Duration
	// LedgerRetry governs rewriting a confirmed order that failed to land in the ledger.
	LedgerRetry RetryPolicy
}

// RetryPolicy is an exponential backoff without a give-up point. AlertAfter is
// the attempt number at which an operator alert is raised; retrying continues.
type RetryPolicy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	AlertAfter int
}

func (o Options) withDefaults() Options {
	if o.HoldTimeout <= 0 {
		o.HoldTimeout = DefaultHoldTimeout
	}
	if o.LedgerRetry.BaseDelay <= 0 {
		o.LedgerRetry.BaseDelay = DefaultRetryBaseDelay
	}
	if o.LedgerRetry.MaxDelay < o.LedgerRetry.BaseDelay {
		o.LedgerRetry.MaxDelay = DefaultRetryMaxDelay
		if o.LedgerRetry.MaxDelay < o.LedgerRetry.BaseDelay {
			o.LedgerRetry.MaxDelay = o.LedgerRetry.BaseDelay
		}
	}
	if o.LedgerRetry.AlertAfter <= 0 {
		o.LedgerRetry.AlertAfter = DefaultRetryAlertAfter
	}
	return o
}

func (p RetryPolicy) next(delay time.Duration) time.Duration {
	delay *= 2
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
