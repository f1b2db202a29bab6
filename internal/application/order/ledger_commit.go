package order

import (
	"context"
	"errors"
	"time"

	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
)

// releaseAttempts caps retries of a failing Release during compensation.
const releaseAttempts = 10

// recordConfirmed writes a paid order to the ledger and does not return until
// the write has landed. A paid order is never rolled back, so the only way out
// of a failing ledger is to keep trying and tell an operator.
func (uc *PlaceOrderUseCase) recordConfirmed(ctx context.Context, logger observability.Logger, o *domain.Order) int {
	ctx = context.WithoutCancel(ctx)
	policy := uc.opts.LedgerRetry
	delay := policy.BaseDelay

	for attempt := 1; ; attempt++ {
		err := uc.ledger.Put(ctx, o)
		if err == nil {
			return attempt
		}
		if errors.Is(err, domain.ErrConflict) && uc.alreadyRecorded(ctx, o) {
			// an earlier attempt landed even though it reported failure
			return attempt
		}

		uc.ledgerRetries.Add(1)
		logger.Warn("ledger_write_failed",
			observability.F("order_id", o.ID),
			observability.F("payment_ref", o.PaymentRef),
			observability.F("attempt", attempt),
			observability.F("retry_in", delay.String()),
			observability.F("error", err.Error()),
		)
		if attempt == policy.AlertAfter || (attempt > policy.AlertAfter && attempt%policy.AlertAfter == 0) {
			uc.ledgerEscalations.Add(1)
			logger.Error("ledger_write_escalated",
				observability.F("order_id", o.ID),
				observability.F("customer_id", o.CustomerID),
				observability.F("payment_ref", o.PaymentRef),
				observability.F("total", o.Total.String()),
				observability.F("attempt", attempt),
				observability.F("error", err.Error()),
			)
		}

		uc.sleep(delay)
		delay = policy.next(delay)
	}
}

func (uc *PlaceOrderUseCase) alreadyRecorded(ctx context.Context, o *domain.Order) bool {
	existing, err := uc.ledger.Get(ctx, o.ID)
	return err == nil && existing.PaymentRef == o.PaymentRef
}

// compensate releases held reservations newest first. Release is idempotent,
// so a failing release is simply tried again.
func (uc *PlaceOrderUseCase) compensate(ctx context.Context, logger observability.Logger, held []domcatalog.Reservation, reason string) {
	if len(held) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for i := len(held) - 1; i >= 0; i-- {
		r := held[i]
		delay := uc.opts.LedgerRetry.BaseDelay
		released := false
		for attempt := 1; ; attempt++ {
			err := uc.catalog.Release(ctx, r)
			if err == nil {
				released = true
				break
			}
			if attempt >= releaseAttempts {
				logger.Error("compensation_release_abandoned",
					observability.F("reservation_id", r.ID),
					observability.F("product_id", r.ProductID),
					observability.F("quantity", r.Quantity),
					observability.F("error", err.Error()),
				)
				uc.releaseEscalation.Add(1, observability.L("product_id", r.ProductID))
				break
			}
			logger.Warn("compensation_release_failed",
				observability.F("reservation_id", r.ID),
				observability.F("product_id", r.ProductID),
				observability.F("attempt", attempt),
				observability.F("error", err.Error()),
			)
			uc.sleep(delay)
			delay = uc.opts.LedgerRetry.next(delay)
		}
		if released {
			uc.reservations.Add(1, observability.L("outcome", "released"))
		}
	}
	uc.compensations.Add(1, observability.L("reason", reason))
}

// commitReservations turns the held stock into sold stock. Stock is already
// decremented, so a failure here only loses the guard against a stray Release.
func (uc *PlaceOrderUseCase) commitReservations(ctx context.Context, logger observability.Logger, held []domcatalog.Reservation) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range held {
		if err := uc.catalog.Commit(ctx, r); err != nil {
			logger.Warn("reservation_commit_failed",
				observability.F("reservation_id", r.ID),
				observability.F("product_id", r.ProductID),
				observability.F("error", err.Error()),
			)
		}
	}
}

func sleep(d time.Duration) { time.Sleep(d) }
