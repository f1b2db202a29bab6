package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	orderService           = "order-service"
	useCasePlaceOrder      = "order.place"
	useCasePlaceOrderKeyed = "order.place_keyed"
	paymentPeer            = "payment_gateway"
	endpointAuthorize      = "authorize"
	publishTimeout         = 300 * time.Millisecond
)

var errAuthorizationTimeout = errors.New("order: authorization did not complete in time")

type LineInput struct {
	ProductID string
	Quantity  int
}

type PlaceOrderInput struct {
	IdempotencyKey  string
	CustomerID      string
	Lines           []LineInput
	Payment         dompay.Details
	ShippingAddress string
}

// PlaceOrderUseCase turns a purchase request into reserved stock, an authorized
// payment and a confirmed ledger entry, or into nothing at all.
//
// Stock is reserved line by line in ascending product id, then payment is
// authorized with no catalog lock held. A failure at either step releases every
// reservation taken for the order. Once payment is approved the order is only
// ever moved forward.
type PlaceOrderUseCase struct {
	catalog     domcatalog.Catalog
	ledger      domain.Ledger
	payments    dompay.Processor
	idempotency IdempotencyStore
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	opts        Options

	in                application.Instruments
	reservations      observability.Counter // catalog_reservations_total{outcome}
	compensations     observability.Counter // order_compensations_total{reason}
	ledgerRetries     observability.Counter // order_ledger_retries_total
	ledgerEscalations observability.Counter // order_ledger_escalations_total
	releaseEscalation observability.Counter // order_release_escalations_total{product_id}

	inflight singleflight.Group
	sleep    func(time.Duration)
}

func NewPlaceOrderUseCase(
	catalog domcatalog.Catalog,
	ledger domain.Ledger,
	payments dompay.Processor,
	idempotency IdempotencyStore,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	opts Options,
	tel observability.Observability,
) *PlaceOrderUseCase {
	in := application.NewInstruments(tel, orderService)
	return &PlaceOrderUseCase{
		catalog:           catalog,
		ledger:            ledger,
		payments:          payments,
		idempotency:       idempotency,
		idGenerator:       idGen,
		publisher:         publisher,
		opts:              opts.withDefaults(),
		in:                in,
		reservations:      in.Counter(observability.MCatalogReservations),
		compensations:     in.Counter(observability.MOrderCompensations),
		ledgerRetries:     in.Counter(observability.MLedgerRetries),
		ledgerEscalations: in.Counter(observability.MLedgerEscalations),
		releaseEscalation: in.Counter(observability.MReleaseEscalations),
		sleep:             sleep,
	}
}

// Execute places an order. With an idempotency key, concurrent duplicates share
// one execution and a completed order is returned again instead of charging twice.
func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *domain.Order, err error) {
	ctx, probe := uc.in.Start(ctx, useCasePlaceOrder, "PlaceOrder",
		attribute.String("order.customer_id", cmd.CustomerID),
		attribute.Int("order.lines", len(cmd.Lines)),
	)
	defer func() { probe.End(err) }()
	probe.Field("customer_id", cmd.CustomerID)

	if cmd.IdempotencyKey == "" || uc.idempotency == nil {
		return uc.place(ctx, probe, cmd)
	}

	// The shared execution is detached from any one caller: a duplicate whose
	// client went away must not cancel the order for the others. Each caller
	// still stops waiting when its own ctx ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := uc.inflight.DoChan(cmd.CustomerID+"\x00"+cmd.IdempotencyKey, func() (any, error) {
		return uc.placeOnce(flightCtx, cmd)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		probe.Fail("CALLER_GONE")
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	out := res.Val.(flightResult)
	switch {
	case out.replayed:
		probe.Status("IDEMPOTENT_REPLAY")
	case res.Shared:
		probe.Status("IDEMPOTENT_SHARED")
	}
	probe.Field("order_id", out.order.ID)
	return out.order.Clone(), nil
}

type flightResult struct {
	order    *domain.Order
	replayed bool
}

// placeOnce replays a remembered order or places a new one under its own probe,
// since the caller that started the flight may return before it finishes.
func (uc *PlaceOrderUseCase) placeOnce(ctx context.Context, cmd PlaceOrderInput) (_ flightResult, err error) {
	existing, found, err := uc.replay(ctx, cmd)
	if err != nil {
		return flightResult{}, err
	}
	if found {
		return flightResult{order: existing, replayed: true}, nil
	}
	ctx, probe := uc.in.Start(ctx, useCasePlaceOrderKeyed, "PlaceOrder.keyed",
		attribute.String("order.customer_id", cmd.CustomerID),
	)
	defer func() { probe.End(err) }()
	probe.Field("customer_id", cmd.CustomerID)
	o, err := uc.place(ctx, probe, cmd)
	if err != nil {
		return flightResult{}, err
	}
	return flightResult{order: o}, nil
}

func (uc *PlaceOrderUseCase) replay(ctx context.Context, cmd PlaceOrderInput) (*domain.Order, bool, error) {
	orderID, found, err := uc.idempotency.Lookup(ctx, cmd.CustomerID, cmd.IdempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("order: idempotency lookup: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	existing, err := uc.ledger.Get(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapRepositoryError(err)
	}
	return existing, true, nil
}

func (uc *PlaceOrderUseCase) place(ctx context.Context, probe *application.Probe, cmd PlaceOrderInput) (*domain.Order, error) {
	logger := probe.Logger()
	span := probe.Span()

	lines, products, err := uc.validate(ctx, cmd)
	if err != nil {
		probe.Fail("INVALID_REQUEST")
		return nil, err
	}

	o, err := domain.New(uc.idGenerator.NewID(), cmd.CustomerID, cmd.IdempotencyKey, cmd.ShippingAddress)
	if err != nil {
		probe.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	logger = logger.With(observability.F("order_id", o.ID))
	probe.Field("order_id", o.ID)
	span.SetAttributes(attribute.String("order.id", o.ID))

	if err := o.BeginReservation(); err != nil {
		probe.Fail("STATE_TRANSITION_FAILED")
		return nil, err
	}

	held, err := uc.reserveAll(ctx, lines)
	if err != nil {
		uc.compensate(ctx, logger, held, "reservation_failed")
		var stockErr *domcatalog.StockError
		if errors.As(err, &stockErr) {
			probe.Fail("INSUFFICIENT_STOCK")
			_ = o.RejectStock(domcatalog.ErrInsufficientStock.Error())
			uc.publish(ctx, logger, domain.NewOrderRejectedEvent(o, stockErr.ProductID))
			span.AddEvent("order.rejected", trace.WithAttributes(attribute.String("product.id", stockErr.ProductID)))
			return nil, &StockError{
				OrderID:   o.ID,
				ProductID: stockErr.ProductID,
				Requested: stockErr.Requested,
				Available: stockErr.Available,
			}
		}
		probe.Fail("RESERVE_FAILED")
		if errors.Is(err, domcatalog.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("order: reserve: %w", err)
	}

	orderLines := make([]domain.Line, 0, len(held))
	for _, r := range held {
		line, lerr := domain.NewLine(r.ProductID, products[r.ProductID].Name, r.Quantity, r.UnitPrice)
		if lerr != nil {
			uc.compensate(ctx, logger, held, "invalid_line")
			probe.Fail("LINE_CONSTRUCTION_FAILED")
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, lerr)
		}
		orderLines = append(orderLines, line)
	}
	if err := o.MarkReserved(orderLines); err != nil {
		uc.compensate(ctx, logger, held, "state_transition")
		probe.Fail("STATE_TRANSITION_FAILED")
		return nil, err
	}
	probe.Field("total", o.Total.String())
	span.SetAttributes(attribute.String("order.total", o.Total.String()))

	if err := o.BeginAuthorization(); err != nil {
		uc.compensate(ctx, logger, held, "state_transition")
		probe.Fail("STATE_TRANSITION_FAILED")
		return nil, err
	}

	result, authErr := uc.authorize(ctx, probe, o, cmd.Payment)
	if authErr != nil || !result.Approved {
		perr := classifyPaymentFailure(o.ID, result, authErr)
		_ = o.BeginCompensation(perr.Reason)
		uc.compensate(ctx, logger, held, perr.Reason)
		_ = o.Cancel()
		uc.publish(ctx, logger, domain.NewOrderCancelledEvent(o))
		span.AddEvent("order.cancelled", trace.WithAttributes(attribute.String("reason", perr.Reason)))
		probe.Field("failure_reason", perr.Reason)
		if perr.Timeout {
			probe.Fail("PAYMENT_TIMEOUT")
		} else {
			probe.Fail("PAYMENT_DECLINED")
		}
		return nil, perr
	}

	// Payment is approved: from here on the order only moves forward.
	if err := o.Confirm(result.TransactionRef); err != nil {
		// an approval without a reference; the charge may still exist, so keep going
		logger.Error("order_confirm_failed", observability.F("payment_ref", result.TransactionRef), observability.F("error", err.Error()))
	}
	uc.commitReservations(ctx, logger, held)
	if attempts := uc.recordConfirmed(ctx, logger, o); attempts > 1 {
		probe.Status("LEDGER_RETRIED")
		probe.Field("ledger_attempts", attempts)
	}

	if cmd.IdempotencyKey != "" && uc.idempotency != nil {
		if err := uc.idempotency.Remember(context.WithoutCancel(ctx), o.CustomerID, cmd.IdempotencyKey, o.ID); err != nil {
			logger.Warn("idempotency_remember_failed", observability.F("error", err.Error()))
		}
	}

	uc.publish(ctx, logger, domain.NewOrderConfirmedEvent(o))
	span.SetAttributes(attribute.String("order.status", string(o.Status)))
	span.AddEvent("order.confirmed", trace.WithAttributes(attribute.String("payment.ref", o.PaymentRef)))
	return o.Clone(), nil
}

// validate rejects malformed requests before any side effect. Lines naming the
// same product are merged, and the result is sorted by product id, which is the
// order reservations are taken in.
func (uc *PlaceOrderUseCase) validate(ctx context.Context, cmd PlaceOrderInput) ([]LineInput, map[string]*domcatalog.Product, error) {
	if strings.TrimSpace(cmd.CustomerID) == "" {
		return nil, nil, newValidation("customer id is required")
	}
	if len(cmd.Lines) == 0 {
		return nil, nil, newValidation("at least one line is required")
	}
	merged := make(map[string]int, len(cmd.Lines))
	for i, l := range cmd.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return nil, nil, newValidation(fmt.Sprintf("line %d: product id is required", i))
		}
		if l.Quantity <= 0 {
			return nil, nil, newValidation(fmt.Sprintf("line %d: quantity must be greater than zero", i))
		}
		if l.Quantity > math.MaxInt-merged[l.ProductID] {
			return nil, nil, newValidation(fmt.Sprintf("line %d: total quantity for %s is too large", i, l.ProductID))
		}
		merged[l.ProductID] += l.Quantity
	}
	if err := cmd.Payment.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	lines := make([]LineInput, 0, len(merged))
	products := make(map[string]*domcatalog.Product, len(merged))
	for id, qty := range merged {
		p, err := uc.catalog.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domcatalog.ErrProductNotFound) {
				return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
			return nil, nil, fmt.Errorf("order: resolve product %s: %w", id, err)
		}
		products[id] = p
		lines = append(lines, LineInput{ProductID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, products, nil
}

// reserveAll takes every reservation or none. On error the reservations taken
// so far are returned so the caller can release them.
func (uc *PlaceOrderUseCase) reserveAll(ctx context.Context, lines []LineInput) ([]domcatalog.Reservation, error) {
	held := make([]domcatalog.Reservation, 0, len(lines))
	for _, l := range lines {
		if err := ctx.Err(); err != nil {
			return held, err
		}
		r, err := uc.catalog.Reserve(ctx, l.ProductID, l.Quantity)
		if err != nil {
			uc.reservations.Add(1, observability.L("outcome", reservationOutcome(err)))
			return held, err
		}
		uc.reservations.Add(1, observability.L("outcome", "reserved"))
		held = append(held, r)
	}
	return held, nil
}

type authorization struct {
	result dompay.Result
	err    error
}

// authorize calls the payment processor with the hold timeout. The call runs in
// its own goroutine so that a processor ignoring ctx still cannot hold stock
// past the deadline; a late approval is voided when the processor supports it.
func (uc *PlaceOrderUseCase) authorize(ctx context.Context, probe *application.Probe, o *domain.Order, details dompay.Details) (dompay.Result, error) {
	authCtx, cancel := context.WithTimeout(ctx, uc.opts.HoldTimeout)
	defer cancel()

	done := make(chan authorization, 1)
	started := time.Now()
	go func() {
		res, err := uc.payments.Authorize(authCtx, o.CustomerID, o.Total, details)
		done <- authorization{result: res, err: err}
	}()

	select {
	case out := <-done:
		outcome := "success"
		switch {
		case out.err != nil && errors.Is(out.err, context.DeadlineExceeded):
			outcome = "timeout"
		case out.err != nil:
			outcome = "error"
		case !out.result.Approved:
			outcome = "declined"
		}
		probe.External(paymentPeer, endpointAuthorize, outcome, started)
		return out.result, out.err
	case <-authCtx.Done():
		probe.External(paymentPeer, endpointAuthorize, "timeout", started)
		go uc.voidLateApproval(probe.Logger(), o.ID, done)
		if err := ctx.Err(); err != nil {
			return dompay.Result{}, err
		}
		return dompay.Result{}, errAuthorizationTimeout
	}
}

func (uc *PlaceOrderUseCase) voidLateApproval(logger observability.Logger, orderID string, done <-chan authorization) {
	out := <-done
	if out.err != nil || !out.result.Approved {
		return
	}
	voider, ok := uc.payments.(dompay.Voider)
	if !ok {
		logger.Error("late_authorization_not_voided",
			observability.F("order_id", orderID),
			observability.F("payment_ref", out.result.TransactionRef),
		)
		return
	}
	if err := voider.Void(context.Background(), out.result.TransactionRef); err != nil {
		logger.Error("late_authorization_void_failed",
			observability.F("order_id", orderID),
			observability.F("payment_ref", out.result.TransactionRef),
			observability.F("error", err.Error()),
		)
		return
	}
	logger.Warn("late_authorization_voided",
		observability.F("order_id", orderID),
		observability.F("payment_ref", out.result.TransactionRef),
	)
}

func classifyPaymentFailure(orderID string, result dompay.Result, err error) *PaymentError {
	switch {
	case err == nil:
		reason := result.DeclineReason
		if reason == "" {
			reason = dompay.DeclineSimulated
		}
		return &PaymentError{OrderID: orderID, Reason: reason}
	case errors.Is(err, errAuthorizationTimeout), errors.Is(err, context.DeadlineExceeded):
		return &PaymentError{OrderID: orderID, Reason: dompay.DeclineTimeout, Timeout: true, Cause: err}
	case errors.Is(err, context.Canceled):
		return &PaymentError{OrderID: orderID, Reason: "canceled", Cause: err}
	default:
		return &PaymentError{OrderID: orderID, Reason: dompay.DeclineProcessorError, Cause: err}
	}
}

func reservationOutcome(err error) string {
	switch {
	case errors.Is(err, domcatalog.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domcatalog.ErrProductNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (uc *PlaceOrderUseCase) publish(ctx context.Context, logger observability.Logger, e domoutbox.Event) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := uc.publisher.Publish(pubCtx, e); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
