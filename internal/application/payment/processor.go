package payment

import (
	"context"
	"errors"

	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	componentPayment = "payment"
	spanAuthorize    = "Payment.Authorize"
	spanVoid         = "Payment.Void"
)

// ErrVoidUnsupported is returned by Void when the wrapped processor cannot void.
var ErrVoidUnsupported = errors.New("payment: processor does not support void")

// TracedProcessor wraps a Processor with a client span and decline logging.
// It also forwards Void so callers can keep asserting for dompay.Voider.
type TracedProcessor struct {
	next   dompay.Processor
	tracer observability.Tracer
	log    observability.Logger
}

var (
	_ dompay.Processor = (*TracedProcessor)(nil)
	_ dompay.Voider    = (*TracedProcessor)(nil)
)

func NewTracedProcessor(next dompay.Processor, tel observability.Observability) *TracedProcessor {
	tel = observability.Or(tel)
	return &TracedProcessor{
		next:   next,
		tracer: tel.Tracer(),
		log:    tel.Logger().With(observability.F("component", componentPayment)),
	}
}

func (p *TracedProcessor) Authorize(ctx context.Context, customerID string, amount decimal.Decimal, details dompay.Details) (dompay.Result, error) {
	ctx, span := p.tracer.Start(ctx, spanAuthorize,
		attribute.String("payment.customer_id", customerID),
		attribute.String("payment.amount", amount.String()),
	)
	defer span.End()
	logger := logctx.FromOr(ctx, p.log)

	res, err := p.next.Authorize(ctx, customerID, amount, details)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "AUTHORIZE_FAILED")
		logger.Warn("payment_authorize_failed",
			observability.F("customer_id", customerID),
			observability.F("error", err.Error()),
		)
	case !res.Approved:
		span.SetAttributes(attribute.String("payment.decline_reason", res.DeclineReason))
		span.SetStatus(codes.Ok, "DECLINED")
		logger.Info("payment_declined",
			observability.F("customer_id", customerID),
			observability.F("reason", res.DeclineReason),
		)
	default:
		span.SetAttributes(attribute.String("payment.ref", res.TransactionRef))
		span.SetStatus(codes.Ok, "APPROVED")
	}
	return res, err
}

func (p *TracedProcessor) Void(ctx context.Context, ref string) error {
	voider, ok := p.next.(dompay.Voider)
	if !ok {
		return ErrVoidUnsupported
	}
	ctx, span := p.tracer.Start(ctx, spanVoid, attribute.String("payment.ref", ref))
	defer span.End()

	if err := voider.Void(ctx, ref); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "VOID_FAILED")
		return err
	}
	span.SetStatus(codes.Ok, "VOIDED")
	logctx.FromOr(ctx, p.log).Info("payment_voided", observability.F("payment_ref", ref))
	return nil
}
