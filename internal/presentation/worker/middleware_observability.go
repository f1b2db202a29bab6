package workerpresentation

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "worker", "event").
func WithEventContext(ctx context.Context, base observability.Logger, attrs map[string]string) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, len(attrs)+3)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	sc := trace.SpanContextFromContext(ctx)
	if sc.TraceID().IsValid() {
		fields = append(fields, observability.F("trace_id", sc.TraceID().String()))
	}
	if sc.SpanID().IsValid() {
		fields = append(fields, observability.F("span_id", sc.SpanID().String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// Handler wraps h so each delivery runs in its own span with an event-scoped
// logger, and logs a single worker_event_done line.
func Handler(tel observability.Observability, worker string, h domoutbox.Handler) domoutbox.Handler {
	tel = observability.Or(tel)
	base := tel.Logger()
	return func(ctx context.Context, e domoutbox.Event) (err error) {
		name := e.EventName()
		ctx, span := tel.Tracer().Start(ctx, worker+" "+name,
			attribute.String("worker", worker),
			attribute.String("event", name),
		)
		defer span.End()

		ctx = WithEventContext(ctx, base, map[string]string{"worker": worker, "event": name})
		start := time.Now()
		err = h(ctx, e)

		fields := []observability.Field{observability.F("latency_ms", time.Since(start).Milliseconds())}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logctx.FromOr(ctx, base).Warn("worker_event_failed", append(fields, observability.F("error", err.Error()))...)
			return err
		}
		logctx.FromOr(ctx, base).Debug("worker_event_done", fields...)
		return nil
	}
}

// Subscriber decorates every handler registered through it with Handler.
type Subscriber struct {
	next   domoutbox.Subscriber
	tel    observability.Observability
	worker string
}

var _ domoutbox.Subscriber = (*Subscriber)(nil)

func NewSubscriber(next domoutbox.Subscriber, tel observability.Observability, worker string) *Subscriber {
	return &Subscriber{next: next, tel: tel, worker: worker}
}

func (s *Subscriber) Subscribe(eventName string, h domoutbox.Handler) {
	s.next.Subscribe(eventName, Handler(s.tel, s.worker, h))
}
