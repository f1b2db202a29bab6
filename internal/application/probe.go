package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const SpanPrefix = "UC."

// Instruments are the RED metrics every use case records. Build them once at
// construction time and share them; never create metrics inside Execute.
type Instruments struct {
	Log          observability.Logger
	Tracer       observability.Tracer
	ReqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	DurHistogram observability.Histogram // usecase_duration_seconds{use_case}
	ExtCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	ExtHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
	metrics      observability.Metrics
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	tel = observability.Or(tel)
	m := tel.Metrics()
	return Instruments{
		Log:          tel.Logger().With(observability.F("service", service)),
		Tracer:       tel.Tracer(),
		ReqCounter:   m.Counter(observability.MUsecaseRequests),
		DurHistogram: m.Histogram(observability.MUsecaseDuration),
		ExtCounter:   m.Counter(observability.MExternalRequests),
		ExtHistogram: m.Histogram(observability.MExternalRequestDuration),
		metrics:      m,
	}
}

// Counter exposes additional counters from the same provider.
func (in Instruments) Counter(key observability.MetricKey) observability.Counter {
	if in.metrics == nil {
		return observability.NopCounter()
	}
	return in.metrics.Counter(key)
}

// Probe tracks one use-case invocation: its span, outcome, and the fields of
// the single use_case_done log line written by End.
type Probe struct {
	in      Instruments
	useCase string
	ctx     context.Context
	span    trace.Span
	log     observability.Logger
	start   time.Time

	outcome string
	status  string
	fields  []observability.Field
}

// Start opens a span and derives the request-scoped logger for useCase.
func (in Instruments) Start(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Probe) {
	tracer := in.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	base := in.Log
	if base == nil {
		base = observability.NopLogger()
	}
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := tracer.Start(ctx, SpanPrefix+spanName, attrs...)
	logger := logctx.FromOr(ctx, base).With(observability.F("use_case", useCase))
	return ctx, &Probe{
		in:      in,
		useCase: useCase,
		ctx:     ctx,
		span:    span,
		log:     logger,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
	}
}

func (p *Probe) Span() trace.Span { return p.span }

func (p *Probe) Logger() observability.Logger { return p.log }

// Fail marks the invocation as failed with a machine-readable status.
func (p *Probe) Fail(status string) {
	p.outcome, p.status = "error", status
}

// Status overrides the status text without changing the outcome.
func (p *Probe) Status(status string) { p.status = status }

func (p *Probe) Field(k string, v any) {
	p.fields = append(p.fields, observability.F(k, v))
}

// External records a call to a collaborator outside the process boundary.
func (p *Probe) External(peer, endpoint, outcome string, started time.Time) {
	if p.in.ExtCounter != nil {
		p.in.ExtCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
	}
	if p.in.ExtHistogram != nil {
		p.in.ExtHistogram.Observe(time.Since(started).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
		)
	}
}

// End closes the span, records RED metrics and writes use_case_done.
func (p *Probe) End(err error) {
	lat := time.Since(p.start).Seconds()
	if err != nil && p.outcome == "success" {
		p.outcome = "error"
		if p.status == "OK" {
			p.status = "FAILED"
		}
	}

	if p.span != nil {
		if err != nil {
			p.span.RecordError(err)
			p.span.SetStatus(codes.Error, p.status)
		} else {
			p.span.SetStatus(codes.Ok, p.status)
		}
		p.span.End()
	}

	if p.in.ReqCounter != nil {
		p.in.ReqCounter.Add(1,
			observability.L("use_case", p.useCase),
			observability.L("outcome", p.outcome),
		)
	}
	if p.in.DurHistogram != nil {
		p.in.DurHistogram.Observe(lat,
			observability.L("use_case", p.useCase),
		)
	}

	fields := []observability.Field{
		observability.F("outcome", p.outcome),
		observability.F("status", p.status),
		observability.F("latency_seconds", lat),
	}
	fields = append(fields, observability.TraceFields(p.ctx)...)
	fields = append(fields, p.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	p.log.Info("use_case_done", fields...)
}
