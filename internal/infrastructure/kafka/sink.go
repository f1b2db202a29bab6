package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domdelivery "github.com/Zhima-Mochi/minishop-orders/internal/domain/delivery"
	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Envelope is the JSON document written for every domain event.
type Envelope struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Source     string          `json:"source"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// Sink forwards every domain event from the outbox bus to Kafka.
type Sink struct {
	subscriber domoutbox.Subscriber
	producer   publisher
	source     string
	forwarded  observability.Counter // events_forwarded_total{event,outcome}
	log        observability.Logger
}

func NewSink(subscriber domoutbox.Subscriber, producer publisher, source string, tel observability.Observability) *Sink {
	tel = observability.Or(tel)
	return &Sink{
		subscriber: subscriber,
		producer:   producer,
		source:     source,
		forwarded:  tel.Metrics().Counter(observability.MEventsForwarded),
		log:        tel.Logger().With(observability.F("component", "kafka_sink")),
	}
}

func (s *Sink) Start() {
	if s.subscriber == nil || s.producer == nil {
		return
	}
	s.subscriber.Subscribe(domoutbox.AllEvents, s.handle)
}

func (s *Sink) handle(ctx context.Context, e domoutbox.Event) error {
	name := e.EventName()
	env, err := s.envelope(e)
	if err != nil {
		s.forwarded.Add(1, observability.L("event", name), observability.L("outcome", "encode_error"))
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		s.forwarded.Add(1, observability.L("event", name), observability.L("outcome", "encode_error"))
		return fmt.Errorf("kafka: encode envelope: %w", err)
	}

	err = s.producer.Publish(ctx, []byte(PartitionKey(e)), value,
		kafka.Header{Key: "event", Value: []byte(name)},
		kafka.Header{Key: "event_id", Value: []byte(env.ID)},
	)
	if err != nil {
		s.forwarded.Add(1, observability.L("event", name), observability.L("outcome", "error"))
		logctx.FromOr(ctx, s.log).Warn("event_forward_failed",
			observability.F("event", name),
			observability.F("error", err.Error()),
		)
		return err
	}
	s.forwarded.Add(1, observability.L("event", name), observability.L("outcome", "success"))
	return nil
}

func (s *Sink) envelope(e domoutbox.Event) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("kafka: encode %s: %w", e.EventName(), err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Name:       e.EventName(),
		Source:     s.source,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}, nil
}

// PartitionKey keeps the events of one order (or product) in order on one partition.
func PartitionKey(e domoutbox.Event) string {
	switch ev := e.(type) {
	case domorder.OrderConfirmedEvent:
		return ev.OrderID
	case domorder.OrderRejectedEvent:
		return ev.OrderID
	case domorder.OrderCancelledEvent:
		return ev.OrderID
	case domdelivery.DeliveryScheduledEvent:
		return ev.OrderID
	case domdelivery.DeliveryStatusChangedEvent:
		return ev.OrderID
	case domcatalog.StockReplenishedEvent:
		return ev.ProductID
	default:
		return e.EventName()
	}
}
