package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
)

type testEvent string

func (e testEvent) EventName() string { return string(e) }

type seen struct {
	mu    sync.Mutex
	names []string
}

func (s *seen) handler(tag string) domoutbox.Handler {
	return func(_ context.Context, e domoutbox.Event) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.names = append(s.names, tag+":"+e.EventName())
		return nil
	}
}

func (s *seen) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}

func TestBusDeliversToNamedAndWildcardSubscribers(t *testing.T) {
	bus := NewBus(nil)
	s := &seen{}
	bus.Subscribe("order.confirmed", s.handler("named"))
	bus.Subscribe(domoutbox.AllEvents, s.handler("all"))
	bus.Start(context.Background())

	ctx := context.Background()
	if err := bus.Publish(ctx, testEvent("order.confirmed")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := bus.Publish(ctx, testEvent("order.cancelled")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	if got := s.count(); got != 3 {
		t.Fatalf("handled %v, want 3 deliveries", s.names)
	}
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(nil)
	s := &seen{}
	bus.Subscribe("boom", func(context.Context, domoutbox.Event) error { panic("handler bug") })
	bus.Subscribe("boom", s.handler("ok"))
	bus.Subscribe("fail", func(context.Context, domoutbox.Event) error { return errors.New("nope") })
	bus.Start(context.Background())

	_ = bus.Publish(context.Background(), testEvent("boom"))
	_ = bus.Publish(context.Background(), testEvent("fail"))
	_ = bus.Publish(context.Background(), testEvent("boom"))
	bus.Stop(context.Background())

	if got := s.count(); got != 2 {
		t.Fatalf("ok handler ran %d times, want 2", got)
	}
}

func TestBusRejectsPublishAfterStop(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	bus.Stop(context.Background())
	if err := bus.Publish(context.Background(), testEvent("late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestBusPublishHonoursContextWhenFull(t *testing.T) {
	bus := NewBus(nil, WithQueueSize(1))
	// not started: the queue fills and stays full
	if err := bus.Publish(context.Background(), testEvent("a")); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := bus.Publish(ctx, testEvent("b")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
