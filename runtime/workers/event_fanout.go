package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-room/contract"
	"chat-room/domain/event"
	"chat-room/observability"
)

// Ensure *EventFanout implements contract.Worker at compile time.
var _ contract.Worker = (*EventFanout)(nil)

// EventFanout delivers domain events to the sinks selected by each
// event's audience rule.
//
// Delivery is best-effort: no retries, no durability. A sink that
// cannot keep up within the timeout loses the event; it never stalls
// fan-out to other connections. One goroutine drains the channel, so
// per-sink delivery order matches emission order.
type EventFanout struct {
	log      *slog.Logger
	registry contract.IRegistry
	events   chan event.DomainEvent
	timeout  time.Duration
	metrics  *observability.Metrics
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry,
	events chan event.DomainEvent, timeout time.Duration,
	metrics *observability.Metrics) *EventFanout {
	return &EventFanout{
		log:      log,
		registry: registry,
		events:   events,
		timeout:  timeout,
		metrics:  metrics,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout sends one event to every sink in its audience.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	sinks := w.registry.SinksFor(evt.Audience())
	for _, sink := range sinks {
		deliveryCtx, cancel := context.WithTimeout(ctx, w.timeout)
		if err := sink.Consume(deliveryCtx, evt); err != nil {
			w.metrics.IncrEventsDropped()
			w.log.Debug("Event dropped by sink", "event", evt.Name(), "error", err)
		} else {
			w.metrics.IncrEventsDelivered()
		}
		cancel()
	}
}
