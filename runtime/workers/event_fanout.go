package workers

import (
	"context"
	"fmt"
	"log/slog"

	"talk-hub/contract"
	"talk-hub/domain/event"
)

// EventFanout broadcasts domain events to the live members of their group
// plus any permanent in-process consumers.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering across groups, durability, or retries. EventFanout is not a
// message broker. A sink that fails or lags only loses its own delivery;
// the remaining members still receive the event.
//
// EventFanout is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	log             *slog.Logger
	registry        contract.IRegistry
	domainEvents    chan event.DomainEvent
	telemetryEvents chan event.DomainEvent
	sinks           []contract.EventSink
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry,
	domainEvents, telemetryEvents chan event.DomainEvent) *EventFanout {
	return &EventFanout{
		log:             log,
		registry:        registry,
		domainEvents:    domainEvents,
		telemetryEvents: telemetryEvents,
	}
}

// Add registers permanent sinks receiving every event regardless of group.
func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.domainEvents:
			w.Fanout(ctx, evt)
			select {
			case w.telemetryEvents <- evt:
			default:
				w.log.Debug("Observability telemetry event lost")
			}
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fan-out")
			return nil
		}
	}
}

// Fanout delivers one event to every current member of its group and to
// the permanent sinks. Partial delivery is tolerated: an error from one
// sink never aborts delivery to the rest.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.registry.SinksFor(evt.Group()) {
		if err := sink.Consume(ctx, evt); err != nil {
			w.log.Debug(fmt.Sprintf("Sink delivery failed for group %s : %v", evt.Group(), err))
		}
	}
	for _, sink := range w.sinks {
		if err := sink.Consume(ctx, evt); err != nil {
			w.log.Debug(fmt.Sprintf("Permanent sink delivery failed : %v", err))
		}
	}
}
