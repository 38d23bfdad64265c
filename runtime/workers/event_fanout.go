package workers

import (
	"context"
	"log/slog"
	"time"

	"edu-relay/contract"
	"edu-relay/domain/event"
)

// EventFanout broadcasts domain events to the sessions joined to the event's
// room, plus the permanent in-process sinks (projections, metrics).
//
// Delivery is best-effort per recipient: a dead or slow session is skipped
// without affecting the others, and a failure for one recipient never aborts
// the fan-out. Running as a single goroutine, it gives every member of a room
// the same relative message order.
type EventFanout struct {
	Log             *slog.Logger
	Name            contract.WorkerName
	registry        contract.IRegistry
	permanentSinks  []contract.EventSink
	DomainEvents    chan event.DomainEvent
	TelemetryEvents chan event.DomainEvent
	sinkTimeout     time.Duration
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry,
	permanentSinks []contract.EventSink,
	domainEvents, telemetryEvents chan event.DomainEvent,
	sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		Log:             log,
		registry:        registry,
		permanentSinks:  permanentSinks,
		DomainEvents:    domainEvents,
		TelemetryEvents: telemetryEvents,
		sinkTimeout:     sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.DomainEvents:
			w.Fanout(ctx, evt)
			select {
			case w.TelemetryEvents <- evt:
			default:
				w.Log.Debug("Observability telemetry event lost")
			}
		case <-ctx.Done():
			w.Log.Debug("Context done, stopping fan-out")
			return nil
		}
	}
}

// Fanout delivers one event to every member of its room and to the permanent
// sinks. The membership snapshot is taken per event, so sessions joining or
// leaving mid-delivery never corrupt the iteration.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	sinks := w.registry.SinksForRoom(evt.RoomID())

	for _, sink := range append(sinks, w.permanentSinks...) {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			// Best-effort: the member is gone or saturated
			w.Log.Debug("Sink delivery skipped", "room_id", evt.RoomID(), "error", err)
		}
		cancel()
	}
}
