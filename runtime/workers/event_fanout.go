package workers

import (
	"context"
	"log/slog"
	"time"

	"direct-chat/contract"
	"direct-chat/domain/event"
)

// EventFanout delivers each domain event to every live session of the
// event's room, plus the permanent sinks (search index, projections).
//
// The sender's own session receives the event through the same path as
// everyone else: no local echo, one source of truth for wire ordering.
// Delivery to a now-gone session is a no-op, never a hard failure.
//
// EventFanout is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	log         *slog.Logger
	registry    contract.IRegistry
	permanent   []contract.EventSink
	events      chan event.DomainEvent
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry,
	permanent []contract.EventSink, events chan event.DomainEvent,
	sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		registry:    registry,
		permanent:   permanent,
		events:      events,
		sinkTimeout: sinkTimeout,
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

// Fanout takes one membership snapshot and delivers the event to every
// sink in it. A slow or failed sink is skipped after the per-sink
// timeout; it never blocks the rest of the room.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	sinks := w.registry.SinksForRoom(evt.Room())
	sinks = append(sinks, w.permanent...)

	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink delivery failed", "room", evt.Room(), "error", err)
		}
		cancel()
	}
}
