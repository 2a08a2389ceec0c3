package ws

import (
	"context"

	"direct-chat/domain/event"
)

// Sink bridges the fan-out pipeline to one websocket session. Events are
// handed to the session's write pump through a buffered channel.
type Sink struct {
	events chan event.DomainEvent
}

func NewSink(bufferSize int) *Sink {
	return &Sink{events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by the fan-out worker. A full buffer means the
// session is too slow to keep up; the event is dropped for that session
// rather than stalling the room (the fan-out tolerates gone or slow
// members as a no-op).
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (s *Sink) Events() <-chan event.DomainEvent {
	return s.events
}
