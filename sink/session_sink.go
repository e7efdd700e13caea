package sink

import (
	"context"

	"sgchat/domain/event"
)

// SessionSink bridges the fan-out pipeline to one connection's write
// pump. Events are buffered so a briefly slow peer does not stall
// delivery to everyone else; a peer that cannot drain its buffer within
// the fan-out worker's delivery timeout has the event skipped.
type SessionSink struct {
	Events chan event.DomainEvent
}

func NewSessionSink(bufferSize int) *SessionSink {
	return &SessionSink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by the fan-out worker. It hands the event to the
// channel owned by this connection's write pump; the transport takes it
// from there.
func (s *SessionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
