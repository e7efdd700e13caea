// Package projection builds local read models from observed events.
// Handles ordering and accumulation only; it does not emit events or
// interact with any transport.
package projection

import (
	"sgchat/domain"
	"sgchat/domain/event"
)

// Timeline accumulates one room's messages in delivery order. Delivery
// order matches commit order, so appending is enough.
type Timeline struct {
	Room     domain.RoomID
	Messages []domain.Message
}

func NewTimeline(room domain.RoomID) *Timeline {
	return &Timeline{Room: room}
}

// Seed replaces the timeline with a history snapshot, typically the
// result of opening the room. Live messages observed afterwards append
// behind it.
func (t *Timeline) Seed(history []domain.Message) {
	t.Messages = append([]domain.Message(nil), history...)
}

// Consume appends messages addressed to the timeline's room and ignores
// everything else.
func (t *Timeline) Consume(e event.DomainEvent) {
	switch evt := e.(type) {
	case event.MessageReceived:
		if evt.Message.Room == t.Room {
			t.Messages = append(t.Messages, evt.Message)
		}
	}
}
