package workers

import (
	"context"
	"log/slog"
	"time"

	"sgchat/contract"
	"sgchat/domain/event"
)

// EventFanout delivers domain events to the sinks of currently-present
// connections. Room-scoped events go to the room's presence sinks;
// RoomCreated goes to every registered sink.
//
// The worker is the single consumer of the events channel, so per-room
// channel order (which the dispatcher aligns with commit order) is
// preserved all the way to each recipient's sink. Delivery itself is
// best-effort relative to the operation that produced the event: a slow
// or dead sink times out and is skipped, it never fails or blocks the
// sender, and persistence already happened upstream.
type EventFanout struct {
	log         *slog.Logger
	registry    contract.IRegistry
	events      <-chan event.DomainEvent
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry,
	events <-chan event.DomainEvent, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		registry:    registry,
		events:      events,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fan-out")
			return nil
		}
	}
}

// Fanout delivers one event to its target sinks, sequentially so that a
// single recipient always observes events in pipeline order.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	var sinks []contract.EventSink
	switch evt.(type) {
	case event.RoomCreated:
		sinks = w.registry.AllSinks()
	default:
		sinks = w.registry.SinksForRoom(evt.RoomID())
	}

	for _, sink := range sinks {
		deliverCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(deliverCtx, evt); err != nil {
			w.log.Debug("Sink delivery skipped", "room", evt.RoomID().String(), "error", err)
		}
		cancel()
	}
}
