package runtime

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sgchat/contract"
	"sgchat/domain"
	"sgchat/domain/event"
	"sgchat/errors"
	"sgchat/moderation"
	"sgchat/repositories"

	"github.com/abadojack/whatlanggo"
)

// roomClock serializes sends within one room and hands out strictly
// increasing timestamps, so the message key order in the store is exactly
// the commit order even when two sends land in the same nanosecond.
type roomClock struct {
	mu       sync.Mutex
	lastNano int64
}

// Dispatcher implements send = moderate, persist, then fan out.
//
// Persist-before-broadcast is deliberate: a peer must never observe a
// message that a crash immediately after could lose, so the store write
// completes before the event enters the delivery pipeline. The per-room
// clock lock spans persist and enqueue, which makes delivery order equal
// commit order for every recipient. Sends on different rooms do not
// contend.
type Dispatcher struct {
	log               *slog.Logger
	directory         contract.IDirectory
	messageRepository repositories.IMessageRepository
	moderator         *moderation.Moderator
	events            chan<- event.DomainEvent

	mu     sync.Mutex
	clocks map[domain.RoomID]*roomClock
}

func NewDispatcher(log *slog.Logger, directory contract.IDirectory,
	messageRepository repositories.IMessageRepository,
	moderator *moderation.Moderator, events chan<- event.DomainEvent) *Dispatcher {
	return &Dispatcher{
		log:               log,
		directory:         directory,
		messageRepository: messageRepository,
		moderator:         moderator,
		events:            events,
		clocks:            make(map[domain.RoomID]*roomClock),
	}
}

// Send validates, moderates, persists and broadcasts one message.
// The returned message carries the sanitized content, which is also what
// the history will replay: delivered and persisted text never diverge.
func (d *Dispatcher) Send(room domain.RoomID, author domain.UserIdentity, content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, fmt.Errorf("%w: empty content", errors.ErrInvalidArgument)
	}
	if _, err := d.directory.Room(room); err != nil {
		return domain.Message{}, err
	}

	sanitized, foundWords := d.moderator.Censor(content)
	if len(foundWords) > 0 {
		info := whatlanggo.Detect(content)
		d.log.Warn("Censored message content",
			"room", room.String(),
			"author", author.ID.String(),
			"lang", info.Lang.Iso6391(),
			"words", len(foundWords))
	}

	clock := d.clock(room)
	clock.mu.Lock()
	defer clock.mu.Unlock()

	now := time.Now().UTC().UnixNano()
	if now <= clock.lastNano {
		now = clock.lastNano + 1
	}
	clock.lastNano = now

	message := domain.Message{
		ID:        domain.NewMessageID(),
		Room:      room,
		Author:    author.ID,
		Content:   sanitized,
		CreatedAt: time.Unix(0, now).UTC(),
	}

	if err := d.messageRepository.StoreMessage(message); err != nil {
		return domain.Message{}, err
	}

	// The message is durable from here on. Enqueueing while still under
	// the room clock lock keeps channel order aligned with commit order.
	d.events <- event.MessageReceived{Message: message}
	return message, nil
}

func (d *Dispatcher) clock(room domain.RoomID) *roomClock {
	d.mu.Lock()
	defer d.mu.Unlock()
	clock, ok := d.clocks[room]
	if !ok {
		clock = &roomClock{}
		d.clocks[room] = clock
	}
	return clock
}
