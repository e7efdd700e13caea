package projection

import (
	"testing"
	"time"

	"sgchat/domain"
	"sgchat/domain/event"

	"github.com/stretchr/testify/require"
)

func TestTimeline_Consume_MessageReceived(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoomID()
	timeline := NewTimeline(room)

	alice := domain.NewUserID()
	clara := domain.NewUserID()

	evt1 := event.MessageReceived{Message: domain.Message{
		ID:        domain.NewMessageID(),
		Room:      room,
		Author:    alice,
		Content:   "Hello Bob",
		CreatedAt: time.Now(),
	}}
	evt2 := event.MessageReceived{Message: domain.Message{
		ID:        domain.NewMessageID(),
		Room:      room,
		Author:    clara,
		Content:   "Hi Bob",
		CreatedAt: time.Now().Add(time.Second),
	}}

	timeline.Consume(evt1)
	timeline.Consume(evt2)

	require.Len(t, timeline.Messages, 2)
	req.Equal(alice, timeline.Messages[0].Author)
	req.Equal(clara, timeline.Messages[1].Author)
}

func TestTimeline_Consume_IgnoresOtherRooms(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoomID()
	timeline := NewTimeline(room)

	timeline.Seed([]domain.Message{{
		ID:      domain.NewMessageID(),
		Room:    room,
		Content: "history",
	}})

	// A message for another room must not leak in.
	timeline.Consume(event.MessageReceived{Message: domain.Message{
		ID:      domain.NewMessageID(),
		Room:    domain.NewRoomID(),
		Content: "elsewhere",
	}})
	// Presence events carry no message and are skipped.
	timeline.Consume(event.UserOpenedRoom{Room: room, User: domain.NewUserID(), At: time.Now()})

	req.Len(timeline.Messages, 1)
	req.Equal("history", timeline.Messages[0].Content)
}
