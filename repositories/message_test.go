package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"sgchat/domain"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_StoreAndReplayInOrder(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	repo := NewMessageRepository(openTestDB(t), log)

	room := domain.NewRoomID()
	author := domain.NewUserID()
	base := time.Now().UTC().Truncate(time.Second)

	// Given ten messages committed with increasing timestamps
	var want []string
	for i := 0; i < 10; i++ {
		content := fmt.Sprintf("message %d", i)
		want = append(want, content)
		req.NoError(repo.StoreMessage(domain.Message{
			ID:        domain.NewMessageID(),
			Room:      room,
			Author:    author,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Nanosecond),
		}))
	}

	// Then the replay comes back oldest first, matching commit order
	messages, err := repo.GetMessages(room)
	req.NoError(err)
	req.Len(messages, 10)
	for i, message := range messages {
		req.Equal(want[i], message.Content)
		req.Equal(room, message.Room)
		req.Equal(author, message.Author)
	}
}

func TestMessageRepository_RoomsAreIsolated(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	repo := NewMessageRepository(openTestDB(t), log)

	roomA := domain.NewRoomID()
	roomB := domain.NewRoomID()
	author := domain.NewUserID()
	now := time.Now().UTC()

	req.NoError(repo.StoreMessage(domain.Message{
		ID: domain.NewMessageID(), Room: roomA, Author: author, Content: "for A", CreatedAt: now,
	}))
	req.NoError(repo.StoreMessage(domain.Message{
		ID: domain.NewMessageID(), Room: roomB, Author: author, Content: "for B", CreatedAt: now,
	}))

	messages, err := repo.GetMessages(roomA)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("for A", messages[0].Content)

	// An empty room replays an empty history, not an error
	messages, err = repo.GetMessages(domain.NewRoomID())
	req.NoError(err)
	req.Empty(messages)
}

func TestMessageRepository_SameNanosecondCollision(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	repo := NewMessageRepository(openTestDB(t), log)

	room := domain.NewRoomID()
	author := domain.NewUserID()
	at := time.Now().UTC()

	// Two messages on the exact same nanosecond must both survive; the
	// message id in the key keeps them distinct
	for i := 0; i < 2; i++ {
		req.NoError(repo.StoreMessage(domain.Message{
			ID: domain.NewMessageID(), Room: room, Author: author,
			Content: "same instant", CreatedAt: at,
		}))
	}

	messages, err := repo.GetMessages(room)
	req.NoError(err)
	req.Len(messages, 2)
}
