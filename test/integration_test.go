package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"sgchat/auth"
	"sgchat/domain"
	"sgchat/domain/event"
	"sgchat/errors"
	"sgchat/moderation"
	"sgchat/repositories"
	"sgchat/runtime"
	"sgchat/runtime/workers"
	"sgchat/services"
	"sgchat/sink"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type stack struct {
	auth     services.IAuthService
	chat     services.IChatService
	registry *runtime.Registry
	sup      *workers.Supervisor
}

// newStack wires the whole server out of real parts over a throwaway
// Badger instance, with the fan-out worker running under supervision,
// exactly like main does.
func newStack(t *testing.T) stack {
	t.Helper()
	req := require.New(t)

	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	userRepository := repositories.NewUserRepository(db)
	roomRepository := repositories.NewRoomRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log)

	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	req.NoError(err)

	events := make(chan event.DomainEvent, 100)
	registry := runtime.NewRegistry()
	directory := runtime.NewDirectory(roomRepository, userRepository)
	dispatcher := runtime.NewDispatcher(log, directory, messageRepository, &moderator, events)
	coordinator := runtime.NewCoordinator(log, registry, directory, roomRepository, messageRepository, events)
	sessions := runtime.NewSessionManager(log, auth.ResolveIdentity, registry, coordinator, dispatcher)

	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewEventFanout(log, registry, events, time.Second))
	go sup.Run(context.Background())

	t.Cleanup(func() {
		sup.Stop()
		_ = db.Close()
	})

	return stack{
		auth:     services.NewAuthService(userRepository, time.Hour),
		chat:     services.NewChatService(sessions),
		registry: registry,
		sup:      sup,
	}
}

func receive(t *testing.T, s *sink.SessionSink) event.DomainEvent {
	t.Helper()
	select {
	case evt := <-s.Events:
		return evt
	case <-time.After(2 * time.Second):
		require.Fail(t, "Timeout: event never reached the sink")
		return nil
	}
}

func Test_Scenario_ChatFlow(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	// Given two registered users
	aliceToken, _, err := s.auth.Register("alice42", "ComplexPass123!")
	req.NoError(err)
	bobToken, bob, err := s.auth.Register("bob4242", "ComplexPass456!")
	req.NoError(err)

	// When both connect
	aliceSink := sink.NewSessionSink(10)
	aliceSession, connected, err := s.chat.Connect(string(aliceToken), aliceSink)
	req.NoError(err)
	req.Empty(connected.JoinedRooms)
	req.Empty(connected.AvailableRooms)

	bobSink := sink.NewSessionSink(10)
	bobSession, _, err := s.chat.Connect(string(bobToken), bobSink)
	req.NoError(err)

	// And alice creates a room: everyone connected hears about it
	room, err := aliceSession.CreateRoom("general")
	req.NoError(err)
	req.IsType(event.RoomCreated{}, receive(t, aliceSink))
	req.IsType(event.RoomCreated{}, receive(t, bobSink))

	// Then a reconnect would list it as available to bob
	_, bobView, err := s.chat.Connect(string(bobToken), bobSink)
	req.NoError(err)
	req.Len(bobView.AvailableRooms, 1)
	req.Equal("general", bobView.AvailableRooms[0].Name)

	// When both join and open the room
	req.NoError(aliceSession.JoinRoom(room.ID))
	req.NoError(bobSession.JoinRoom(room.ID))

	view, err := aliceSession.OpenRoom(room.ID)
	req.NoError(err)
	req.Len(view.Members, 2)
	req.Empty(view.Present) // bob has not opened yet
	req.Empty(view.History)

	receiveOfType[event.UserOpenedRoom](t, aliceSink)

	view, err = bobSession.OpenRoom(room.ID)
	req.NoError(err)
	req.Len(view.Present, 1) // alice is already there

	// When alice sends a message containing a censored word
	message, err := aliceSession.SendMessage(room.ID, "hello badger !")
	req.NoError(err)
	req.Equal("hello ****** !", message.Content)

	// Then both open peers receive the sanitized message
	aliceEvt := receiveOfType[event.MessageReceived](t, aliceSink)
	bobEvt := receiveOfType[event.MessageReceived](t, bobSink)
	req.Equal(message, aliceEvt.Message)
	req.Equal(message, bobEvt.Message)

	// And the history replays it for a late opener
	bobSession.CloseRoom(room.ID)
	view, err = bobSession.OpenRoom(room.ID)
	req.NoError(err)
	req.Len(view.History, 1)
	req.Equal("hello ****** !", view.History[0].Content)

	// When bob disconnects abruptly, his presence is cleaned up
	bobSession.Disconnect()
	req.NotContains(s.registry.Snapshot(room.ID), bob.ID)

	// And a member that never joined cannot open
	ghostToken, _, err := s.auth.Register("carol123", "ComplexPass789!")
	req.NoError(err)
	ghostSession, _, err := s.chat.Connect(string(ghostToken), sink.NewSessionSink(10))
	req.NoError(err)
	_, err = ghostSession.OpenRoom(room.ID)
	req.ErrorIs(err, errors.ErrUserHasNotJoinedRoom)
}

func Test_Scenario_DeliveryOrderMatchesCommitOrder(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	token, _, err := s.auth.Register("sender99", "ComplexPass123!")
	req.NoError(err)

	senderSink := sink.NewSessionSink(100)
	session, _, err := s.chat.Connect(string(token), senderSink)
	req.NoError(err)

	room, err := session.CreateRoom("ordered")
	req.NoError(err)
	receive(t, senderSink) // RoomCreated

	req.NoError(session.JoinRoom(room.ID))
	_, err = session.OpenRoom(room.ID)
	req.NoError(err)
	receiveOfType[event.UserOpenedRoom](t, senderSink)

	// Given a burst of sends
	const burst = 20
	var sent []domain.Message
	for i := 0; i < burst; i++ {
		message, err := session.SendMessage(room.ID, "tick")
		req.NoError(err)
		sent = append(sent, message)
	}

	// Then the sink observes them in exactly the commit order
	for i := 0; i < burst; i++ {
		evt := receiveOfType[event.MessageReceived](t, senderSink)
		req.Equal(sent[i].ID, evt.Message.ID, "delivery out of order at %d", i)
	}

	// And the history replays the same order
	view := mustOpenAgain(t, session, room.ID)
	req.Len(view.History, burst)
	for i, message := range view.History {
		req.Equal(sent[i].ID, message.ID, "history out of order at %d", i)
	}
}

func receiveOfType[T event.DomainEvent](t *testing.T, s *sink.SessionSink) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-s.Events:
			if typed, ok := evt.(T); ok {
				return typed
			}
		case <-deadline:
			var zero T
			require.Fail(t, "Timeout waiting for event type")
			return zero
		}
	}
}

func mustOpenAgain(t *testing.T, session *runtime.Session, room domain.RoomID) runtime.OpenRoomResult {
	t.Helper()
	session.CloseRoom(room)
	view, err := session.OpenRoom(room)
	require.NoError(t, err)
	return view
}
