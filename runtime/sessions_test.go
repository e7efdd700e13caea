package runtime

import (
	"log/slog"
	"testing"

	"sgchat/domain"
	"sgchat/domain/event"
	"sgchat/errors"
	"sgchat/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sessionFixture struct {
	manager   *SessionManager
	registry  *Registry
	directory *mocks.MockIDirectory
	rooms     *mocks.MockIRoomRepository
	messages  *mocks.MockIMessageRepository
	events    chan event.DomainEvent
	identity  domain.UserIdentity
}

func newSessionFixture(t *testing.T, ctrl *gomock.Controller) sessionFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	directory := mocks.NewMockIDirectory(ctrl)
	rooms := mocks.NewMockIRoomRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	events := make(chan event.DomainEvent, 16)
	coordinator := NewCoordinator(log, registry, directory, rooms, messages, events)

	identity := domain.UserIdentity{ID: domain.NewUserID(), Username: "alice"}
	resolve := func(token string) (domain.UserIdentity, error) {
		if token != "valid" {
			return domain.UserIdentity{}, errors.ErrUnauthenticated
		}
		return identity, nil
	}

	return sessionFixture{
		manager:   NewSessionManager(log, resolve, registry, coordinator, nil),
		registry:  registry,
		directory: directory,
		rooms:     rooms,
		messages:  messages,
		events:    events,
		identity:  identity,
	}
}

func (f sessionFixture) connect(t *testing.T, sink *mocks.MockEventSink) *Session {
	t.Helper()
	f.directory.EXPECT().RoomsForUser(f.identity.ID).Return(nil, nil)
	f.directory.EXPECT().Rooms().Return(nil, nil)
	session, _, err := f.manager.Connect("valid", sink)
	require.NoError(t, err)
	return session
}

func TestSessionManager_Connect_RejectsBadToken(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newSessionFixture(t, ctrl)

	_, _, err := f.manager.Connect("garbage", mocks.NewMockEventSink(ctrl))
	req.ErrorIs(err, errors.ErrUnauthenticated)

	// Nothing was registered for an unauthenticated caller
	req.Empty(f.registry.AllSinks())
}

func TestSession_Disconnect_SweepsOpenRooms(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newSessionFixture(t, ctrl)

	sink := mocks.NewMockEventSink(ctrl)
	session := f.connect(t, sink)

	room := domain.NewRoomID()
	f.directory.EXPECT().Room(room).Return(domain.Room{ID: room}, nil)
	f.directory.EXPECT().IsMember(room, f.identity.ID).Return(true, nil)
	f.directory.EXPECT().Members(room).Return(nil, nil)
	f.messages.EXPECT().GetMessages(room).Return(nil, nil)

	_, err := session.OpenRoom(room)
	req.NoError(err)
	req.Contains(f.registry.Snapshot(room), f.identity.ID)
	<-f.events // UserOpenedRoom

	// When the connection dies without an explicit close
	session.Disconnect()

	// Then the open room was closed and pruned, and the sink removed
	req.Nil(f.registry.entry(room))
	req.Empty(f.registry.AllSinks())
	evt := <-f.events
	req.IsType(event.UserClosedRoom{}, evt)

	// A second disconnect report changes nothing
	session.Disconnect()
	req.Empty(f.events)
}

func TestSession_Disconnect_StaleConnectionKeepsNewSink(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newSessionFixture(t, ctrl)

	oldSink := mocks.NewMockEventSink(ctrl)
	oldSession := f.connect(t, oldSink)

	// Given the same user reconnects before the old transport notices
	newSink := mocks.NewMockEventSink(ctrl)
	f.connect(t, newSink)

	// When the stale connection finally reports its disconnect
	oldSession.Disconnect()

	// Then the fresh connection's delivery is untouched
	sinks := f.registry.AllSinks()
	req.Len(sinks, 1)
	req.Same(newSink, sinks[0])
}

func TestSession_LeaveRoom_ForgetsOpenState(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newSessionFixture(t, ctrl)

	sink := mocks.NewMockEventSink(ctrl)
	session := f.connect(t, sink)

	room := domain.NewRoomID()
	f.directory.EXPECT().Room(room).Return(domain.Room{ID: room}, nil)
	f.directory.EXPECT().IsMember(room, f.identity.ID).Return(true, nil)
	f.directory.EXPECT().Members(room).Return(nil, nil)
	f.messages.EXPECT().GetMessages(room).Return(nil, nil)

	_, err := session.OpenRoom(room)
	req.NoError(err)

	f.directory.EXPECT().Room(room).Return(domain.Room{ID: room}, nil)
	f.rooms.EXPECT().RemoveMember(room, f.identity.ID).Return(nil)
	req.NoError(session.LeaveRoom(room))

	// The session no longer considers the room open, so a later
	// disconnect must not emit another close for it
	for len(f.events) > 0 {
		<-f.events
	}
	session.Disconnect()
	req.Empty(f.events)
}
