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

type coordinatorFixture struct {
	coordinator *Coordinator
	registry    *Registry
	directory   *mocks.MockIDirectory
	rooms       *mocks.MockIRoomRepository
	messages    *mocks.MockIMessageRepository
	events      chan event.DomainEvent
}

// newCoordinatorFixture wires a coordinator over a real registry and
// mocked repositories: presence behavior is the thing under test, the
// store is not.
func newCoordinatorFixture(t *testing.T, ctrl *gomock.Controller) coordinatorFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	directory := mocks.NewMockIDirectory(ctrl)
	rooms := mocks.NewMockIRoomRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	events := make(chan event.DomainEvent, 16)

	return coordinatorFixture{
		coordinator: NewCoordinator(log, registry, directory, rooms, messages, events),
		registry:    registry,
		directory:   directory,
		rooms:       rooms,
		messages:    messages,
		events:      events,
	}
}

func TestCoordinator_Connect_PartitionsRooms(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newCoordinatorFixture(t, ctrl)

	identity := domain.UserIdentity{ID: domain.NewUserID(), Username: "alice"}
	sink := mocks.NewMockEventSink(ctrl)

	general := domain.Room{ID: domain.NewRoomID(), Name: "general"}
	random := domain.Room{ID: domain.NewRoomID(), Name: "random"}

	f.directory.EXPECT().RoomsForUser(identity.ID).Return([]domain.Room{general}, nil)
	f.directory.EXPECT().Rooms().Return([]domain.Room{general, random}, nil)

	result, err := f.coordinator.Connect(identity, sink)
	req.NoError(err)

	// Then joined and available rooms never overlap
	req.Equal([]domain.Room{general}, result.JoinedRooms)
	req.Equal([]domain.Room{random}, result.AvailableRooms)

	// And the sink is registered for global broadcasts
	req.Len(f.registry.AllSinks(), 1)
}

func TestCoordinator_CreateRoom(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newCoordinatorFixture(t, ctrl)

	identity := domain.UserIdentity{ID: domain.NewUserID(), Username: "alice"}

	// An empty name is rejected before touching the store
	_, err := f.coordinator.CreateRoom(identity, "")
	req.ErrorIs(err, errors.ErrInvalidArgument)

	created := domain.NewRoom("general")
	f.rooms.EXPECT().CreateRoom("general").Return(created, nil)
	f.directory.EXPECT().Prime(created)

	room, err := f.coordinator.CreateRoom(identity, "general")
	req.NoError(err)
	req.Equal(created, room)

	evt := <-f.events
	req.Equal(created, evt.(event.RoomCreated).Room)

	// A name conflict from the store propagates untouched
	f.rooms.EXPECT().CreateRoom("general").Return(domain.Room{}, errors.ErrRoomAlreadyExists)
	_, err = f.coordinator.CreateRoom(identity, "general")
	req.ErrorIs(err, errors.ErrRoomAlreadyExists)
	req.Empty(f.events)
}

func TestCoordinator_JoinRoom(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newCoordinatorFixture(t, ctrl)

	identity := domain.UserIdentity{ID: domain.NewUserID(), Username: "alice"}
	room := domain.NewRoomID()

	// Unknown rooms are refused without a membership write
	f.directory.EXPECT().Room(room).Return(domain.Room{}, errors.ErrRoomNotFound)
	err := f.coordinator.JoinRoom(identity, room)
	req.ErrorIs(err, errors.ErrRoomNotFound)

	// Membership is persisted before the notification goes out
	f.directory.EXPECT().Room(room).Return(domain.Room{ID: room}, nil)
	f.rooms.EXPECT().AddMember(room, identity.ID).Return(nil)

	req.NoError(f.coordinator.JoinRoom(identity, room))

	evt := <-f.events
	joined := evt.(event.UserJoinedRoom)
	req.Equal(room, joined.Room)
	req.Equal(identity.ID, joined.User)
	req.Equal("alice", joined.Username)
}

func TestCoordinator_LeaveRoom_ClosesOpenRoomFirst(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newCoordinatorFixture(t, ctrl)

	identity := domain.UserIdentity{ID: domain.NewUserID(), Username: "alice"}
	room := domain.NewRoomID()

	// Given the caller has the room open
	f.registry.Join(room, identity.ID)

	f.directory.EXPECT().Room(room).Return(domain.Room{ID: room}, nil)
	f.rooms.EXPECT().RemoveMember(room, identity.ID).Return(nil)

	req.NoError(f.coordinator.LeaveRoom(identity, room))

	// Then presence went away along with membership
	req.Empty(f.registry.Snapshot(room))

	// And the close was announced before the leave
	first := <-f.events
	second := <-f.events
	req.IsType(event.UserClosedRoom{}, first)
	req.IsType(event.UserLeftRoom{}, second)
}

func TestCoordinator_LeaveRoom_NotPresent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newCoordinatorFixture(t, ctrl)

	identity := domain.UserIdentity{ID: domain.NewUserID()}
	room := domain.NewRoomID()

	f.directory.EXPECT().Room(room).Return(domain.Room{ID: room}, nil)
	f.rooms.EXPECT().RemoveMember(room, identity.ID).Return(nil)

	req.NoError(f.coordinator.LeaveRoom(identity, room))

	// No close event for a room the caller never had open
	evt := <-f.events
	req.IsType(event.UserLeftRoom{}, evt)
	req.Empty(f.events)
}

func TestCoordinator_OpenRoom_RequiresMembership(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newCoordinatorFixture(t, ctrl)

	identity := domain.UserIdentity{ID: domain.NewUserID()}
	room := domain.NewRoomID()

	f.directory.EXPECT().Room(room).Return(domain.Room{ID: room}, nil)
	f.directory.EXPECT().IsMember(room, identity.ID).Return(false, nil)

	_, err := f.coordinator.OpenRoom(identity, room)
	req.ErrorIs(err, errors.ErrUserHasNotJoinedRoom)

	// The caller must not have become present
	req.Empty(f.registry.Snapshot(room))
	req.Empty(f.events)
}

func TestCoordinator_OpenRoom(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newCoordinatorFixture(t, ctrl)

	alice := domain.User{ID: domain.NewUserID(), Username: "alice"}
	bob := domain.User{ID: domain.NewUserID(), Username: "bob"}
	identity := domain.UserIdentity{ID: alice.ID, Username: alice.Username}
	room := domain.NewRoomID()

	// Given bob already has the room open
	f.registry.Join(room, bob.ID)

	history := []domain.Message{{ID: domain.NewMessageID(), Room: room, Author: bob.ID, Content: "hi"}}
	f.directory.EXPECT().Room(room).Return(domain.Room{ID: room}, nil)
	f.directory.EXPECT().IsMember(room, alice.ID).Return(true, nil)
	f.directory.EXPECT().Members(room).Return([]domain.User{alice, bob}, nil)
	f.messages.EXPECT().GetMessages(room).Return(history, nil)

	result, err := f.coordinator.OpenRoom(identity, room)
	req.NoError(err)

	// Then the view lists all members, the peers already present, and
	// the full history; the caller is not in her own present subset
	req.Equal([]domain.User{alice, bob}, result.Members)
	req.Equal([]domain.User{bob}, result.Present)
	req.Equal(history, result.History)

	// And the caller is now present for subsequent fan-out
	req.Contains(f.registry.Snapshot(room), alice.ID)

	evt := <-f.events
	opened := evt.(event.UserOpenedRoom)
	req.Equal(alice.ID, opened.User)
}

func TestCoordinator_CloseRoom_PrunesEmptyRoom(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newCoordinatorFixture(t, ctrl)

	identity := domain.UserIdentity{ID: domain.NewUserID()}
	room := domain.NewRoomID()

	f.registry.Join(room, identity.ID)
	f.coordinator.CloseRoom(identity, room)

	// The last close removes the room's presence entry entirely
	req.Nil(f.registry.entry(room))
	evt := <-f.events
	req.IsType(event.UserClosedRoom{}, evt)

	// Closing again is a harmless no-op
	f.coordinator.CloseRoom(identity, room)
	<-f.events
}
