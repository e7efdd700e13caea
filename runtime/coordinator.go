package runtime

import (
	"fmt"
	"log/slog"
	"time"

	"sgchat/contract"
	"sgchat/domain"
	"sgchat/domain/event"
	"sgchat/errors"
	"sgchat/repositories"

	"github.com/samber/lo"
)

// OpenRoomResult is the logically consistent view returned by OpenRoom:
// membership is fetched before the presence snapshot is taken, so the
// present subset can never contain a user that is not also in Members.
type OpenRoomResult struct {
	Members []domain.User
	Present []domain.User
	History []domain.Message
}

// ConnectResult is returned on connect: the caller's persisted rooms and
// everything else they could join.
type ConnectResult struct {
	JoinedRooms    []domain.Room
	AvailableRooms []domain.Room
}

// Coordinator drives the per-(user, room) lifecycle
// NotMember -> Member(closed) -> Member(open) and back, keeping the
// volatile presence registry consistent with the durable membership
// facts in the store. It owns every transition that emits notification
// events, except message sends which belong to the Dispatcher.
type Coordinator struct {
	log            *slog.Logger
	registry       contract.IRegistry
	directory      contract.IDirectory
	roomRepository repositories.IRoomRepository
	messages       repositories.IMessageRepository
	events         chan<- event.DomainEvent
}

func NewCoordinator(log *slog.Logger, registry contract.IRegistry,
	directory contract.IDirectory, roomRepository repositories.IRoomRepository,
	messages repositories.IMessageRepository, events chan<- event.DomainEvent) *Coordinator {
	return &Coordinator{
		log:            log,
		registry:       registry,
		directory:      directory,
		roomRepository: roomRepository,
		messages:       messages,
		events:         events,
	}
}

// Connect registers the connection's sink and answers with the caller's
// joined and available room lists.
func (c *Coordinator) Connect(identity domain.UserIdentity, sink contract.EventSink) (ConnectResult, error) {
	c.registry.Register(identity.ID, sink)

	joined, err := c.directory.RoomsForUser(identity.ID)
	if err != nil {
		return ConnectResult{}, err
	}
	all, err := c.directory.Rooms()
	if err != nil {
		return ConnectResult{}, err
	}

	joinedIDs := lo.SliceToMap(joined, func(room domain.Room) (domain.RoomID, struct{}) {
		return room.ID, struct{}{}
	})
	available := lo.Filter(all, func(room domain.Room, _ int) bool {
		_, ok := joinedIDs[room.ID]
		return !ok
	})

	return ConnectResult{JoinedRooms: joined, AvailableRooms: available}, nil
}

// CreateRoom persists a new room under a globally unique name
// (case-sensitive exact match) and broadcasts it to every connection.
// Two concurrent creates with the same name yield exactly one success;
// the loser gets ErrRoomAlreadyExists from the store's atomic check.
// The creator is not implicitly a member.
func (c *Coordinator) CreateRoom(identity domain.UserIdentity, name string) (domain.Room, error) {
	if name == "" {
		return domain.Room{}, fmt.Errorf("%w: empty room name", errors.ErrInvalidArgument)
	}

	room, err := c.roomRepository.CreateRoom(name)
	if err != nil {
		return domain.Room{}, err
	}
	c.directory.Prime(room)

	c.log.Info("Room created", "room", room.ID.String(), "name", name, "by", identity.ID.String())
	c.events <- event.RoomCreated{Room: room, At: time.Now().UTC()}
	return room, nil
}

// JoinRoom makes the caller a persisted member. Re-joining is a no-op at
// the store layer, not an error; membership is persisted before the call
// returns success.
func (c *Coordinator) JoinRoom(identity domain.UserIdentity, room domain.RoomID) error {
	if _, err := c.directory.Room(room); err != nil {
		return err
	}
	if err := c.roomRepository.AddMember(room, identity.ID); err != nil {
		return err
	}

	c.events <- event.UserJoinedRoom{
		Room:     room,
		User:     identity.ID,
		Username: identity.Username,
		At:       time.Now().UTC(),
	}
	return nil
}

// LeaveRoom removes membership. If the caller currently has the room
// open, it is closed first: a presence entry must never outlive the
// membership fact it depends on.
func (c *Coordinator) LeaveRoom(identity domain.UserIdentity, room domain.RoomID) error {
	if _, err := c.directory.Room(room); err != nil {
		return err
	}

	wasPresent := lo.Contains(c.registry.Snapshot(room), identity.ID)
	if wasPresent {
		c.CloseRoom(identity, room)
	}

	if err := c.roomRepository.RemoveMember(room, identity.ID); err != nil {
		return err
	}

	c.events <- event.UserLeftRoom{Room: room, User: identity.ID, At: time.Now().UTC()}
	return nil
}

// OpenRoom transitions Member(closed) -> Member(open): the caller starts
// receiving live fan-out for the room. Members and history are read
// before presence is mutated; the returned present subset reflects the
// peers that were already there, as the caller's own arrival is announced
// via UserOpenedRoom.
func (c *Coordinator) OpenRoom(identity domain.UserIdentity, room domain.RoomID) (OpenRoomResult, error) {
	if _, err := c.directory.Room(room); err != nil {
		return OpenRoomResult{}, err
	}

	isMember, err := c.directory.IsMember(room, identity.ID)
	if err != nil {
		return OpenRoomResult{}, err
	}
	if !isMember {
		return OpenRoomResult{}, fmt.Errorf("%w: %s", errors.ErrUserHasNotJoinedRoom, room)
	}

	members, err := c.directory.Members(room)
	if err != nil {
		return OpenRoomResult{}, err
	}
	history, err := c.messages.GetMessages(room)
	if err != nil {
		return OpenRoomResult{}, err
	}

	presentIDs := lo.SliceToMap(c.registry.Snapshot(room), func(id domain.UserID) (domain.UserID, struct{}) {
		return id, struct{}{}
	})
	present := lo.Filter(members, func(member domain.User, _ int) bool {
		_, ok := presentIDs[member.ID]
		return ok
	})

	c.registry.Join(room, identity.ID)
	c.events <- event.UserOpenedRoom{Room: room, User: identity.ID, At: time.Now().UTC()}

	return OpenRoomResult{Members: members, Present: present, History: history}, nil
}

// CloseRoom transitions Member(open) -> Member(closed). It is safe to
// call when presence is already gone: disconnects race explicit closes,
// and cleanup must win either way. Closing an already-closed room is a
// no-op, not an error.
func (c *Coordinator) CloseRoom(identity domain.UserIdentity, room domain.RoomID) {
	c.registry.Leave(room, identity.ID)
	c.events <- event.UserClosedRoom{Room: room, User: identity.ID, At: time.Now().UTC()}
	c.registry.PruneIfEmpty(room)
}
