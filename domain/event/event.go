package event

import (
	"sgchat/domain"
	"time"
)

// DomainEvent is anything the fan-out pipeline can deliver to connected
// sinks. Room-scoped events go to the sinks of users currently present in
// RoomID(); RoomCreated is the only global event and goes to every
// registered sink.
type DomainEvent interface {
	RoomID() domain.RoomID
}

// RoomCreated is broadcast to all connections, not room-scoped.
type RoomCreated struct {
	Room domain.Room
	At   time.Time
}

func (e RoomCreated) RoomID() domain.RoomID { return e.Room.ID }

// UserJoinedRoom signals a durable membership change.
type UserJoinedRoom struct {
	Room     domain.RoomID
	User     domain.UserID
	Username string
	At       time.Time
}

func (e UserJoinedRoom) RoomID() domain.RoomID { return e.Room }

type UserLeftRoom struct {
	Room domain.RoomID
	User domain.UserID
	At   time.Time
}

func (e UserLeftRoom) RoomID() domain.RoomID { return e.Room }

// UserOpenedRoom signals presence, not membership: the user now has the
// room view open and will receive live messages.
type UserOpenedRoom struct {
	Room domain.RoomID
	User domain.UserID
	At   time.Time
}

func (e UserOpenedRoom) RoomID() domain.RoomID { return e.Room }

type UserClosedRoom struct {
	Room domain.RoomID
	User domain.UserID
	At   time.Time
}

func (e UserClosedRoom) RoomID() domain.RoomID { return e.Room }

// MessageReceived carries a message that is already durable. The
// dispatcher only emits it after the store accepted the message.
type MessageReceived struct {
	Message domain.Message
}

func (e MessageReceived) RoomID() domain.RoomID { return e.Message.Room }
