package domain

import "time"

// Room is the durable room record. Membership and messages live in the
// repositories; presence lives in the runtime registry and is never
// persisted. Rooms are immutable once created and are never deleted,
// even when empty.
type Room struct {
	ID        RoomID
	Name      string
	CreatedAt time.Time
}

func NewRoom(name string) Room {
	return Room{
		ID:        NewRoomID(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}
