package runtime

import (
	"sync"

	"sgchat/domain"
	"sgchat/repositories"
)

// Directory is a thin read-through cache over the room repository.
// Room records never change after creation, so a cached hit stays valid
// forever; membership facts are volatile and always pass through to the
// store. The directory never creates or deletes rooms.
type Directory struct {
	roomRepository repositories.IRoomRepository
	userRepository repositories.IUserRepository

	mu    sync.RWMutex
	cache map[domain.RoomID]domain.Room
}

func NewDirectory(roomRepository repositories.IRoomRepository,
	userRepository repositories.IUserRepository) *Directory {
	return &Directory{
		roomRepository: roomRepository,
		userRepository: userRepository,
		cache:          make(map[domain.RoomID]domain.Room),
	}
}

// Room returns the room record, fetching from the store on first access.
// Absence is reported as ErrRoomNotFound by the repository and is not
// cached: a room created by a later request must become visible.
func (d *Directory) Room(room domain.RoomID) (domain.Room, error) {
	d.mu.RLock()
	cached, ok := d.cache[room]
	d.mu.RUnlock()
	if ok {
		return cached, nil
	}

	fetched, err := d.roomRepository.GetRoom(room)
	if err != nil {
		return domain.Room{}, err
	}
	d.Prime(fetched)
	return fetched, nil
}

// Prime inserts a known-good room record, typically right after creation.
func (d *Directory) Prime(room domain.Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[room.ID] = room
}

func (d *Directory) Rooms() ([]domain.Room, error) {
	return d.roomRepository.ListRooms()
}

// Members resolves the room's persisted membership to full user records.
func (d *Directory) Members(room domain.RoomID) ([]domain.User, error) {
	ids, err := d.roomRepository.Members(room)
	if err != nil {
		return nil, err
	}

	members := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		user, err := d.userRepository.GetUser(id)
		if err != nil {
			return nil, err
		}
		members = append(members, user)
	}
	return members, nil
}

func (d *Directory) IsMember(room domain.RoomID, user domain.UserID) (bool, error) {
	return d.roomRepository.IsMember(room, user)
}

func (d *Directory) RoomsForUser(user domain.UserID) ([]domain.Room, error) {
	ids, err := d.roomRepository.RoomsForUser(user)
	if err != nil {
		return nil, err
	}

	rooms := make([]domain.Room, 0, len(ids))
	for _, id := range ids {
		room, err := d.Room(id)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
