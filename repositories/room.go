//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"sgchat/domain"
	"sgchat/errors"

	"github.com/dgraph-io/badger/v4"
)

type IRoomRepository interface {
	CreateRoom(name string) (domain.Room, error)
	GetRoom(id domain.RoomID) (domain.Room, error)
	ListRooms() ([]domain.Room, error)

	AddMember(room domain.RoomID, user domain.UserID) error
	RemoveMember(room domain.RoomID, user domain.UserID) error
	Members(room domain.RoomID) ([]domain.UserID, error)
	IsMember(room domain.RoomID, user domain.UserID) (bool, error)
	RoomsForUser(user domain.UserID) ([]domain.RoomID, error)
}

// RoomRepository stores room records, a room-name uniqueness index and
// membership facts in BadgerDB.
//
// Key layout:
//
//	room:{room_id}               -> room record
//	roomname:{name}              -> room_id (uniqueness index)
//	member:{room_id}:{user_id}   -> (membership, scanned per room)
//	userroom:{user_id}:{room_id} -> (membership, scanned per user)
//
// Both membership keys are written in the same transaction so the two
// scans can never disagree.
type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) RoomRepository {
	return RoomRepository{db: db}
}

type diskRoom struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func roomKey(id domain.RoomID) []byte { return []byte("room:" + id.String()) }
func roomNameKey(name string) []byte  { return []byte("roomname:" + name) }

func memberKey(room domain.RoomID, user domain.UserID) []byte {
	return []byte("member:" + room.String() + ":" + user.String())
}

func userRoomKey(user domain.UserID, room domain.RoomID) []byte {
	return []byte("userroom:" + user.String() + ":" + room.String())
}

// CreateRoom checks name uniqueness (case-sensitive exact match) and
// inserts the room in one serializable transaction. When two sessions
// race on the same name, Badger aborts one commit with ErrConflict; the
// retry then observes the winner's index entry and reports
// ErrRoomAlreadyExists, so exactly one create succeeds.
func (r RoomRepository) CreateRoom(name string) (domain.Room, error) {
	room := domain.NewRoom(name)
	data, err := json.Marshal(diskRoom{
		ID:        room.ID.String(),
		Name:      room.Name,
		CreatedAt: room.CreatedAt,
	})
	if err != nil {
		return domain.Room{}, fmt.Errorf("marshal failed: %w", err)
	}

	for {
		err = r.db.Update(func(txn *badger.Txn) error {
			if _, err := txn.Get(roomNameKey(name)); err == nil {
				return errors.ErrRoomAlreadyExists
			} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(roomNameKey(name), []byte(room.ID.String())); err != nil {
				return err
			}
			return txn.Set(roomKey(room.ID), data)
		})
		if stderrors.Is(err, badger.ErrConflict) {
			continue
		}
		break
	}
	if stderrors.Is(err, errors.ErrRoomAlreadyExists) {
		return domain.Room{}, err
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return room, nil
}

func (r RoomRepository) GetRoom(id domain.RoomID) (domain.Room, error) {
	var stored diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return toRoom(stored)
}

func (r RoomRepository) ListRooms() ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("room:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var stored diskRoom
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			})
			if err != nil {
				return err
			}
			room, err := toRoom(stored)
			if err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return rooms, nil
}

// AddMember is idempotent: re-adding an existing member rewrites the
// same keys.
func (r RoomRepository) AddMember(room domain.RoomID, user domain.UserID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(memberKey(room, user), nil); err != nil {
			return err
		}
		return txn.Set(userRoomKey(user, room), nil)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return nil
}

func (r RoomRepository) RemoveMember(room domain.RoomID, user domain.UserID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(memberKey(room, user)); err != nil {
			return err
		}
		return txn.Delete(userRoomKey(user, room))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return nil
}

func (r RoomRepository) Members(room domain.RoomID) ([]domain.UserID, error) {
	var members []domain.UserID
	prefixStr := "member:" + room.String() + ":"
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(prefixStr)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := string(it.Item().Key()[len(prefixStr):])
			user, err := domain.ParseUserID(raw)
			if err != nil {
				return fmt.Errorf("corrupt member key %q", raw)
			}
			members = append(members, user)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return members, nil
}

func (r RoomRepository) IsMember(room domain.RoomID, user domain.UserID) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(room, user))
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return true, nil
}

func (r RoomRepository) RoomsForUser(user domain.UserID) ([]domain.RoomID, error) {
	var rooms []domain.RoomID
	prefixStr := "userroom:" + user.String() + ":"
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(prefixStr)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := string(it.Item().Key()[len(prefixStr):])
			room, err := domain.ParseRoomID(raw)
			if err != nil {
				return fmt.Errorf("corrupt userroom key %q", raw)
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return rooms, nil
}

func toRoom(stored diskRoom) (domain.Room, error) {
	id, err := domain.ParseRoomID(stored.ID)
	if err != nil {
		return domain.Room{}, fmt.Errorf("%w: corrupt room record", errors.ErrStorage)
	}
	return domain.Room{ID: id, Name: stored.Name, CreatedAt: stored.CreatedAt}, nil
}
