//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sgchat/domain"
	"sgchat/errors"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessages(room domain.RoomID) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

type diskMessage struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// messageKey is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the message id as a collision disconnector
//     if two messages carry the same nanosecond.
//
// The dispatcher serializes sends per room and assigns strictly increasing
// timestamps, so within one room the key order is exactly the commit order.
func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		message.Room,
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

// StoreMessage persists a message in BadgerDB.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	bytes, err := json.Marshal(diskMessage{
		ID:        message.ID.String(),
		Room:      message.Room.String(),
		Author:    message.Author.String(),
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), bytes)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return nil
}

// GetMessages retrieves the full message log of a room using a prefix
// scan. Thanks to the padded timestamp in the key, messages come back
// oldest first, matching the order in which they were committed.
func (m MessageRepository) GetMessages(room domain.RoomID) ([]domain.Message, error) {
	var stored []diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(fmt.Sprintf("msg:%s:", room))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dm diskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			})
			if err != nil {
				return err
			}
			stored = append(stored, dm)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	messages := make([]domain.Message, 0, len(stored))
	for _, dm := range stored {
		message, err := toMessage(dm)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	m.log.Debug(fmt.Sprintf("Loaded %d messages for room %s", len(messages), room))
	return messages, nil
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsed, err := parseMessageIDs(dm)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: corrupt message record", errors.ErrStorage)
	}
	return parsed, nil
}

func parseMessageIDs(dm diskMessage) (domain.Message, error) {
	id, err := domain.ParseMessageID(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	room, err := domain.ParseRoomID(dm.Room)
	if err != nil {
		return domain.Message{}, err
	}
	author, err := domain.ParseUserID(dm.Author)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        id,
		Room:      room,
		Author:    author,
		Content:   dm.Content,
		CreatedAt: dm.CreatedAt,
	}, nil
}
