//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
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

type IUserRepository interface {
	CreateUser(username, hashedPassword string) (domain.User, error)
	GetUser(id domain.UserID) (domain.User, error)
	GetUserByUsername(username string) (domain.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) UserRepository {
	return UserRepository{db: db}
}

// diskUser is the stored representation of a user.
type diskUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func userKey(id domain.UserID) []byte { return []byte("user:" + id.String()) }
func usernameKey(name string) []byte  { return []byte("username:" + name) }

// CreateUser persists the user and the username index entry in one
// transaction. Username uniqueness is case-sensitive exact match; the
// check and the insert commit atomically, so two concurrent registrations
// of the same name produce exactly one success.
func (u UserRepository) CreateUser(username, hashedPassword string) (domain.User, error) {
	user := domain.User{
		ID:           domain.NewUserID(),
		Username:     username,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(diskUser{
		ID:           user.ID.String(),
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	for {
		err = u.db.Update(func(txn *badger.Txn) error {
			if _, err := txn.Get(usernameKey(username)); err == nil {
				return errors.ErrUserAlreadyExists
			} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(usernameKey(username), []byte(user.ID.String())); err != nil {
				return err
			}
			return txn.Set(userKey(user.ID), data)
		})
		if stderrors.Is(err, badger.ErrConflict) {
			// A concurrent registration touched the same index key.
			// Retry: the re-read will now observe the winner.
			continue
		}
		break
	}
	if stderrors.Is(err, errors.ErrUserAlreadyExists) {
		return domain.User{}, err
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return user, nil
}

// GetUser resolves a user referenced by a membership or message record.
// A dangling reference is a store consistency fault, not a credential
// problem, so absence surfaces as ErrStorage here.
func (u UserRepository) GetUser(id domain.UserID) (domain.User, error) {
	user, err := u.getByKey(userKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("%w: unknown user %s", errors.ErrStorage, id)
	}
	return user, err
}

func (u UserRepository) GetUserByUsername(username string) (domain.User, error) {
	var id []byte
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if err != nil {
			return err
		}
		id, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	userID, err := domain.ParseUserID(string(id))
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: corrupt username index", errors.ErrStorage)
	}
	user, err := u.getByKey(userKey(userID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrInvalidCredentials
	}
	return user, err
}

func (u UserRepository) getByKey(key []byte) (domain.User, error) {
	var stored diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, err
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	id, err := domain.ParseUserID(stored.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: corrupt user record", errors.ErrStorage)
	}
	return domain.User{
		ID:           id,
		Username:     stored.Username,
		PasswordHash: stored.PasswordHash,
		CreatedAt:    stored.CreatedAt,
	}, nil
}
