//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"direct-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(username, hashedPassword string) (string, error)
	GetUserByUsername(username string) (User, error)
	ListUsernames() ([]string, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository-layer representation of an account.
// The chat core only ever sees the validated username.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

func userKey(username string) []byte {
	return []byte("user:" + username)
}

// CreateUser persists the account and returns the newly generated ID.
// The existence check and the write share one transaction, so duplicate
// registrations lose with ErrUserAlreadyExists.
func (u UserRepository) CreateUser(username, hashedPassword string) (string, error) {
	record := User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}

	data, err := cbor.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(username)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(userKey(username), data)
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrUserAlreadyExists) {
			return "", err
		}
		// A conflict means a concurrent transaction wrote the only key
		// this one reads, so the name was just taken by someone else.
		if stderrors.Is(err, badger.ErrConflict) {
			if _, getErr := u.GetUserByUsername(username); getErr == nil {
				return "", errors.ErrUserAlreadyExists
			}
		}
		return "", fmt.Errorf("%w: creating user: %v", errors.ErrStorageUnavailable, err)
	}
	return record.ID, nil
}

func (u UserRepository) GetUserByUsername(username string) (User, error) {
	var record User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &record)
		})
	})
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return User{}, errors.ErrUnknownPeer
		}
		return User{}, fmt.Errorf("%w: reading user: %v", errors.ErrStorageUnavailable, err)
	}
	return record, nil
}

// ListUsernames returns every registered display name, for the
// available-users listing.
func (u UserRepository) ListUsernames() ([]string, error) {
	var usernames []string
	err := u.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte("user:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			usernames = append(usernames, strings.TrimPrefix(string(it.Item().Key()), "user:"))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing users: %v", errors.ErrStorageUnavailable, err)
	}
	return usernames, nil
}
