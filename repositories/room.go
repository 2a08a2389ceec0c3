//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"direct-chat/domain"
	"direct-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// maxConflictRetries bounds the optimistic-transaction retry loop.
// Badger detects read-write conflicts between concurrent transactions
// and surfaces them as ErrConflict; retrying makes GetOrCreate safe
// under concurrent first contact.
const maxConflictRetries = 5

type IRoomRepository interface {
	GetOrCreate(key domain.RoomKey, now time.Time) (domain.Room, error)
	Get(key domain.RoomKey) (domain.Room, error)
	Touch(key domain.RoomKey, at time.Time) error
}

type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) RoomRepository {
	return RoomRepository{db: db, log: log}
}

type diskRoom struct {
	Key          domain.RoomKey
	CreatedAt    time.Time
	LastActiveAt time.Time
}

func roomKeyBytes(key domain.RoomKey) []byte {
	return []byte("room:" + key)
}

// GetOrCreate returns the room for the key, creating it on first contact.
// Idempotent: concurrent calls with the same key yield exactly one stored
// row, guaranteed by Badger's transaction conflict detection.
func (r RoomRepository) GetOrCreate(key domain.RoomKey, now time.Time) (domain.Room, error) {
	var room domain.Room
	err := r.withConflictRetry(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKeyBytes(key))
		if err == nil {
			return item.Value(func(val []byte) error {
				var record diskRoom
				if err := cbor.Unmarshal(val, &record); err != nil {
					return err
				}
				room = domain.Room(record)
				return nil
			})
		}
		if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		room = domain.Room{Key: key, CreatedAt: now, LastActiveAt: now}
		data, err := cbor.Marshal(diskRoom(room))
		if err != nil {
			return err
		}
		return txn.Set(roomKeyBytes(key), data)
	})
	if err != nil {
		return domain.Room{}, fmt.Errorf("%w: get-or-create room: %v", errors.ErrStorageUnavailable, err)
	}
	return room, nil
}

func (r RoomRepository) Get(key domain.RoomKey) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKeyBytes(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var record diskRoom
			if err := cbor.Unmarshal(val, &record); err != nil {
				return err
			}
			room = domain.Room(record)
			return nil
		})
	})
	if err != nil {
		return domain.Room{}, fmt.Errorf("%w: reading room: %v", errors.ErrStorageUnavailable, err)
	}
	return room, nil
}

// Touch advances the room's last-activity marker.
func (r RoomRepository) Touch(key domain.RoomKey, at time.Time) error {
	err := r.withConflictRetry(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKeyBytes(key))
		if err != nil {
			return err
		}
		var record diskRoom
		if err = item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &record)
		}); err != nil {
			return err
		}
		record.LastActiveAt = at
		data, err := cbor.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set(roomKeyBytes(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: touching room: %v", errors.ErrStorageUnavailable, err)
	}
	return nil
}

func (r RoomRepository) withConflictRetry(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = r.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		r.log.Debug("Transaction conflict, retrying", "attempt", attempt+1)
	}
	return err
}
