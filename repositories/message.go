//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"direct-chat/domain"
	"direct-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	History(key domain.RoomKey) ([]DiskMessage, error)
	AllMessages() ([]DiskMessage, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// DiskMessage is the storage-layer representation of a chat message.
type DiskMessage struct {
	ID        uuid.UUID
	Room      domain.RoomKey
	Sender    string
	Recipient string
	Content   string
	At        time.Time
	IsRead    bool
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{room_key}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order equals creation order).
//  2. Prevent data loss by using the UUID as a collision disconnector if
//     two messages arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.Room,
		message.At.UnixNano(),
		message.ID,
	)
	bytes, err := cbor.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return fmt.Errorf("%w: storing message: %v", errors.ErrStorageUnavailable, err)
	}
	return nil
}

// History retrieves every message ever stored for a room using a forward
// prefix scan. Thanks to the padded timestamp in the key, messages come
// back naturally sorted by creation time, ascending. The scan always
// reflects the persisted state at call time; nothing is cached between
// calls.
func (m MessageRepository) History(key domain.RoomKey) ([]DiskMessage, error) {
	return m.scanPrefix([]byte(fmt.Sprintf("msg:%s:", key)))
}

// AllMessages scans the whole message keyspace, grouped by room and
// ascending by creation time within each room. Used to warm read models
// from the persisted past on startup.
func (m MessageRepository) AllMessages() ([]DiskMessage, error) {
	return m.scanPrefix([]byte("msg:"))
}

func (m MessageRepository) scanPrefix(prefix []byte) ([]DiskMessage, error) {
	var byteMessages [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				copied := make([]byte, len(value))
				copy(copied, value)
				byteMessages = append(byteMessages, copied)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading messages: %v", errors.ErrStorageUnavailable, err)
	}

	var diskMessages []DiskMessage
	for _, b := range byteMessages {
		var message DiskMessage
		if err = cbor.Unmarshal(b, &message); err != nil {
			return nil, fmt.Errorf("unmarshal failed: %w", err)
		}
		diskMessages = append(diskMessages, message)
	}
	return diskMessages, nil
}
