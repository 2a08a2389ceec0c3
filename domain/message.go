// This file defines Message records and related rules.
// Messages are immutable and append-only once persisted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat record. The creation timestamp is
// assigned at persistence time; after that the record is exclusively
// owned by the message store.
type Message struct {
	ID        uuid.UUID
	Sender    Identity
	Recipient Identity // kept for the persisted layout, unused by core routing
	Room      RoomKey
	Content   string
	CreatedAt time.Time
	IsRead    bool
}
