// Package event defines the closed set of domain events flowing through
// the fan-out pipeline. Dispatch is done by explicit type switch, never
// by reflection or type-name strings.
package event

import (
	"time"

	"direct-chat/domain"

	"github.com/google/uuid"
)

type DomainEvent interface {
	Room() domain.RoomKey
}

// MessagePosted is the raw inbound message, before moderation.
type MessagePosted struct {
	ID      uuid.UUID
	RoomKey domain.RoomKey
	Sender  domain.Identity
	Content string
	At      time.Time
}

func (m MessagePosted) Room() domain.RoomKey {
	return m.RoomKey
}

// SanitizedMessage is the broadcastable form of a message: censored,
// language-tagged, and already durably stored. This is the only event
// kind the fan-out delivers to connected sessions.
type SanitizedMessage struct {
	ID            uuid.UUID
	RoomKey       domain.RoomKey
	Sender        domain.Identity
	Content       string
	Lang          string
	CensoredWords []string
	At            time.Time
}

func (m SanitizedMessage) Room() domain.RoomKey {
	return m.RoomKey
}
