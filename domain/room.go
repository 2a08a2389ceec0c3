package domain

import (
	"sort"
	"strings"
	"time"

	"direct-chat/errors"
)

// RoomKeySeparator joins the two participant names inside a room key.
// It is rejected inside display names so that a key always splits back
// into exactly two members.
const RoomKeySeparator = "_"

// RoomKey identifies a two-party conversation. It is a pure function of
// the two member names, independent of call order, so both participants
// converge on the same room without any coordination handshake.
type RoomKey string

func (k RoomKey) String() string {
	return string(k)
}

// Members splits the key back into the participant identities.
func (k RoomKey) Members() []Identity {
	parts := strings.Split(string(k), RoomKeySeparator)
	members := make([]Identity, len(parts))
	for i, p := range parts {
		members[i] = Identity(p)
	}
	return members
}

// Contains reports whether the identity is one of the members.
func (k RoomKey) Contains(id Identity) bool {
	for _, m := range k.Members() {
		if m == id {
			return true
		}
	}
	return false
}

// Room is the durable record of a two-party conversation. Created lazily
// on first contact between a pair, never deleted.
type Room struct {
	Key          RoomKey
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// ResolveRoomKey derives the canonical room key for two identities by
// sorting the display names lexicographically and joining them with the
// separator. Commutative and deterministic: ResolveRoomKey(a, b) equals
// ResolveRoomKey(b, a) for all valid inputs.
func ResolveRoomKey(a, b Identity) (RoomKey, error) {
	for _, id := range []Identity{a, b} {
		if id == "" || strings.Contains(string(id), RoomKeySeparator) {
			return "", errors.ErrInvalidIdentity
		}
	}
	names := []string{string(a), string(b)}
	sort.Strings(names)
	return RoomKey(strings.Join(names, RoomKeySeparator)), nil
}
