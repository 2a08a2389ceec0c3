package runtime

import (
	"sync"

	"direct-chat/contract"
	"direct-chat/domain"
)

type memberSet map[string]struct{}

// Registry tracks live connections and room membership. Membership is
// keyed by room, not by any identity pair instance: two sessions that
// independently resolve the same key join the same set even though they
// never reference each other.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.EventSink // session ID -> sink
	roomMembers map[domain.RoomKey]memberSet  // room -> session IDs
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.EventSink),
		roomMembers: make(map[domain.RoomKey]memberSet),
	}
}

// SinksForRoom retrieves a consistent snapshot of the active delivery
// channels for a room: the member set and the session directory are read
// under one lock, so a broadcast never observes a partially-updated set.
// Returns nil if the room doesn't exist or has no members.
func (r *Registry) SinksForRoom(key domain.RoomKey) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[key]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for sessionID := range members {
		if sink, exists := r.sessions[sessionID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a session's delivery channel and assigns it to a
// room. Joining is independent of message history; a session may join
// before any message exists for the room.
func (r *Registry) Subscribe(sessionID string, key domain.RoomKey, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = sink

	if _, ok := r.roomMembers[key]; !ok {
		r.roomMembers[key] = make(memberSet)
	}
	r.roomMembers[key][sessionID] = struct{}{}
}

// Unsubscribe removes a session from the registry and its room. A no-op
// when the session is already gone, so disconnect races are tolerated.
// Empty member sets are removed to avoid leaking room entries over time.
func (r *Registry) Unsubscribe(sessionID string, key domain.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)

	if members, ok := r.roomMembers[key]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.roomMembers, key)
		}
	}
}

// SessionCount reports the number of live sessions, for telemetry.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
