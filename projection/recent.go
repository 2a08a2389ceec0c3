// Package projection builds read models from observed events.
// It handles ordering and aggregation; it never emits events.
package projection

import (
	"context"
	"sort"
	"sync"

	"direct-chat/domain"
	"direct-chat/domain/event"
	"direct-chat/repositories"
)

// Entry is the latest exchanged message with one peer.
type Entry struct {
	Peer    domain.Identity
	RoomKey domain.RoomKey
	Sender  domain.Identity
	Content string
	At      string
}

// RecentChats keeps, per user, the latest message exchanged with each
// peer. It is rebuilt from the live event stream: a fan-out sink, so it
// observes exactly the broadcast traffic.
type RecentChats struct {
	mu     sync.RWMutex
	latest map[domain.Identity]map[domain.Identity]event.SanitizedMessage
}

func NewRecentChats() *RecentChats {
	return &RecentChats{
		latest: make(map[domain.Identity]map[domain.Identity]event.SanitizedMessage),
	}
}

// Consume implements the EventSink interface. Each sanitized message
// updates the latest-entry of both room members.
func (r *RecentChats) Consume(_ context.Context, e event.DomainEvent) error {
	if evt, ok := e.(event.SanitizedMessage); ok {
		r.observe(evt)
	}
	return nil
}

// Seed replays persisted messages into the read model, so recent
// conversations survive a process restart. Later entries supersede
// earlier ones exactly like live events; the store's prefix scan
// already yields ascending creation order per room.
func (r *RecentChats) Seed(messages []repositories.DiskMessage) {
	for _, m := range messages {
		r.observe(event.SanitizedMessage{
			ID:      m.ID,
			RoomKey: m.Room,
			Sender:  domain.Identity(m.Sender),
			Content: m.Content,
			At:      m.At,
		})
	}
}

func (r *RecentChats) observe(evt event.SanitizedMessage) {
	members := evt.RoomKey.Members()
	if len(members) != 2 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, member := range members {
		peer := members[1-i]
		if r.latest[member] == nil {
			r.latest[member] = make(map[domain.Identity]event.SanitizedMessage)
		}
		r.latest[member][peer] = evt
	}
}

// RecentFor lists the user's conversations, most recent first.
func (r *RecentChats) RecentFor(user domain.Identity) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perPeer, ok := r.latest[user]
	if !ok {
		return nil
	}

	entries := make([]Entry, 0, len(perPeer))
	for peer, evt := range perPeer {
		entries = append(entries, Entry{
			Peer:    peer,
			RoomKey: evt.RoomKey,
			Sender:  evt.Sender,
			Content: evt.Content,
			At:      evt.At.Format("2006-01-02 15:04:05"),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].At > entries[j].At
	})
	return entries
}
