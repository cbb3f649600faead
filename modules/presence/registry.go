// Package presence tracks which room and identity each live connection has.
package presence

import (
	"sync"

	domain "github.com/example/roomchat/domain/chat"
)

// Registry maps connection ids to presence entries. A connection belongs to
// at most one room at a time.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.PresenceEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]domain.PresenceEntry)}
}

// Set upserts the entry for connID with defaults applied. The previous entry,
// if any, is returned so the caller can notify the room it left.
func (r *Registry) Set(connID, name, room string) (domain.PresenceEntry, *domain.PresenceEntry) {
	entry := domain.NewPresenceEntry(name, room)

	r.mu.Lock()
	defer r.mu.Unlock()

	var previous *domain.PresenceEntry
	if old, ok := r.entries[connID]; ok {
		previous = &old
	}
	r.entries[connID] = entry
	return entry, previous
}

// Remove deletes and returns the entry for connID. Removing an unknown
// connection is not an error.
func (r *Registry) Remove(connID string) (domain.PresenceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[connID]
	if ok {
		delete(r.entries, connID)
	}
	return entry, ok
}

// Get returns the entry for connID.
func (r *Registry) Get(connID string) (domain.PresenceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[connID]
	return entry, ok
}

// ListByRoom returns a snapshot of the members of room, one per connection.
func (r *Registry) ListByRoom(room string) []domain.UserSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]domain.UserSummary, 0)
	for _, entry := range r.entries {
		if entry.Room == room {
			users = append(users, entry.Summary())
		}
	}
	return users
}

// ConnectionsInRoom returns the ids of the connections currently in room.
func (r *Registry) ConnectionsInRoom(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, entry := range r.entries {
		if entry.Room == room {
			ids = append(ids, id)
		}
	}
	return ids
}

// Rooms returns the number of connections per occupied room.
func (r *Registry) Rooms() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make(map[string]int)
	for _, entry := range r.entries {
		rooms[entry.Room]++
	}
	return rooms
}

// Count returns the number of joined connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
