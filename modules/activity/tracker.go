// Package activity keeps per-room counters fed by chat domain events.
package activity

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/example/roomchat/events"
)

// RoomActivity summarizes what happened in a room since process start.
type RoomActivity struct {
	Room         string    `json:"room"`
	Messages     int       `json:"messages"`
	Reactions    int       `json:"reactions"`
	Joins        int       `json:"joins"`
	Departures   int       `json:"departures"`
	Online       int       `json:"online"`
	LastActivity time.Time `json:"last_activity"`
}

// Tracker aggregates activity per room.
type Tracker struct {
	mu    sync.RWMutex
	rooms map[string]*RoomActivity
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{rooms: make(map[string]*RoomActivity)}
}

func (t *Tracker) room(name string) *RoomActivity {
	r, ok := t.rooms[name]
	if !ok {
		r = &RoomActivity{Room: name}
		t.rooms[name] = r
	}
	return r
}

// RecordMessage counts a posted message.
func (t *Tracker) RecordMessage(ev events.MessagePostedEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.room(ev.Room)
	r.Messages++
	r.touch(ev.Timestamp)
}

// RecordReaction counts an added reaction.
func (t *Tracker) RecordReaction(ev events.ReactionAddedEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.room(ev.Room)
	r.Reactions++
	r.touch(ev.Timestamp)
}

// RecordPresence counts a join, leave or disconnect and stores the reported
// online count.
func (t *Tracker) RecordPresence(ev events.PresenceChangedEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.room(ev.Room)
	switch ev.Change {
	case events.PresenceJoined:
		r.Joins++
	case events.PresenceLeft, events.PresenceDisconnected:
		r.Departures++
	}
	r.Online = ev.Online
	r.touch(ev.Timestamp)
}

func (r *RoomActivity) touch(ts time.Time) {
	if ts.After(r.LastActivity) {
		r.LastActivity = ts
	}
}

// Snapshot returns a copy of every room's counters ordered by room name.
func (t *Tracker) Snapshot() []RoomActivity {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]RoomActivity, 0, len(t.rooms))
	for _, r := range t.rooms {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b RoomActivity) int {
		return strings.Compare(a.Room, b.Room)
	})
	return out
}
