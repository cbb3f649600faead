package activity

import (
	"context"
	"testing"
	"time"

	"github.com/example/roomchat/events"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

func TestTracker_Counts(t *testing.T) {
	tr := NewTracker()
	now := time.Now()

	tr.RecordPresence(events.PresenceChangedEvent{Room: "general", User: "Alice", Change: events.PresenceJoined, Online: 1, Timestamp: now})
	tr.RecordPresence(events.PresenceChangedEvent{Room: "general", User: "Bob", Change: events.PresenceJoined, Online: 2, Timestamp: now})
	tr.RecordMessage(events.MessagePostedEvent{Room: "general", User: "Alice", Timestamp: now})
	tr.RecordReaction(events.ReactionAddedEvent{Room: "general", Symbol: "👍", Timestamp: now.Add(time.Second)})
	tr.RecordPresence(events.PresenceChangedEvent{Room: "general", User: "Bob", Change: events.PresenceDisconnected, Online: 1, Timestamp: now})
	tr.RecordMessage(events.MessagePostedEvent{Room: "dev", User: "Carol", Timestamp: now})

	snapshot := tr.Snapshot()
	require.Len(t, snapshot, 2)

	assert.Equal(t, "dev", snapshot[0].Room)
	assert.Equal(t, 1, snapshot[0].Messages)

	general := snapshot[1]
	assert.Equal(t, "general", general.Room)
	assert.Equal(t, 1, general.Messages)
	assert.Equal(t, 1, general.Reactions)
	assert.Equal(t, 2, general.Joins)
	assert.Equal(t, 1, general.Departures)
	assert.Equal(t, 1, general.Online)
	assert.True(t, general.LastActivity.Equal(now.Add(time.Second)))
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	tr := NewTracker()
	tr.RecordMessage(events.MessagePostedEvent{Room: "general"})

	snapshot := tr.Snapshot()
	snapshot[0].Messages = 99

	assert.Equal(t, 1, tr.Snapshot()[0].Messages)
}

func TestModule_Handlers(t *testing.T) {
	m := NewModule(&mockLogger{})
	ctx := context.Background()

	require.NoError(t, m.handleMessagePosted(ctx, events.MessagePostedEvent{Room: "general"}, nil))
	require.NoError(t, m.handleReactionAdded(ctx, events.ReactionAddedEvent{Room: "general"}, nil))
	require.NoError(t, m.handlePresenceChanged(ctx, events.PresenceChangedEvent{Room: "general", Change: events.PresenceLeft}, nil))

	snapshot := m.Tracker().Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, 1, snapshot[0].Messages)
	assert.Equal(t, 1, snapshot[0].Reactions)
	assert.Equal(t, 1, snapshot[0].Departures)
	assert.Equal(t, "activity", m.Name())
}
