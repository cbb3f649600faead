package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/modules/presence"
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

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// fakeConn records written frames. When block is set, writes wait until it is closed.
type fakeConn struct {
	mu     sync.Mutex
	frames []wireFrame
	closed bool
	block  chan struct{}
	fail   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Frames() []wireFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wireFrame(nil), c.frames...)
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func setupHub(t *testing.T, buffer int) (*Hub, *presence.Registry) {
	t.Helper()
	registry := presence.NewRegistry()
	hub := NewHub(registry, buffer, &mockLogger{})
	t.Cleanup(hub.CloseAll)
	return hub, registry
}

func TestHub_ToRoom(t *testing.T) {
	hub, registry := setupHub(t, 16)

	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register("a", a)
	hub.Register("b", b)
	hub.Register("c", c)
	registry.Set("a", "Alice", "general")
	registry.Set("b", "Bob", "general")
	registry.Set("c", "Carol", "random")

	hub.ToRoom("general", SystemEvent{Text: "hello general"})

	for _, conn := range []*fakeConn{a, b} {
		require.Eventually(t, func() bool { return len(conn.Frames()) == 1 }, time.Second, 5*time.Millisecond)
		f := conn.Frames()[0]
		assert.Equal(t, EventSystem, f.Event)
		assert.JSONEq(t, `"hello general"`, string(f.Data))
	}
	assert.Never(t, func() bool { return len(c.Frames()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestHub_ToRoomExcept(t *testing.T) {
	hub, registry := setupHub(t, 16)

	a, b := &fakeConn{}, &fakeConn{}
	hub.Register("a", a)
	hub.Register("b", b)
	registry.Set("a", "Alice", "general")
	registry.Set("b", "Bob", "general")

	hub.ToRoomExcept("general", "a", TypingEvent{User: "Alice", Status: true})

	require.Eventually(t, func() bool { return len(b.Frames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"user":"Alice","status":true}`, string(b.Frames()[0].Data))
	assert.Never(t, func() bool { return len(a.Frames()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestHub_ToConnection(t *testing.T) {
	hub, registry := setupHub(t, 16)

	a, b := &fakeConn{}, &fakeConn{}
	hub.Register("a", a)
	hub.Register("b", b)
	registry.Set("a", "Alice", "general")
	registry.Set("b", "Bob", "general")

	hub.ToConnection("a", SystemEvent{Text: "You joined #general"})
	hub.ToConnection("nobody", SystemEvent{Text: "dropped"})

	require.Eventually(t, func() bool { return len(a.Frames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(b.Frames()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestHub_PreservesOrderPerClient(t *testing.T) {
	hub, registry := setupHub(t, 256)

	a := &fakeConn{}
	hub.Register("a", a)
	registry.Set("a", "Alice", "general")

	const n = 100
	for i := 0; i < n; i++ {
		hub.ToRoom("general", MessageEvent{Message: domain.Message{ID: fmt.Sprint(i), Text: fmt.Sprint(i)}})
	}

	require.Eventually(t, func() bool { return len(a.Frames()) == n }, time.Second, 5*time.Millisecond)
	for i, f := range a.Frames() {
		var msg domain.Message
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		assert.Equal(t, fmt.Sprint(i), msg.Text)
	}
}

func TestHub_EvictsSlowClient(t *testing.T) {
	hub, registry := setupHub(t, 2)

	slow := &fakeConn{block: make(chan struct{})}
	fast := &fakeConn{}
	hub.Register("slow", slow)
	hub.Register("fast", fast)
	registry.Set("slow", "Slow", "general")
	registry.Set("fast", "Fast", "random")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.ToConnection("slow", SystemEvent{Text: "tick"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a slow client")
	}

	require.Eventually(t, slow.IsClosed, time.Second, 5*time.Millisecond)
	close(slow.block)

	hub.ToRoom("random", SystemEvent{Text: "still here"})
	require.Eventually(t, func() bool { return len(fast.Frames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_WriteFailureEvicts(t *testing.T) {
	hub, registry := setupHub(t, 4)

	broken := &fakeConn{fail: true}
	client := hub.Register("x", broken)
	registry.Set("x", "X", "general")

	hub.ToRoom("general", SystemEvent{Text: "boom"})

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Fatal("client was not evicted after a failed write")
	}
	assert.True(t, broken.IsClosed())
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_UnregisterAndCloseAll(t *testing.T) {
	hub, _ := setupHub(t, 4)

	a, b := &fakeConn{}, &fakeConn{}
	clientA := hub.Register("a", a)
	hub.Register("b", b)

	hub.Unregister(clientA)
	hub.Unregister(clientA)
	assert.True(t, a.IsClosed())
	assert.Equal(t, 1, hub.ClientCount())

	hub.CloseAll()
	assert.True(t, b.IsClosed())
	assert.Equal(t, 0, hub.ClientCount())
}

// closingConn holds each write until Close is called, then lets it complete.
type closingConn struct {
	mu      sync.Mutex
	writes  int
	started chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func newClosingConn() *closingConn {
	return &closingConn{started: make(chan struct{}, 1), closed: make(chan struct{})}
}

func (c *closingConn) WriteMessage(_ int, _ []byte) error {
	select {
	case c.started <- struct{}{}:
	default:
	}
	<-c.closed
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	return nil
}

func (c *closingConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *closingConn) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func TestHub_UnregisterWaitsForWritePump(t *testing.T) {
	hub, registry := setupHub(t, 8)

	conn := newClosingConn()
	client := hub.Register("a", conn)
	registry.Set("a", "A", "general")

	for i := 0; i < 5; i++ {
		hub.ToRoom("general", SystemEvent{Text: fmt.Sprint(i)})
	}
	select {
	case <-conn.started:
	case <-time.After(time.Second):
		t.Fatal("write pump never started writing")
	}

	hub.Unregister(client)

	written := conn.Writes()
	assert.Equal(t, 1, written)
	assert.Never(t, func() bool { return conn.Writes() != written }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_UnregisterAfterEviction(t *testing.T) {
	hub, registry := setupHub(t, 1)

	conn := newClosingConn()
	client := hub.Register("a", conn)
	registry.Set("a", "A", "general")

	hub.ToRoom("general", SystemEvent{Text: "first"})
	<-conn.started
	hub.ToRoom("general", SystemEvent{Text: "queued"})
	hub.ToRoom("general", SystemEvent{Text: "overflow"})

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	written := conn.Writes()
	assert.LessOrEqual(t, written, 1)
	assert.Never(t, func() bool { return conn.Writes() != written }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		ev    Outbound
		event string
		data  string
	}{
		{"system", SystemEvent{Text: "Alice joined #general"}, EventSystem, `"Alice joined #general"`},
		{"empty users", UsersEvent{}, EventUsers, `[]`},
		{"users", UsersEvent{Users: []domain.UserSummary{{Name: "Alice", Avatar: "a"}}}, EventUsers, `[{"name":"Alice","avatar":"a"}]`},
		{"typing", TypingEvent{User: "Bob", Status: false}, EventTyping, `{"user":"Bob","status":false}`},
		{"reaction", ReactionEvent{MessageID: "m1", Reactions: domain.Reactions{"👍": 1}}, EventReaction, `{"messageId":"m1","reactions":{"👍":1}}`},
		{"reaction without counts", ReactionEvent{MessageID: "m1"}, EventReaction, `{"messageId":"m1","reactions":{}}`},
		{"empty history", HistoryEvent{Room: "dev"}, EventHistory, `{"room":"dev","messages":[]}`},
		{
			"message",
			MessageEvent{Message: domain.Message{ID: "m1", Room: "general", User: "Alice", Avatar: "a", Text: "hi", Time: "1:02:03 PM"}},
			EventMessage,
			`{"id":"m1","room":"general","user":"Alice","avatar":"a","text":"hi","time":"1:02:03 PM","reactions":{}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.ev)
			require.NoError(t, err)

			var f wireFrame
			require.NoError(t, json.Unmarshal(data, &f))
			assert.Equal(t, tt.event, f.Event)
			assert.JSONEq(t, tt.data, string(f.Data))
		})
	}
}
