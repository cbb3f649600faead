package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/events"
	"github.com/example/roomchat/internal/keylock"
	"github.com/example/roomchat/modules/broadcast"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/time/rate"
)

// Notices sent to the originating connection only.
const (
	NoticeSaveMessageFailed  = "Could not save message"
	NoticeSaveReactionFailed = "Could not save reaction"
	NoticeRateLimited        = "Rate limit exceeded, please slow down"
)

// MessageStore is the durable message log used by sessions.
type MessageStore interface {
	Append(ctx context.Context, room, author, avatar, body string) (domain.Message, error)
	RecentHistory(ctx context.Context, room string, limit int) ([]domain.Message, error)
	AddReaction(ctx context.Context, messageID, symbol string) (domain.Reactions, error)
}

// Presence is the registry of joined connections.
type Presence interface {
	Set(connID, name, room string) (domain.PresenceEntry, *domain.PresenceEntry)
	Remove(connID string) (domain.PresenceEntry, bool)
	Get(connID string) (domain.PresenceEntry, bool)
	ListByRoom(room string) []domain.UserSummary
}

// Broadcaster delivers outbound events to connections.
type Broadcaster interface {
	ToRoom(room string, ev broadcast.Outbound)
	ToRoomExcept(room, exceptConnID string, ev broadcast.Outbound)
	ToConnection(connID string, ev broadcast.Outbound)
}

// Options tunes a Handler.
type Options struct {
	HistoryLimit int
	RateLimit    float64
	RateBurst    int
}

// Handler coordinates sessions against the store, the presence registry and
// the broadcaster. Store-write-then-broadcast steps are serialized per room.
type Handler struct {
	store    MessageStore
	presence Presence
	hub      Broadcaster
	rooms    *keylock.Locker
	opts     Options
	logger   types.Logger

	busMu sync.RWMutex
	bus   mono.EventBus
}

// NewHandler creates a Handler.
func NewHandler(store MessageStore, presence Presence, hub Broadcaster, opts Options, logger types.Logger) *Handler {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = domain.DefaultHistoryLimit
	}
	return &Handler{
		store:    store,
		presence: presence,
		hub:      hub,
		rooms:    keylock.New(),
		opts:     opts,
		logger:   logger,
	}
}

// SetEventBus enables publishing of domain events after each transition.
func (h *Handler) SetEventBus(bus mono.EventBus) {
	h.busMu.Lock()
	defer h.busMu.Unlock()
	h.bus = bus
}

func (h *Handler) eventBus() mono.EventBus {
	h.busMu.RLock()
	defer h.busMu.RUnlock()
	return h.bus
}

// State is the lifecycle state of a session.
type State int

const (
	StateDisconnected State = iota
	StateUnjoined
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Session is the state machine of one connection. Events of one session are
// handled one at a time.
type Session struct {
	id      string
	h       *Handler
	limiter *rate.Limiter
	// typing indicators have their own budget so keystrokes never starve messages
	typingLimiter *rate.Limiter
	logger        types.Logger

	mu    sync.Mutex
	state State
	room  string
}

// NewSession starts an unjoined session for connID.
func (h *Handler) NewSession(connID string) *Session {
	limit := rate.Inf
	if h.opts.RateLimit > 0 {
		limit = rate.Limit(h.opts.RateLimit)
	}
	burst := h.opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Session{
		id:      connID,
		h:       h,
		limiter:       rate.NewLimiter(limit, burst),
		typingLimiter: rate.NewLimiter(limit, burst),
		logger:        h.logger.With("connID", connID),
		state:         StateUnjoined,
	}
}

// ID returns the connection id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state and, when joined, the room.
func (s *Session) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.room
}

// Handle applies one inbound event. Errors are never returned: invalid or
// out-of-state events are dropped and store failures are reported to the
// originating connection.
func (s *Session) Handle(ctx context.Context, ev Inbound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return
	}

	var err error
	switch ev := ev.(type) {
	case Join:
		err = s.join(ctx, ev.Room, ev.Name)
	case SendMessage:
		err = s.sendMessage(ctx, ev.Text)
	case Typing:
		err = s.typing(ctx, ev.IsTyping)
	case React:
		err = s.react(ctx, ev.MessageID, ev.Symbol)
	case SwitchRoom:
		err = s.switchRoom(ctx, ev.Room)
	case Disconnect:
		err = s.disconnect(ctx)
	default:
		err = fmt.Errorf("%w: unsupported event %T", domain.ErrValidation, ev)
	}

	if err != nil {
		s.logger.Warn("Event handling failed", "event", fmt.Sprintf("%T", ev), "error", err)
	}
}

// withRoom runs fn while holding the room's sequencing lock.
func (s *Session) withRoom(ctx context.Context, room string, fn func()) error {
	unlock, err := s.h.rooms.Lock(ctx, room)
	if err != nil {
		return fmt.Errorf("lock room %s: %w", room, err)
	}
	defer unlock()
	fn()
	return nil
}

func (s *Session) current() (domain.PresenceEntry, bool) {
	if s.state != StateJoined {
		return domain.PresenceEntry{}, false
	}
	return s.h.presence.Get(s.id)
}

func (s *Session) join(ctx context.Context, room, name string) error {
	entry, prev := s.h.presence.Set(s.id, name, room)
	s.state, s.room = StateJoined, entry.Room

	if prev != nil && prev.Room != entry.Room {
		if err := s.announceDeparture(ctx, *prev); err != nil {
			return err
		}
	}

	err := s.withRoom(ctx, entry.Room, func() {
		s.sendHistory(ctx, entry.Room)
		s.h.hub.ToRoom(entry.Room, broadcast.SystemEvent{Text: fmt.Sprintf("%s joined #%s", entry.Name, entry.Room)})
		s.h.hub.ToRoom(entry.Room, broadcast.UsersEvent{Users: s.h.presence.ListByRoom(entry.Room)})
	})
	if err != nil {
		return err
	}

	s.logger.Info("User joined room", "user", entry.Name, "room", entry.Room)
	s.publishPresence(entry.Room, entry.Name, events.PresenceJoined)
	return nil
}

func (s *Session) switchRoom(ctx context.Context, room string) error {
	name := domain.DefaultName
	if existing, ok := s.current(); ok {
		name = existing.Name
	}

	entry, prev := s.h.presence.Set(s.id, name, room)
	s.state, s.room = StateJoined, entry.Room

	if prev != nil && prev.Room != entry.Room {
		if err := s.announceDeparture(ctx, *prev); err != nil {
			return err
		}
	}

	err := s.withRoom(ctx, entry.Room, func() {
		s.sendHistory(ctx, entry.Room)
		s.h.hub.ToConnection(s.id, broadcast.SystemEvent{Text: fmt.Sprintf("You joined #%s", entry.Room)})
		s.h.hub.ToRoom(entry.Room, broadcast.UsersEvent{Users: s.h.presence.ListByRoom(entry.Room)})
	})
	if err != nil {
		return err
	}

	s.logger.Info("User switched room", "user", entry.Name, "room", entry.Room)
	s.publishPresence(entry.Room, entry.Name, events.PresenceJoined)
	return nil
}

func (s *Session) announceDeparture(ctx context.Context, prev domain.PresenceEntry) error {
	err := s.withRoom(ctx, prev.Room, func() {
		s.h.hub.ToRoom(prev.Room, broadcast.SystemEvent{Text: fmt.Sprintf("%s left #%s", prev.Name, prev.Room)})
		s.h.hub.ToRoom(prev.Room, broadcast.UsersEvent{Users: s.h.presence.ListByRoom(prev.Room)})
	})
	if err != nil {
		return err
	}
	s.publishPresence(prev.Room, prev.Name, events.PresenceLeft)
	return nil
}

// sendHistory replays the room's recent messages to this connection. A read
// failure degrades to an empty history.
func (s *Session) sendHistory(ctx context.Context, room string) {
	history, err := s.h.store.RecentHistory(ctx, room, s.h.opts.HistoryLimit)
	if err != nil {
		s.logger.Error("Failed to load history", "room", room, "error", err)
		history = nil
	}
	s.h.hub.ToConnection(s.id, broadcast.HistoryEvent{Room: room, Messages: history})
}

func (s *Session) sendMessage(ctx context.Context, text string) error {
	entry, ok := s.current()
	if !ok || strings.TrimSpace(text) == "" {
		return nil
	}
	if !s.limiter.Allow() {
		s.h.hub.ToConnection(s.id, broadcast.SystemEvent{Text: NoticeRateLimited})
		return nil
	}

	var (
		msg      domain.Message
		storeErr error
	)
	err := s.withRoom(ctx, entry.Room, func() {
		msg, storeErr = s.h.store.Append(ctx, entry.Room, entry.Name, entry.Avatar, text)
		if storeErr == nil {
			s.h.hub.ToRoom(entry.Room, broadcast.MessageEvent{Message: msg})
		}
	})
	if err != nil {
		return err
	}

	switch {
	case storeErr == nil:
	case errors.Is(storeErr, domain.ErrValidation):
		return nil
	default:
		s.h.hub.ToConnection(s.id, broadcast.SystemEvent{Text: NoticeSaveMessageFailed})
		return fmt.Errorf("append message: %w", storeErr)
	}

	s.publish(func(bus mono.EventBus) error {
		return events.MessagePostedV1.Publish(bus, events.MessagePostedEvent{
			MessageID: msg.ID,
			Room:      msg.Room,
			User:      msg.User,
			Length:    len([]rune(msg.Text)),
			Timestamp: time.Now(),
		}, nil)
	})
	return nil
}

func (s *Session) typing(ctx context.Context, isTyping bool) error {
	entry, ok := s.current()
	if !ok {
		return nil
	}
	// Stopping is never throttled, or the indicator would stick.
	if isTyping && !s.typingLimiter.Allow() {
		return nil
	}
	return s.withRoom(ctx, entry.Room, func() {
		s.h.hub.ToRoomExcept(entry.Room, s.id, broadcast.TypingEvent{User: entry.Name, Status: isTyping})
	})
}

func (s *Session) react(ctx context.Context, messageID, symbol string) error {
	entry, ok := s.current()
	if !ok || messageID == "" || symbol == "" {
		return nil
	}
	if !s.limiter.Allow() {
		s.h.hub.ToConnection(s.id, broadcast.SystemEvent{Text: NoticeRateLimited})
		return nil
	}

	var (
		reactions domain.Reactions
		storeErr  error
	)
	err := s.withRoom(ctx, entry.Room, func() {
		reactions, storeErr = s.h.store.AddReaction(ctx, messageID, symbol)
		if storeErr == nil {
			s.h.hub.ToRoom(entry.Room, broadcast.ReactionEvent{MessageID: messageID, Reactions: reactions})
		}
	})
	if err != nil {
		return err
	}

	switch {
	case storeErr == nil:
	case errors.Is(storeErr, domain.ErrNotFound), errors.Is(storeErr, domain.ErrValidation):
		return nil
	default:
		s.h.hub.ToConnection(s.id, broadcast.SystemEvent{Text: NoticeSaveReactionFailed})
		return fmt.Errorf("add reaction: %w", storeErr)
	}

	s.publish(func(bus mono.EventBus) error {
		return events.ReactionAddedV1.Publish(bus, events.ReactionAddedEvent{
			MessageID: messageID,
			Room:      entry.Room,
			Symbol:    symbol,
			Reactions: reactions,
			Timestamp: time.Now(),
		}, nil)
	})
	return nil
}

func (s *Session) disconnect(ctx context.Context) error {
	s.state, s.room = StateDisconnected, ""

	entry, ok := s.h.presence.Remove(s.id)
	if !ok {
		return nil
	}

	err := s.withRoom(ctx, entry.Room, func() {
		s.h.hub.ToRoom(entry.Room, broadcast.SystemEvent{Text: fmt.Sprintf("%s disconnected", entry.Name)})
		s.h.hub.ToRoom(entry.Room, broadcast.UsersEvent{Users: s.h.presence.ListByRoom(entry.Room)})
	})
	if err != nil {
		return err
	}

	s.logger.Info("User disconnected", "user", entry.Name, "room", entry.Room)
	s.publishPresence(entry.Room, entry.Name, events.PresenceDisconnected)
	return nil
}

func (s *Session) publishPresence(room, user, change string) {
	s.publish(func(bus mono.EventBus) error {
		return events.PresenceChangedV1.Publish(bus, events.PresenceChangedEvent{
			Room:      room,
			User:      user,
			Change:    change,
			Online:    len(s.h.presence.ListByRoom(room)),
			Timestamp: time.Now(),
		}, nil)
	})
}

// publish emits a domain event when an event bus is attached. Failures are
// logged only.
func (s *Session) publish(fn func(bus mono.EventBus) error) {
	bus := s.h.eventBus()
	if bus == nil {
		return
	}
	if err := fn(bus); err != nil {
		s.logger.Warn("Failed to publish event", "error", err)
	}
}
