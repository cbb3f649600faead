package broadcast

import (
	"encoding/json"
	"fmt"

	domain "github.com/example/roomchat/domain/chat"
)

// Outbound event names as seen by clients.
const (
	EventMessage  = "message"
	EventHistory  = "history"
	EventSystem   = "system"
	EventUsers    = "users"
	EventTyping   = "typing"
	EventReaction = "reaction"
)

// Outbound is an event sent to clients. The set of implementations is closed.
type Outbound interface {
	EventName() string
	payload() any
}

// Frame is the wire envelope of every outbound event.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Encode renders ev as a wire frame.
func Encode(ev Outbound) ([]byte, error) {
	data, err := json.Marshal(Frame{Event: ev.EventName(), Data: ev.payload()})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.EventName(), err)
	}
	return data, nil
}

// MessageEvent carries a newly stored message.
type MessageEvent struct {
	Message domain.Message
}

func (MessageEvent) EventName() string { return EventMessage }

func (e MessageEvent) payload() any {
	msg := e.Message
	msg.Reactions = msg.Reactions.Clone()
	return msg
}

// HistoryEvent replaces the client's rendering of a room with its recent messages.
type HistoryEvent struct {
	Room     string
	Messages []domain.Message
}

func (HistoryEvent) EventName() string { return EventHistory }

func (e HistoryEvent) payload() any {
	messages := make([]domain.Message, len(e.Messages))
	for i, m := range e.Messages {
		m.Reactions = m.Reactions.Clone()
		messages[i] = m
	}
	return struct {
		Room     string           `json:"room"`
		Messages []domain.Message `json:"messages"`
	}{Room: e.Room, Messages: messages}
}

// SystemEvent is a human readable notice.
type SystemEvent struct {
	Text string
}

func (SystemEvent) EventName() string { return EventSystem }

func (e SystemEvent) payload() any { return e.Text }

// UsersEvent lists the members of a room.
type UsersEvent struct {
	Users []domain.UserSummary
}

func (UsersEvent) EventName() string { return EventUsers }

func (e UsersEvent) payload() any {
	if e.Users == nil {
		return []domain.UserSummary{}
	}
	return e.Users
}

// TypingEvent reports that a member started or stopped typing.
type TypingEvent struct {
	User   string
	Status bool
}

func (TypingEvent) EventName() string { return EventTyping }

func (e TypingEvent) payload() any {
	return struct {
		User   string `json:"user"`
		Status bool   `json:"status"`
	}{User: e.User, Status: e.Status}
}

// ReactionEvent carries the full reaction mapping of a message after an increment.
type ReactionEvent struct {
	MessageID string
	Reactions domain.Reactions
}

func (ReactionEvent) EventName() string { return EventReaction }

func (e ReactionEvent) payload() any {
	return struct {
		MessageID string           `json:"messageId"`
		Reactions domain.Reactions `json:"reactions"`
	}{MessageID: e.MessageID, Reactions: e.Reactions.Clone()}
}
