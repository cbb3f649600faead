package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	domain "github.com/example/roomchat/domain/chat"
)

// Inbound event names sent by clients.
const (
	EventJoin       = "join"
	EventMessage    = "message"
	EventTyping     = "typing"
	EventReact      = "react"
	EventSwitchRoom = "switchRoom"
	EventDisconnect = "disconnect"
)

// Inbound is a decoded client event. The set of implementations is closed.
type Inbound interface {
	inbound()
}

// Join attaches the connection to a room under a display name.
type Join struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

// SendMessage posts text to the current room.
type SendMessage struct {
	Text string `json:"text"`
}

// Typing reports the sender's typing state to the rest of the room.
type Typing struct {
	IsTyping bool `json:"isTyping"`
}

// React increments a reaction counter on a message.
type React struct {
	MessageID string `json:"messageId"`
	Symbol    string `json:"symbol"`
}

// SwitchRoom moves the connection to another room keeping its identity.
type SwitchRoom struct {
	Room string `json:"room"`
}

// Disconnect ends the session.
type Disconnect struct{}

func (Join) inbound()        {}
func (SendMessage) inbound() {}
func (Typing) inbound()      {}
func (React) inbound()       {}
func (SwitchRoom) inbound()  {}
func (Disconnect) inbound()  {}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode parses a client frame of the form {"event": name, "data": payload}.
// Scalar payloads are accepted for message (text), typing and switchRoom
// (room name). The typing flag is any JSON value, read by its truthiness.
func Decode(raw []byte) (Inbound, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %w", domain.ErrValidation, err)
	}
	data := bytes.TrimSpace(frame.Data)

	switch frame.Event {
	case EventJoin:
		var ev Join
		if err := decodeObject(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case EventMessage:
		var ev SendMessage
		if isJSONString(data) {
			if err := json.Unmarshal(data, &ev.Text); err != nil {
				return nil, invalidPayload(frame.Event, err)
			}
			return ev, nil
		}
		if err := decodeObject(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case EventTyping:
		var value any
		if len(data) > 0 && data[0] == '{' {
			var payload struct {
				IsTyping any `json:"isTyping"`
			}
			if err := decodeObject(data, &payload); err != nil {
				return nil, err
			}
			value = payload.IsTyping
		} else if err := decodeObject(data, &value); err != nil {
			return nil, err
		}
		return Typing{IsTyping: truthy(value)}, nil

	case EventReact:
		var payload struct {
			MessageID string `json:"messageId"`
			Symbol    string `json:"symbol"`
			Reaction  string `json:"reaction"`
		}
		if err := decodeObject(data, &payload); err != nil {
			return nil, err
		}
		symbol := payload.Symbol
		if symbol == "" {
			symbol = payload.Reaction
		}
		return React{MessageID: payload.MessageID, Symbol: symbol}, nil

	case EventSwitchRoom:
		var ev SwitchRoom
		if isJSONString(data) {
			if err := json.Unmarshal(data, &ev.Room); err != nil {
				return nil, invalidPayload(frame.Event, err)
			}
			return ev, nil
		}
		if err := decodeObject(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case EventDisconnect:
		return Disconnect{}, nil

	default:
		return nil, fmt.Errorf("%w: unknown event %q", domain.ErrValidation, frame.Event)
	}
}

func decodeObject(data []byte, v any) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: invalid payload: %w", domain.ErrValidation, err)
	}
	return nil
}

func isJSONString(data []byte) bool {
	return len(data) > 0 && data[0] == '"'
}

func invalidPayload(event string, err error) error {
	return fmt.Errorf("%w: invalid %s payload: %w", domain.ErrValidation, event, err)
}

// truthy follows the usual dynamic-language rules: false, 0, "" and null are
// false, everything else is true.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}
