package events

import (
	"time"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/go-monolith/mono/pkg/helper"
)

// Presence change kinds.
const (
	PresenceJoined       = "joined"
	PresenceLeft         = "left"
	PresenceDisconnected = "disconnected"
)

// MessagePostedEvent is emitted after a message has been stored and broadcast.
type MessagePostedEvent struct {
	MessageID string    `json:"message_id"`
	Room      string    `json:"room"`
	User      string    `json:"user"`
	Length    int       `json:"length"`
	Timestamp time.Time `json:"timestamp"`
}

// ReactionAddedEvent is emitted after a reaction counter was incremented.
type ReactionAddedEvent struct {
	MessageID string           `json:"message_id"`
	Room      string           `json:"room"`
	Symbol    string           `json:"symbol"`
	Reactions domain.Reactions `json:"reactions"`
	Timestamp time.Time        `json:"timestamp"`
}

// PresenceChangedEvent is emitted when a connection joins, leaves or
// disconnects from a room.
type PresenceChangedEvent struct {
	Room      string    `json:"room"`
	User      string    `json:"user"`
	Change    string    `json:"change"`
	Online    int       `json:"online"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	MessagePostedV1 = helper.EventDefinition[MessagePostedEvent](
		"chat",
		"MessagePosted",
		"v1",
	)

	ReactionAddedV1 = helper.EventDefinition[ReactionAddedEvent](
		"chat",
		"ReactionAdded",
		"v1",
	)

	PresenceChangedV1 = helper.EventDefinition[PresenceChangedEvent](
		"chat",
		"PresenceChanged",
		"v1",
	)
)
