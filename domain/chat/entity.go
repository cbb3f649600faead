package chat

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Defaults applied when a client omits its room or display name.
const (
	DefaultRoom = "general"
	DefaultName = "Anonymous"
)

// MaxMessageLength is the number of characters kept from a message body.
const MaxMessageLength = 1000

// DefaultHistoryLimit is the number of messages replayed on join.
const DefaultHistoryLimit = 100

// TimeLayout is the clock format stamped on every message.
const TimeLayout = "3:04:05 PM"

const avatarBaseURL = "https://api.dicebear.com/7.x/initials/svg?seed="

// Reactions maps a reaction symbol to its strictly positive count.
type Reactions map[string]int

// Clone returns an independent copy; a nil receiver yields an empty mapping.
func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Message is a stored chat message. Only Reactions changes after creation.
type Message struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	User      string    `json:"user"`
	Avatar    string    `json:"avatar"`
	Text      string    `json:"text"`
	Time      string    `json:"time"`
	Reactions Reactions `json:"reactions"`
}

// PresenceEntry records the identity and room of one joined connection.
type PresenceEntry struct {
	Name   string `json:"name"`
	Room   string `json:"room"`
	Avatar string `json:"avatar"`
}

// Summary returns the public view of the entry.
func (p PresenceEntry) Summary() UserSummary {
	return UserSummary{Name: p.Name, Avatar: p.Avatar}
}

// UserSummary is what other room members see of a connection.
type UserSummary struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// NormalizeRoom applies the default room name.
func NormalizeRoom(room string) string {
	if room == "" {
		return DefaultRoom
	}
	return room
}

// NormalizeName applies the default display name.
func NormalizeName(name string) string {
	if name == "" {
		return DefaultName
	}
	return name
}

// AvatarFor derives the avatar reference for a display name.
func AvatarFor(name string) string {
	return avatarBaseURL + url.QueryEscape(name)
}

// NewPresenceEntry builds an entry with defaults applied.
func NewPresenceEntry(name, room string) PresenceEntry {
	name = NormalizeName(name)
	return PresenceEntry{
		Name:   name,
		Room:   NormalizeRoom(room),
		Avatar: AvatarFor(name),
	}
}

// ValidateBody checks a message body and returns it truncated to MaxMessageLength.
func ValidateBody(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		runes := []rune(body)
		body = string(runes[:MaxMessageLength])
	}
	return body, nil
}

// Clock formats t the way message timestamps are displayed.
func Clock(t time.Time) string {
	return t.Format(TimeLayout)
}
