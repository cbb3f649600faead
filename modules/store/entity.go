package store

import (
	"encoding/json"
	"fmt"

	domain "github.com/example/roomchat/domain/chat"
)

// messageRow is the persisted form of a message.
type messageRow struct {
	ID        string `gorm:"primarykey;size:36"`
	Room      string `gorm:"index;not null"`
	User      string `gorm:"not null"`
	Avatar    string
	Text      string `gorm:"size:4000;not null"`
	Time      string
	Reactions string `gorm:"not null;default:'{}'"`
}

// TableName returns the table name for the message model.
func (messageRow) TableName() string {
	return "messages"
}

func (r messageRow) toMessage() (domain.Message, error) {
	reactions, err := decodeReactions(r.Reactions)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message %s: %w", r.ID, err)
	}
	return domain.Message{
		ID:        r.ID,
		Room:      r.Room,
		User:      r.User,
		Avatar:    r.Avatar,
		Text:      r.Text,
		Time:      r.Time,
		Reactions: reactions,
	}, nil
}

func decodeReactions(raw string) (domain.Reactions, error) {
	reactions := domain.Reactions{}
	if raw == "" {
		return reactions, nil
	}
	if err := json.Unmarshal([]byte(raw), &reactions); err != nil {
		return nil, fmt.Errorf("decode reactions: %w", err)
	}
	return reactions, nil
}

func encodeReactions(reactions domain.Reactions) (string, error) {
	data, err := json.Marshal(reactions.Clone())
	if err != nil {
		return "", fmt.Errorf("encode reactions: %w", err)
	}
	return string(data), nil
}
