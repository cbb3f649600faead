package api

import (
	"time"

	domain "github.com/example/roomchat/domain/chat"
)

// RoomResponse describes a room with live presence and recorded activity.
type RoomResponse struct {
	Name         string     `json:"name"`
	Online       int        `json:"online"`
	Messages     int        `json:"messages"`
	Reactions    int        `json:"reactions"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

// HistoryResponse is the API response for message history.
type HistoryResponse struct {
	Room     string           `json:"room"`
	Messages []domain.Message `json:"messages"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	OK      bool           `json:"ok"`
	Details map[string]any `json:"details,omitempty"`
}
