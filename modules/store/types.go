package store

import domain "github.com/example/roomchat/domain/chat"

// HistoryRequest asks for the recent messages of a room.
type HistoryRequest struct {
	Room  string `json:"room"`
	Limit int    `json:"limit,omitempty"`
}

// HistoryResponse carries messages oldest first.
type HistoryResponse struct {
	Room     string           `json:"room"`
	Messages []domain.Message `json:"messages"`
}

// GetMessageRequest asks for a single message by id.
type GetMessageRequest struct {
	ID string `json:"id"`
}

// GetMessageResponse reports whether the message exists.
type GetMessageResponse struct {
	Found   bool           `json:"found"`
	Message domain.Message `json:"message"`
}
