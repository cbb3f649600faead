package store

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/go-monolith/mono"
)

// history handles the store.history service request.
func (m *Module) history(ctx context.Context, req HistoryRequest, _ *mono.Msg) (HistoryResponse, error) {
	room := domain.NormalizeRoom(req.Room)
	if req.Limit > domain.DefaultHistoryLimit {
		req.Limit = domain.DefaultHistoryLimit
	}

	messages, err := m.RecentHistory(ctx, room, req.Limit)
	if err != nil {
		m.logger.Error("History query failed", "room", room, "error", err)
		return HistoryResponse{}, fmt.Errorf("failed to load history: %w", err)
	}
	return HistoryResponse{Room: room, Messages: messages}, nil
}

// getMessage handles the store.get-message service request.
func (m *Module) getMessage(ctx context.Context, req GetMessageRequest, _ *mono.Msg) (GetMessageResponse, error) {
	if req.ID == "" {
		return GetMessageResponse{}, fmt.Errorf("id is required")
	}
	if m.repo == nil {
		return GetMessageResponse{}, errNotStarted
	}

	msg, err := m.repo.FindByID(ctx, req.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return GetMessageResponse{Found: false}, nil
	}
	if err != nil {
		return GetMessageResponse{}, err
	}
	return GetMessageResponse{Found: true, Message: msg}, nil
}
