package store

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// HistoryPort is the read side of the store as seen by other modules.
type HistoryPort interface {
	History(ctx context.Context, room string, limit int) ([]domain.Message, error)
	GetMessage(ctx context.Context, id string) (domain.Message, error)
}

// HistoryAdapter implements HistoryPort over the service container.
type HistoryAdapter struct {
	container mono.ServiceContainer
}

// NewHistoryAdapter creates a new HistoryAdapter.
func NewHistoryAdapter(container mono.ServiceContainer) HistoryPort {
	if container == nil {
		panic("store: ServiceContainer is nil")
	}
	return &HistoryAdapter{container: container}
}

// History returns recent messages of a room, oldest first.
func (a *HistoryAdapter) History(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	req := HistoryRequest{Room: room, Limit: limit}
	var resp HistoryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceHistory,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return resp.Messages, nil
}

// GetMessage returns a message or ErrNotFound.
func (a *HistoryAdapter) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	req := GetMessageRequest{ID: id}
	var resp GetMessageResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetMessage,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.Message{}, fmt.Errorf("failed to get message: %w", err)
	}
	if !resp.Found {
		return domain.Message{}, domain.ErrNotFound
	}
	return resp.Message, nil
}
