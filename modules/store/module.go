package store

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/gorm"
)

// Service names registered by the store module. The framework prefixes them
// with "services.store.".
const (
	ServiceHistory    = "history"
	ServiceGetMessage = "get-message"
)

// Module owns the SQLite message log.
type Module struct {
	db     *gorm.DB
	repo   *Repository
	dbPath string
	debug  bool
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a store module for the database at dbPath.
func NewModule(dbPath string, debug bool, logger types.Logger) *Module {
	return &Module{
		dbPath: dbPath,
		debug:  debug,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.dbPath,
		},
	}
}

// RegisterServices registers the read-only request-reply services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceHistory, json.Unmarshal, json.Marshal, m.history,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceHistory, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetMessage, json.Unmarshal, json.Marshal, m.getMessage,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetMessage, err)
	}

	m.logger.Info("Registered services", "services", []string{ServiceHistory, ServiceGetMessage})
	return nil
}

// Start opens the database and runs migrations.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Opening SQLite database", "path", m.dbPath)

	db, err := Open(m.dbPath, m.debug)
	if err != nil {
		return err
	}
	m.db = db
	m.repo = NewRepository(db)

	m.logger.Info("Store module started")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	m.logger.Info("Store module stopped")
	return nil
}

// Append persists a new message. It fails with ErrStore before Start.
func (m *Module) Append(ctx context.Context, room, author, avatar, body string) (domain.Message, error) {
	if m.repo == nil {
		return domain.Message{}, errNotStarted
	}
	return m.repo.Append(ctx, room, author, avatar, body)
}

// RecentHistory returns the newest messages of room, oldest first.
func (m *Module) RecentHistory(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if m.repo == nil {
		return nil, errNotStarted
	}
	return m.repo.RecentHistory(ctx, room, limit)
}

// AddReaction increments a reaction count on a stored message.
func (m *Module) AddReaction(ctx context.Context, messageID, symbol string) (domain.Reactions, error) {
	if m.repo == nil {
		return nil, errNotStarted
	}
	return m.repo.AddReaction(ctx, messageID, symbol)
}

var errNotStarted = fmt.Errorf("%w: store not started", domain.ErrStore)
