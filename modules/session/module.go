package session

import (
	"context"

	"github.com/example/roomchat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module owns the session Handler and publishes chat domain events.
type Module struct {
	handler *Handler
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
)

// NewModule creates a new session module.
func NewModule(store MessageStore, presence Presence, hub Broadcaster, opts Options, logger types.Logger) *Module {
	return &Module{
		handler: NewHandler(store, presence, hub, opts, logger),
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "session"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.handler.SetEventBus(bus)
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessagePostedV1.ToBase(),
		events.ReactionAddedV1.ToBase(),
		events.PresenceChangedV1.ToBase(),
	}
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Session module started",
		"historyLimit", m.handler.opts.HistoryLimit,
		"rateLimit", m.handler.opts.RateLimit,
		"rateBurst", m.handler.opts.RateBurst)
	return nil
}

// Stop stops the module. Connections are closed by the broadcast module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Session module stopped")
	return nil
}

// Handler returns the session handler for the API module.
func (m *Module) Handler() *Handler {
	return m.handler
}
