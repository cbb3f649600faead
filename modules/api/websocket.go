package api

import (
	"context"
	"time"

	"github.com/example/roomchat/modules/session"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const disconnectTimeout = 5 * time.Second

// handleWebSocket bridges a websocket connection to a chat session. The
// session ends when the client sends disconnect, the socket closes, or the
// hub evicts the connection.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()
	client := m.hub.Register(connID, c)
	sess := m.sessions.NewSession(connID)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		// The read context is gone; the disconnect broadcast gets its own.
		dctx, done := context.WithTimeout(context.Background(), disconnectTimeout)
		sess.Handle(dctx, session.Disconnect{})
		done()
		// Waits for the write pump so the conn is idle before fiber releases it.
		m.hub.Unregister(client)
		m.logger.Debug("WebSocket client disconnected", "connID", connID)
	}()

	m.logger.Debug("WebSocket client connected", "connID", connID)

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", "connID", connID, "error", err)
			}
			return
		}

		ev, err := session.Decode(raw)
		if err != nil {
			m.logger.Debug("Dropping undecodable frame", "connID", connID, "error", err)
			continue
		}
		if _, ok := ev.(session.Disconnect); ok {
			return
		}
		sess.Handle(ctx, ev)
	}
}
