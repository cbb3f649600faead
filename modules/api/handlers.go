package api

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	// Health check
	app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))

	// REST API v1
	api := app.Group("/api/v1")
	api.Get("/rooms", m.listRooms)
	api.Get("/rooms/:room/history", m.getHistory)
	api.Get("/messages/:id", m.getMessage)

	if m.opts.PublicDir != "" {
		app.Static("/", m.opts.PublicDir)
	}
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		OK: true,
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
			"joined_clients":    m.presence.Count(),
		},
	})
}

// listRooms handles GET /api/v1/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	rooms := make(map[string]*RoomResponse)
	get := func(name string) *RoomResponse {
		r, ok := rooms[name]
		if !ok {
			r = &RoomResponse{Name: name}
			rooms[name] = r
		}
		return r
	}

	for _, a := range m.activity.Snapshot() {
		r := get(a.Room)
		r.Messages = a.Messages
		r.Reactions = a.Reactions
		if !a.LastActivity.IsZero() {
			last := a.LastActivity
			r.LastActivity = &last
		}
	}
	for name, online := range m.presence.Rooms() {
		get(name).Online = online
	}

	response := RoomListResponse{Rooms: make([]RoomResponse, 0, len(rooms))}
	for _, r := range rooms {
		response.Rooms = append(response.Rooms, *r)
	}
	slices.SortFunc(response.Rooms, func(a, b RoomResponse) int {
		return strings.Compare(a.Name, b.Name)
	})
	return c.JSON(response)
}

// getHistory handles GET /api/v1/rooms/:room/history.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	room := domain.NormalizeRoom(c.Params("room"))

	limit := domain.DefaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > domain.DefaultHistoryLimit {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "validation_error",
				Message: "limit must be between 1 and 100",
			})
		}
		limit = parsed
	}

	messages, err := m.history.History(c.UserContext(), room, limit)
	if err != nil {
		m.logger.Error("History request failed", "room", room, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to load history",
		})
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return c.JSON(HistoryResponse{Room: room, Messages: messages})
}

// getMessage handles GET /api/v1/messages/:id.
func (m *APIModule) getMessage(c *fiber.Ctx) error {
	msg, err := m.history.GetMessage(c.UserContext(), c.Params("id"))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Message not found",
		})
	}
	if err != nil {
		m.logger.Error("Message request failed", "id", c.Params("id"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "lookup_failed",
			Message: "Failed to load message",
		})
	}
	return c.JSON(msg)
}
