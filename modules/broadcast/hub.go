package broadcast

import (
	"sync"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

// DefaultSendBuffer is the per-client queue length used when none is configured.
const DefaultSendBuffer = 256

// Conn is the outbound half of a client connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// RoomDirectory resolves the connections currently in a room.
type RoomDirectory interface {
	ConnectionsInRoom(room string) []string
}

// Client is a registered connection with its own send queue and write pump.
type Client struct {
	ID      string
	conn    Conn
	send    chan []byte
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// Done is closed once the client has been unregistered or evicted.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub fans events out to registered clients. Enqueueing never blocks: a
// client whose queue is full is evicted.
type Hub struct {
	rooms      RoomDirectory
	bufferSize int
	logger     types.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	wg      sync.WaitGroup
}

// NewHub creates a hub resolving room membership through rooms.
func NewHub(rooms RoomDirectory, bufferSize int, logger types.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	return &Hub{
		rooms:      rooms,
		bufferSize: bufferSize,
		logger:     logger,
		clients:    make(map[string]*Client),
	}
}

// Register adds a connection and starts its write pump.
func (h *Hub) Register(connID string, conn Conn) *Client {
	client := &Client{
		ID:   connID,
		conn: conn,
		send: make(chan []byte, h.bufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	h.mu.Lock()
	if old, ok := h.clients[connID]; ok {
		old.close()
	}
	h.clients[connID] = client
	h.mu.Unlock()

	h.wg.Add(1)
	go h.writePump(client)

	h.logger.Debug("Client registered", "connID", connID)
	return client
}

// Unregister removes client, closes its connection and waits for its write
// pump to exit. The connection is not touched once Unregister returns, even
// when the client had already been evicted.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if current, ok := h.clients[client.ID]; ok && current == client {
		delete(h.clients, client.ID)
	}
	h.mu.Unlock()

	client.close()
	<-client.stopped
	h.logger.Debug("Client unregistered", "connID", client.ID)
}

// ToRoom delivers ev to every connection in room.
func (h *Hub) ToRoom(room string, ev Outbound) {
	h.ToRoomExcept(room, "", ev)
}

// ToRoomExcept delivers ev to every connection in room except exceptConnID.
func (h *Hub) ToRoomExcept(room, exceptConnID string, ev Outbound) {
	data, err := Encode(ev)
	if err != nil {
		h.logger.Error("Failed to encode event", "event", ev.EventName(), "error", err)
		return
	}

	ids := h.rooms.ConnectionsInRoom(room)
	targets := make([]*Client, 0, len(ids))
	h.mu.RLock()
	for _, id := range ids {
		if id == exceptConnID {
			continue
		}
		if client, ok := h.clients[id]; ok {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.enqueue(client, data)
	}
}

// ToConnection delivers ev to a single connection.
func (h *Hub) ToConnection(connID string, ev Outbound) {
	data, err := Encode(ev)
	if err != nil {
		h.logger.Error("Failed to encode event", "event", ev.EventName(), "error", err)
		return
	}

	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		h.enqueue(client, data)
	}
}

func (h *Hub) enqueue(client *Client, data []byte) {
	select {
	case <-client.done:
	case client.send <- data:
	default:
		h.logger.Warn("Send queue full, evicting client", "connID", client.ID)
		h.evict(client)
	}
}

func (h *Hub) evict(client *Client) {
	h.mu.Lock()
	if current, ok := h.clients[client.ID]; ok && current == client {
		delete(h.clients, client.ID)
	}
	h.mu.Unlock()
	client.close()
}

func (h *Hub) writePump(client *Client) {
	defer h.wg.Done()
	defer close(client.stopped)
	for {
		select {
		case <-client.done:
			return
		case data := <-client.send:
			// select picks randomly when both are ready
			select {
			case <-client.done:
				return
			default:
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("Write failed, evicting client", "connID", client.ID, "error", err)
				h.evict(client)
				return
			}
		}
	}
}

// CloseAll closes every client and waits for the write pumps to exit.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
	h.wg.Wait()
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
