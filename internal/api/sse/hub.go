package sse

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/cardroom/internal/model"
)

// Hub fans events out to the watchers of a single room
type Hub struct {
	code    model.RoomCode
	clients map[*Client]struct{}
	closed  bool
	mu      sync.RWMutex
	logger  *slog.Logger

	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a new Hub for a room. Call Run to start delivering.
func NewHub(code model.RoomCode, logger *slog.Logger) *Hub {
	return &Hub{
		code:      code,
		clients:   make(map[*Client]struct{}),
		logger:    logger.With(slog.String("room", string(code))),
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
	}
}

// Run delivers broadcasts until Close is called
func (h *Hub) Run() {
	h.logger.Debug("sse hub started")
	for {
		select {
		case message := <-h.broadcast:
			h.mu.RLock()
			sent, dropped := 0, 0
			for client := range h.clients {
				select {
				case client.send <- message:
					sent++
				default:
					dropped++
					h.logger.Warn("sse message dropped, client buffer full",
						slog.String("identity", string(client.identityID)))
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("sse broadcast partial failure",
					slog.Int("sent", sent),
					slog.Int("dropped", dropped))
			}

		case <-h.done:
			h.logger.Debug("sse hub stopped")
			return
		}
	}
}

// Register adds a client. It reports false once the hub is closed.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[client] = struct{}{}
	h.logger.Info("sse client registered",
		slog.String("identity", string(client.identityID)),
		slog.Int("total_clients", len(h.clients)))
	return true
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Info("sse client unregistered",
		slog.String("identity", string(client.identityID)),
		slog.Duration("connection_duration", time.Since(client.connectedAt)),
		slog.Int("total_clients", len(h.clients)))
}

// Broadcast queues a preformatted message for every client
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("sse broadcast dropped, hub buffer full")
	}
}

// BroadcastEvent queues a named event
func (h *Hub) BroadcastEvent(eventName, data string) {
	h.Broadcast(formatSSEMessage(eventName, data))
}

// Close disconnects every client and stops Run
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
		close(h.done)
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatSSEMessage prefixes every line of data with "data: "
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteByte('\n')
	data = strings.ReplaceAll(data, "\r\n", "\n")
	for _, line := range strings.Split(strings.TrimSuffix(data, "\n"), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// eventPayload is the JSON body of a room event
type eventPayload struct {
	Room           string    `json:"room"`
	IdentityID     string    `json:"identity_id,omitempty"`
	Role           string    `json:"role,omitempty"`
	PlayerCount    int       `json:"player_count"`
	SpectatorCount int       `json:"spectator_count"`
	Status         string    `json:"status"`
	At             time.Time `json:"at"`
}

// HubManager owns one hub per watched room. Hubs exist only while a room
// has watchers.
type HubManager struct {
	hubs   map[model.RoomCode]*Hub
	mu     sync.Mutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.RoomCode]*Hub),
		logger: logger.With(slog.String("component", "sse")),
	}
}

// Subscribe registers a watcher for the room, starting its hub if needed
func (m *HubManager) Subscribe(code model.RoomCode, identityID model.IdentityID) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub, ok := m.hubs[code]
	if !ok {
		hub = NewHub(code, m.logger)
		m.hubs[code] = hub
		go hub.Run()
	}
	client := newClient(hub, identityID)
	hub.Register(client)
	return client
}

// Unsubscribe removes a watcher and stops the hub once it is empty
func (m *HubManager) Unsubscribe(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub := client.hub
	hub.Unregister(client)
	if hub.ClientCount() == 0 && m.hubs[hub.code] == hub {
		hub.Close()
		delete(m.hubs, hub.code)
	}
}

// Publish sends a room event to the room's watchers, if any
func (m *HubManager) Publish(event model.RoomEvent) {
	m.mu.Lock()
	hub := m.hubs[event.RoomCode]
	m.mu.Unlock()
	if hub == nil {
		return
	}

	data, err := json.Marshal(eventPayload{
		Room:           string(event.RoomCode),
		IdentityID:     string(event.IdentityID),
		Role:           string(event.Role),
		PlayerCount:    event.PlayerCount,
		SpectatorCount: event.SpectatorCount,
		Status:         string(event.Status),
		At:             event.At,
	})
	if err != nil {
		m.logger.Error("sse failed to encode event", slog.String("error", err.Error()))
		return
	}
	hub.BroadcastEvent(string(event.Type), string(data))
}

// HubCount returns the number of rooms with watchers
func (m *HubManager) HubCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hubs)
}

// Close disconnects every watcher
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, code)
	}
}
