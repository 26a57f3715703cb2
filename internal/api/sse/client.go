package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mcoot/cardroom/internal/model"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 64
)

// Client is one connected watcher
type Client struct {
	hub         *Hub
	identityID  model.IdentityID
	send        chan []byte
	connectedAt time.Time
}

func newClient(hub *Hub, identityID model.IdentityID) *Client {
	return &Client{
		hub:         hub,
		identityID:  identityID,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// ServeSSE streams the room's events to the caller until they disconnect or
// the hub shuts down
func ServeSSE(w http.ResponseWriter, r *http.Request, m *HubManager, code model.RoomCode, identityID model.IdentityID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	// The server's write timeout would otherwise cut the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := m.Subscribe(code, identityID)
	defer m.Unsubscribe(client)

	_, _ = w.Write(formatSSEMessage("connected", fmt.Sprintf(`{"room":%q}`, string(code))))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
