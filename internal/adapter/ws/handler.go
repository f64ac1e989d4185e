// Package ws implements the WebSocket adapter for live dashboard observers.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/replatform-mcp/internal/port/broadcast"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Hub manages the joined observers and fans frames out to them.
// Observers whose Send fails are removed and closed; there is no retry.
type Hub struct {
	mu        sync.Mutex
	observers map[broadcast.Observer]struct{}
	closed    bool
	now       func() time.Time
}

var _ broadcast.Broadcaster = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		observers: make(map[broadcast.Observer]struct{}),
		now:       time.Now,
	}
}

// Broadcast sends a pre-encoded frame to every observer.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for obs := range h.observers {
		if err := obs.Send(data); err != nil {
			slog.Debug("websocket observer dropped", "error", err)
			delete(h.observers, obs)
			obs.Close()
		}
	}
}

// Join sends one frame to obs and then registers it. An observer that
// cannot take the first frame is closed and never registered.
func (h *Hub) Join(_ context.Context, obs broadcast.Observer, eventType string, payload any) {
	data, err := h.encode(eventType, payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		obs.Close()
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		obs.Close()
		return
	}
	if err := obs.Send(data); err != nil {
		slog.Debug("websocket observer rejected initial frame", "error", err)
		obs.Close()
		return
	}
	h.observers[obs] = struct{}{}
	slog.Info("websocket observer joined", "observers", len(h.observers))
}

// Remove unregisters obs. Unknown observers are ignored.
func (h *Hub) Remove(obs broadcast.Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.observers[obs]; ok {
		delete(h.observers, obs)
		obs.Close()
		slog.Info("websocket observer left", "observers", len(h.observers))
	}
}

// ConnectionCount returns the number of joined observers.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Close closes every observer. Later joins are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for obs := range h.observers {
		obs.Close()
	}
	clear(h.observers)
	h.closed = true
}

// Attacher registers a new observer together with its initial state.
type Attacher interface {
	Attach(ctx context.Context, obs broadcast.Observer)
}

// Handler upgrades dashboard connections to WebSocket observers.
type Handler struct {
	hub          *Hub
	attacher     Attacher
	buffer       int
	writeTimeout time.Duration
}

// NewHandler returns a handler that attaches each connection through
// attacher. buffer is the number of frames queued per connection.
func NewHandler(hub *Hub, attacher Attacher, buffer int, writeTimeout time.Duration) *Handler {
	return &Handler{hub: hub, attacher: attacher, buffer: buffer, writeTimeout: writeTimeout}
}

// ServeHTTP accepts the upgrade and serves the connection until either side
// goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	slog.Info("websocket connected", "remote", r.RemoteAddr)

	// Observers never send anything we use; CloseRead consumes control
	// frames and cancels ctx once the peer disconnects.
	ctx := wsConn.CloseRead(r.Context())
	c := NewConn(wsConn, h.buffer, h.writeTimeout)

	h.attacher.Attach(ctx, c)
	c.writeLoop(ctx)
	h.hub.Remove(c)

	slog.Info("websocket disconnected", "remote", r.RemoteAddr)
}
