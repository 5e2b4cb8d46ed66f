package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub manages operator WebSocket clients and broadcasts alerts to them.
type Hub struct {
	connections map[*websocket.Conn]struct{}
	Register    chan *websocket.Conn
	Unregister  chan *websocket.Conn
	broadcast   chan []byte
	done        chan struct{}
	mu          sync.Mutex
	upgrader    websocket.Upgrader
	logger      *slog.Logger
	writeWait   time.Duration
}

type HubOption func(*Hub)

// WithWriteWait bounds each write to a client. A client that cannot take a
// message within d is dropped.
func WithWriteWait(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.writeWait = d
		}
	}
}

// NewHub constructs a Hub.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		Register:    make(chan *websocket.Conn),
		Unregister:  make(chan *websocket.Conn),
		broadcast:   make(chan []byte, 16),
		done:        make(chan struct{}),
		logger:      logger,
		writeWait:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes register/unregister/broadcast events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.connections {
				conn.Close()
				delete(h.connections, conn)
			}
			h.mu.Unlock()
			return
		case conn := <-h.Register:
			h.mu.Lock()
			h.connections[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.Unregister:
			h.mu.Lock()
			delete(h.connections, conn)
			h.mu.Unlock()
			conn.Close()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.connections {
				_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.logger.Warn("dropping alert client", "remote", conn.RemoteAddr().String(), "err", err)
					conn.Close()
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues msg for every connected client. It returns without
// sending once the hub has stopped.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects. Clients only receive; anything they send is discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("alert websocket upgrade failed", "err", err)
		return
	}
	select {
	case h.Register <- conn:
	case <-h.done:
		conn.Close()
		return
	}
	for {
		if _, _, err := conn.NextReader(); err != nil {
			select {
			case h.Unregister <- conn:
			case <-h.done:
			}
			return
		}
	}
}
