// Package wsevents broadcasts queue events to websocket clients.
//
// The Hub implements opqueue.Sink: wire it with opqueue.WithEvents and
// register connections upgraded by the surrounding HTTP server. Clients that
// stop reading or writing are dropped.
package wsevents

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/velmie/opqueue"
)

// Hub fans queue events out to connected websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	logger  opqueue.Logger
}

var _ opqueue.Sink = (*Hub)(nil)

// NewHub creates a hub. A nil logger disables logging.
func NewHub(logger opqueue.Logger) *Hub {
	if logger == nil {
		logger = opqueue.NopLogger{}
	}

	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// Add registers a connection and drains its reads until it closes.
func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "clients", count)

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish implements opqueue.Sink. A client whose write fails is dropped.
// The hub mutex doubles as the write lock: gorilla connections allow only
// one concurrent writer.
func (h *Hub) Publish(event opqueue.Event) {
	h.mu.Lock()
	var failed []*websocket.Conn
	for conn := range h.clients {
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Warn("websocket write failed; dropping client", "err", err)
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	for _, conn := range failed {
		_ = conn.Close()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, known := h.clients[conn]
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	_ = conn.Close()
	if known {
		h.logger.Debug("websocket client disconnected", "clients", count)
	}
}
