package server

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development.
	},
}

// Hub manages WebSocket connections and broadcasts cache activity lines
// (hit/miss/write/purge) to all connected clients. It backs the dev-mode
// /_glaze/events endpoint; outside dev mode it is never started and
// Publish drops everything.
type Hub struct {
	mu        sync.Mutex
	running   bool
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	done      chan struct{}
}

// NewHub creates a new Hub ready to manage WebSocket connections.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
	}
}

// Run starts the hub event loop. It processes broadcast events until Stop
// is called.
func (h *Hub) Run() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	for {
		select {
		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					delete(h.clients, conn)
					conn.Close()
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.running = false
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts down the hub event loop and closes all client connections.
func (h *Hub) Stop() {
	close(h.done)
}

// Publish queues a cache activity line for broadcast. It satisfies the
// optimizer's Events interface and never blocks the request path: when
// the hub is not running or the channel is full the message is dropped.
func (h *Hub) Publish(msg string) {
	h.mu.Lock()
	running := h.running
	h.mu.Unlock()
	if !running {
		return
	}
	select {
	case h.broadcast <- []byte(msg):
	default:
		// Drop message if broadcast channel is full.
	}
}

// HandleWS upgrades an HTTP connection to a WebSocket and registers it
// with the hub. The connection is automatically unregistered when the
// client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	// Read loop: wait for the client to disconnect.
	go func() {
		defer func() {
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// ClientCount returns the current number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
