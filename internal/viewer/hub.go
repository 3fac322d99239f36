// Package viewer streams translation events from Kafka to browsers over
// WebSocket.
package viewer

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"clinical-speech-translator/internal/observability/logging"
)

// Event is the union of the completed and failed translation payloads.
type Event struct {
	EventType     string `json:"eventType"`
	RequestID     string `json:"requestId"`
	SourceLang    string `json:"sourceLang"`
	TargetLang    string `json:"targetLang"`
	Text          string `json:"text,omitempty"`
	CorrectedText string `json:"correctedText,omitempty"`
	Output        string `json:"output,omitempty"`
	LatencyMs     int64  `json:"latencyMs,omitempty"`
	StatusCode    int    `json:"statusCode,omitempty"`
	Error         string `json:"error,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// Hub manages WebSocket connections
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	stopped    chan struct{}
	mu         sync.RWMutex
	logger     zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		stopped:    make(chan struct{}),
		logger:     logging.WithComponent("viewer.hub"),
	}
}

// Broadcast queues ev for every connected client.
func (h *Hub) Broadcast(ev Event) {
	select {
	case h.broadcast <- ev:
	case <-h.stopped:
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run dispatches registrations and broadcasts until done is closed.
func (h *Hub) Run(done <-chan struct{}) {
	defer close(h.stopped)
	for {
		select {
		case <-done:
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info().Int("clients", n).Msg("Client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info().Int("clients", n).Msg("Client disconnected")

		case ev := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteJSON(ev); err != nil {
					h.logger.Warn().Err(err).Msg("Write failed, dropping client")
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

// Handler upgrades the request and registers the connection with the hub.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		select {
		case h.register <- conn:
		case <-h.stopped:
			conn.Close()
			return
		}

		// Keep connection alive, handle disconnects
		go func() {
			defer func() {
				select {
				case h.unregister <- conn:
				case <-h.stopped:
				}
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
