package notify

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event is one message broadcast to subscribed clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub fans events out to connected WebSocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	log     *logrus.Logger
}

// NewHub creates an empty Hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		log:     log,
	}
}

// AddClient registers a client connection.
func (h *Hub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

// RemoveClient unregisters and closes a client connection.
func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every client. Slow or failed clients are dropped.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
	}
	h.mu.Unlock()

	var failed []*websocket.Conn
	var failedMu sync.Mutex
	var wg sync.WaitGroup

	for _, conn := range clients {
		wg.Add(1)
		go func(c *websocket.Conn) {
			defer wg.Done()
			c.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
			if err := c.WriteJSON(event); err != nil {
				failedMu.Lock()
				failed = append(failed, c)
				failedMu.Unlock()
			}
		}(conn)
	}
	wg.Wait()

	for _, conn := range failed {
		h.log.WithField("remote", conn.RemoteAddr().String()).Debug("dropping slow notify client")
		h.RemoveClient(conn)
	}
}

// NotifyDataReceived implements the controller's Notifier: one event per
// received payload.
func (h *Hub) NotifyDataReceived(peripheralID, body string) {
	h.Broadcast(Event{
		Type: "data_received",
		Payload: map[string]interface{}{
			"peripheral_id": peripheralID,
			"body":          body,
			"timestamp":     time.Now().Unix(),
		},
	})
}

// NotifyStateChanged broadcasts a connection-state transition.
func (h *Hub) NotifyStateChanged(peripheralID, state string) {
	h.Broadcast(Event{
		Type: "state",
		Payload: map[string]interface{}{
			"peripheral_id": peripheralID,
			"state":         state,
		},
	})
}
