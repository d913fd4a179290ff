package ws

import (
	"sync"

	"chatrelay/internal/metrics"
)

// Event is one named event on the wire, both directions.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn is the subset of a websocket connection the hub needs. Satisfied
// by *websocket.Conn.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// client serializes writes to one connection; gorilla connections allow
// a single concurrent writer.
type client struct {
	mu   sync.Mutex
	conn Conn
}

func (c *client) send(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(e)
}

// Hub is the fanout broadcaster: it holds the live connections grouped
// by user id and delivers events to one user's group or to everyone.
// Delivery is best-effort, at most once per connection; a connection
// that fails mid-delivery is closed and its event dropped.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[string]*client
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[string]*client),
	}
}

// Register adds a connection to the user's broadcast group and returns
// the wrapped client, so direct replies and fanout share one write lock.
func (h *Hub) Register(userID, connID string, conn Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[string]*client)
	}
	cl := &client{conn: conn}
	h.conns[userID][connID] = cl
	return cl
}

// Unregister removes a connection from the user's broadcast group.
func (h *Hub) Unregister(userID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.conns, userID)
		}
	}
}

// EmitToUser delivers the event to every live connection of one user:
// zero, one, or many (multi-device fanout).
func (h *Hub) EmitToUser(userID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, cl := range h.conns[userID] {
		deliver(cl, Event{Event: event, Data: payload})
	}
}

// EmitToAll delivers the event to every connected client regardless of
// user; used only for the global online-user list.
func (h *Hub) EmitToAll(event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.conns {
		for _, cl := range conns {
			deliver(cl, Event{Event: event, Data: payload})
		}
	}
}

func deliver(cl *client, e Event) {
	if err := cl.send(e); err != nil {
		// dead connection: drop the delivery, the gateway's read loop
		// will unregister it
		cl.conn.Close()
		metrics.FanoutDropped.Inc()
		return
	}
	metrics.FanoutDeliveries.Inc()
}
