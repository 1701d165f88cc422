package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

const defaultSendBuffer = 32

// client is one websocket connection. send is drained by the write pump.
type client struct {
	id   string
	send chan []byte

	// guarded by Hub.mu
	rooms  map[string]struct{}
	closed bool
}

func newClient(id string, buffer int) *client {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &client{
		id:    id,
		send:  make(chan []byte, buffer),
		rooms: make(map[string]struct{}),
	}
}

// Hub is the in-process subscriber table.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*client]struct{}
	clients map[*client]struct{}
	logger  *slog.Logger
}

type HubOption func(*Hub)

func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		rooms:   make(map[string]map[*client]struct{}),
		clients: make(map[*client]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// unregister removes c from every room and closes its send channel.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	for room := range c.rooms {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.clients, c)
	c.closed = true
	close(c.send)
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// EmitLocal delivers ev to every local member of room and returns how many
// connections accepted it.
func (h *Hub) EmitLocal(room string, ev Event) int {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode realtime event", "event", ev.Name, "error", err)
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.deliver(h.rooms[room], ev.Name, payload)
}

// BroadcastLocal delivers ev to every local connection.
func (h *Hub) BroadcastLocal(ev Event) int {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode realtime event", "event", ev.Name, "error", err)
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.deliver(h.clients, ev.Name, payload)
}

// deliver must be called with h.mu held. Slow clients lose the event rather
// than stalling the publisher.
func (h *Hub) deliver(targets map[*client]struct{}, name string, payload []byte) int {
	delivered := 0
	for c := range targets {
		select {
		case c.send <- payload:
			delivered++
		default:
			h.logger.Warn("realtime client buffer full, dropping event", "socket_id", c.id, "event", name)
		}
	}
	return delivered
}

// Connections returns the number of connected clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of local members of room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
