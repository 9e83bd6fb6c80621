// Package chat runs the per-request chat rooms over websockets.
package chat

import (
	"context"
	"sort"
	"sync"

	"letscrap-backend/internal/logging"
	"letscrap-backend/internal/metrics"
)

const (
	EventJoin           = "join_request_room"
	EventLeave          = "leave_request_room"
	EventSend           = "send_message"
	EventPing           = "ping"
	EventPong           = "pong"
	EventHistory        = "chat_history"
	EventReceiveMessage = "receive_message"
	EventRequestStatus  = "request_status"
	EventError          = "error"
)

// Frame is one outgoing socket message.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type roomFrame struct {
	room  uint
	frame Frame
}

// Hub tracks connected clients and the request rooms they joined.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[uint]map[*Client]bool
	broadcast  chan roomFrame
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[uint]map[*Client]bool),
		broadcast:  make(chan roomFrame, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// RunWithContext processes registrations and room broadcasts until ctx is done,
// then closes every client.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n := h.ClientCount()
			close(h.done)
			h.closeAll()
			logging.Info().Int("clients_closed", n).Msg("chat hub stopped")
			return ctx.Err()

		case c := <-h.Register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ChatConnections.Inc()
			logging.Debug().Uint("user_id", c.UserID).Int("total_clients", n).Msg("chat client connected")

		case c := <-h.Unregister:
			h.remove(c)

		case rf := <-h.broadcast:
			h.deliver(rf)
		}
	}
}

// Serve lets the hub run under a supervisor.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

func (h *Hub) String() string { return "chat-hub" }

// Join adds c to the room for requestID.
func (h *Hub) Join(c *Client, requestID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[requestID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[requestID] = room
	}
	room[c] = true
}

func (h *Hub) Leave(c *Client, requestID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, requestID)
}

func (h *Hub) leaveLocked(c *Client, requestID uint) {
	room, ok := h.rooms[requestID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, requestID)
	}
}

// InRoom reports whether c has joined the room for requestID.
func (h *Hub) InRoom(c *Client, requestID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[requestID][c]
}

// Broadcast queues f for every client in the room for requestID.
// It is a no-op once the hub has stopped.
func (h *Hub) Broadcast(requestID uint, f Frame) {
	select {
	case h.broadcast <- roomFrame{room: requestID, frame: f}:
	case <-h.done:
	}
}

// register hands c to the running hub; false means the hub has stopped.
func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(requestID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[requestID])
}

func (h *Hub) deliver(rf roomFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[rf.room]
	members := make([]*Client, 0, len(room))
	for c := range room {
		members = append(members, c)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].id < members[j].id })

	var slow []*Client
	for _, c := range members {
		if !c.enqueue(rf.frame) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.removeLocked(c)
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	for id := range h.rooms {
		h.leaveLocked(c, id)
	}
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.close()
	metrics.ChatConnections.Dec()
	logging.Debug().Uint("user_id", c.UserID).Int("total_clients", len(h.clients)).Msg("chat client disconnected")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}
