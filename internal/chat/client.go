package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"letscrap-backend/internal/logging"
	"letscrap-backend/internal/models"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 64
)

var clientIDCounter atomic.Uint64

// inbound is one frame read from a client; Data is decoded per event.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one authenticated socket connection.
type Client struct {
	id     uint64
	UserID uint
	Name   string
	Role   models.UserRole

	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan Frame
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uint, name string, role models.UserRole) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		UserID: userID,
		Name:   name,
		Role:   role,
		hub:    hub,
		conn:   conn,
		send:   make(chan Frame, sendBuffer),
	}
}

// enqueue hands f to the write pump. It reports false when the client is gone or too slow.
func (c *Client) enqueue(f Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Reply sends f to this client only.
func (c *Client) Reply(event string, data any) {
	c.enqueue(Frame{Event: event, Data: data})
}

func (c *Client) replyError(msg string) {
	c.Reply(EventError, msg)
}

func (c *Client) readPump(dispatch func(*Client, inbound)) {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Uint("user_id", c.UserID).Msg("unexpected chat close")
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.replyError("Malformed message")
			continue
		}
		dispatch(c, in)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(f)
			if err != nil {
				logging.Error().Err(err).Str("event", f.Event).Msg("failed to encode chat frame")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// start runs the read and write pumps; dispatch handles each decoded frame.
func (c *Client) start(dispatch func(*Client, inbound)) {
	go c.writePump()
	go c.readPump(dispatch)
}
