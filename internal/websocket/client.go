package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one gateway connection. Connection identity is independent
// of conversation identity: one connection may join many rooms over its
// lifetime.
type Client struct {
	ID     string
	UserID uuid.UUID

	conn  *websocket.Conn
	send  chan []byte
	rooms map[uuid.UUID]struct{}
	mu    sync.Mutex // protects rooms and conn writes
}

func NewClient(conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		rooms:  make(map[uuid.UUID]struct{}),
	}
}

func (c *Client) addRoom(room uuid.UUID) {
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) removeRoom(room uuid.UUID) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// Rooms returns a copy of the connection's current subscriptions.
func (c *Client) Rooms() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]uuid.UUID, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Enqueue hands a payload to the write loop without blocking. A full
// buffer drops the payload; the client recovers it from the next
// history fetch.
func (c *Client) Enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}

// WriteLoop drains the send channel onto the wire and keeps the
// connection alive with pings.
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		case payload, ok := <-c.send:
			if !ok {
				c.writeControl(websocket.CloseMessage, []byte{})
				c.close()
				return
			}
			c.mu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.TextMessage, payload)
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writeControl(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeControl(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) close() {
	c.mu.Lock()
	_ = c.conn.Close()
	c.mu.Unlock()
}
