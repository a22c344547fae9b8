package websocket

import (
	"context"
	"sync"
	"time"

	"benome-realtime/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBufferSize = 256
)

// Client represents a single WebSocket connection
type Client struct {
	ID          string
	UserID      uuid.UUID
	Identity    services.Identity
	conn        *websocket.Conn
	send        chan []byte
	rateLimiter *ClientRateLimiter
	connectedAt time.Time

	// guarded by the hub lock
	groups map[string]struct{}

	mu     sync.Mutex
	closed bool
}

func newClient(identity services.Identity, conn *websocket.Conn) *Client {
	return &Client{
		ID:          uuid.NewString(),
		UserID:      identity.UserID,
		Identity:    identity,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		rateLimiter: NewClientRateLimiter(DefaultRateLimits),
		connectedAt: time.Now(),
		groups:      make(map[string]struct{}),
	}
}

// trySend queues payload without blocking. It reports false when the queue is
// full or the connection is closing.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend stops the write pump after it drains what is queued.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) closeConn() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// readPump reads frames until the connection fails or ctx ends. Each text
// message carries exactly one frame.
func (c *Client) readPump(ctx context.Context, onFrame func(ctx context.Context, c *Client, raw []byte), onPong func()) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if onPong != nil {
			onPong()
		}
		return nil
	})

	for {
		if ctx.Err() != nil {
			return nil
		}
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				return err
			}
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		onFrame(ctx, c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
