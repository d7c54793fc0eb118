package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

// Client is one live websocket connection. Every write to the socket goes
// through writePump; other goroutines only enqueue with Push.
type Client struct {
	id        string
	userID    int64
	sessionID string
	conn      *websocket.Conn

	send chan domain.ServerMessage
	done chan struct{}

	// mu orders Push against Close: nothing is enqueued once done is closed.
	mu          sync.Mutex
	closed      bool
	closeReason string
}

func newClient(conn *websocket.Conn, userID int64, sessionID string, queueSize int) *Client {
	return &Client{
		id:        uuid.NewString(),
		userID:    userID,
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan domain.ServerMessage, queueSize),
		done:      make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() int64 { return c.userID }

// SessionID is the id of the token the connection authenticated with.
func (c *Client) SessionID() string { return c.sessionID }

// Push enqueues msg without blocking. It fails with
// domain.ErrDeliveryDropped once the client is closed or its queue is full.
func (c *Client) Push(msg domain.ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.WithMessage(domain.ErrDeliveryDropped, "connection closed")
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return errors.WithMessage(domain.ErrDeliveryDropped, "send queue full")
	}
}

// Close stops the client. Messages already queued are flushed before the
// close frame is written. Safe to call more than once.
func (c *Client) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeReason = reason
	close(c.done)
}

// reason is read by writePump after done is closed.
func (c *Client) reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}

func (c *Client) writeJSON(msg domain.ServerMessage) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.writeJSON(msg); err != nil {
				jww.DEBUG.Printf("[WS] Write to %s failed: %v", c.id, err)
				c.Close("write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close("ping failed")
				return
			}

		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, c.reason()),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.writeJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump reads client frames until the connection fails or is closed.
func (c *Client) readPump(handle func(*Client, domain.ClientMessage)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				jww.INFO.Printf("[WS] User %d disconnected unexpectedly: %v", c.userID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame domain.ClientMessage
		if err := json.Unmarshal(data, &frame); err != nil {
			jww.DEBUG.Printf("[WS] Invalid message format from user %d: %v", c.userID, err)
			_ = c.Push(domain.ServerMessage{Type: domain.EventError, Error: "Invalid message format"})
			continue
		}
		handle(c, frame)
	}
}
