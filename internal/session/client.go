package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one connected websocket participant. Writes are funneled through
// a buffered channel drained by WritePump so any goroutine may call SendJSON.
type Client struct {
	ID string

	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	mu       sync.RWMutex
	username string
	lastSeen time.Time

	closeOnce sync.Once
}

// NewClient wraps an accepted websocket connection.
func NewClient(id string, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		ID:       id,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		logger:   logger,
		lastSeen: time.Now(),
	}
}

// Touch records inbound activity, read by the idle sweep.
func (c *Client) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()
}

// IdleFor returns the time since the client last sent a message.
func (c *Client) IdleFor(now time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return now.Sub(c.lastSeen)
}

// Username returns the display name the client registered with.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// SetUsername records the display name chosen at join time.
func (c *Client) SetUsername(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = name
}

// SendJSON marshals v and queues it for delivery. A client whose buffer is
// full is considered dead and its connection is closed.
func (c *Client) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode outbound message: %w", err)
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn("client send buffer full, dropping connection",
			zap.String("client_id", c.ID),
		)
		c.Close()
		return fmt.Errorf("client %s send buffer full", c.ID)
	}
}

// Close terminates the connection and the write pump.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// WritePump drains the send channel onto the wire and keeps the connection
// alive with pings. It exits when the channel closes or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads inbound messages until the connection drops, handing each
// decoded payload to handle. onClose runs exactly once when the pump exits.
func (c *Client) ReadPump(handle func(map[string]any), onClose func()) {
	defer func() {
		c.Close()
		onClose()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket closed unexpectedly",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
			}
			return
		}
		c.Touch()
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			c.SendJSON(map[string]any{
				"message_type":  "error",
				"error_id":      "malformed_message",
				"error_message": "message is not valid JSON",
			})
			continue
		}
		handle(payload)
	}
}
