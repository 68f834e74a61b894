package broadcast

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// ClientConfig holds per-connection write settings.
type ClientConfig struct {
	// SendBuffer is the number of outbound frames queued per client.
	SendBuffer int
	// PingInterval must be shorter than the reader's pong wait.
	PingInterval time.Duration
	WriteWait    time.Duration
}

// DefaultClientConfig returns the defaults used when no config is supplied.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBuffer:   256,
		PingInterval: 54 * time.Second,
		WriteWait:    10 * time.Second,
	}
}

// Client is a single WebSocket connection owned by the hub.
type Client struct {
	ID   string
	Conn *websocket.Conn

	send      chan []byte
	closeOnce sync.Once
}

// NewClient creates a client with a send buffer of the given size.
func NewClient(id string, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientConfig().SendBuffer
	}
	return &Client{
		ID:   id,
		Conn: conn,
		send: make(chan []byte, buffer),
	}
}

// closeSend closes the outbound queue, which stops WritePump.
// Callers must hold the hub write lock.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// WritePump writes queued frames to the connection and keeps it alive with
// pings. It owns all writes to Conn and returns when the queue is closed or
// a write fails.
func (c *Client) WritePump(cfg ClientConfig) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
