package ws

import (
	"sync"

	"golang.org/x/net/websocket"
)

const clientBuffer = 64

// Client is one websocket connection. A client that falls a full buffer
// behind is disconnected rather than slowing down the hub.
type Client struct {
	conn *websocket.Conn
	out  chan []byte

	mu       sync.Mutex
	closed   bool
	channels map[string]struct{}
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:     conn,
		out:      make(chan []byte, clientBuffer),
		channels: map[string]struct{}{},
	}
}

func (c *Client) send(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.out <- payload:
	default:
		c.closeLocked()
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) track(channel string, subscribed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if subscribed {
		c.channels[channel] = struct{}{}
		return
	}
	delete(c.channels, channel)
}

func (c *Client) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}
