package watch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSDialer dials the server's /ws endpoint with gorilla websocket.
type WSDialer struct {
	// URL is the full websocket URL, e.g. ws://localhost:8080/ws
	URL       string
	Header    http.Header
	Dialer    *websocket.Dialer
	WriteWait time.Duration
}

func (d WSDialer) Dial(ctx context.Context) (Channel, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", d.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	wait := d.WriteWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &wsChannel{ws: ws, writeWait: wait}, nil
}

// wsChannel serialises writes since probes and user sends come from
// different goroutines
type wsChannel struct {
	ws        *websocket.Conn
	writeWait time.Duration
	mu        sync.Mutex
}

func (c *wsChannel) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *wsChannel) Receive() ([]byte, error) {
	for {
		kind, msg, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage {
			return msg, nil
		}
	}
}

func (c *wsChannel) Close() error {
	return c.ws.Close()
}
