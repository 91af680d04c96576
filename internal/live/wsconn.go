package live

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConnOptions tunes a WSConn. Zero values take the defaults below.
type ConnOptions struct {
	// SendQueue is the number of frames buffered per connection
	SendQueue int
	// WriteWait bounds a single frame write
	WriteWait time.Duration
	// ReadLimit is the largest inbound message in bytes
	ReadLimit int64
	Logger    *slog.Logger
}

const (
	DefaultSendQueue = 64
	DefaultWriteWait = 10 * time.Second
	DefaultReadLimit = 64 * 1024
)

func (o ConnOptions) withDefaults() ConnOptions {
	if o.SendQueue <= 0 {
		o.SendQueue = DefaultSendQueue
	}
	if o.WriteWait <= 0 {
		o.WriteWait = DefaultWriteWait
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// WSConn is a Conn over a gorilla websocket.
//
// Outbound frames go through a buffered queue drained by a single writer
// goroutine, which keeps per-connection order and keeps Send from blocking.
// Only the writer tears the socket down, after flushing what is queued.
type WSConn struct {
	ws        *websocket.Conn
	send      chan []byte
	stop      chan struct{}
	done      chan struct{}
	logger    *slog.Logger
	id        string
	writeWait time.Duration
	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
	open      atomic.Bool
}

// NewWSConn wraps an upgraded websocket and starts its writer.
func NewWSConn(ws *websocket.Conn, opts ConnOptions) *WSConn {
	opts = opts.withDefaults()
	c := &WSConn{
		ws:        ws,
		send:      make(chan []byte, opts.SendQueue),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		id:        uuid.NewString(),
		writeWait: opts.WriteWait,
	}
	c.logger = opts.Logger.With("conn", c.id)
	c.open.Store(true)
	ws.SetReadLimit(opts.ReadLimit)
	go c.writeLoop()
	return c
}

func (c *WSConn) ID() string { return c.id }

func (c *WSConn) IsOpen() bool { return c.open.Load() }

// Send queues frame for delivery. It fails with ErrSendQueueFull instead of
// waiting when the writer is behind.
func (c *WSConn) Send(frame []byte) error {
	if !c.open.Load() {
		return ErrConnClosed
	}
	select {
	case <-c.stop:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close writes out frames already queued, sends a close frame and tears
// the socket down. The flush and close frame share one WriteWait deadline.
// Close returns once the socket is closed; it is safe to call more than
// once and from any goroutine.
func (c *WSConn) Close() error {
	c.open.Store(false)
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
	return c.closeErr
}

// Done is closed once the connection has closed
func (c *WSConn) Done() <-chan struct{} { return c.done }

func (c *WSConn) writeLoop() {
	defer c.teardown()
	for {
		select {
		case <-c.stop:
			c.flush()
			return
		case frame := <-c.send:
			if err := c.write(frame, time.Now().Add(c.writeWait)); err != nil {
				c.logger.Debug("write failed", "error", err)
				return
			}
		}
	}
}

func (c *WSConn) flush() {
	deadline := time.Now().Add(c.writeWait)
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame, deadline); err != nil {
				c.logger.Debug("flush failed", "error", err)
				return
			}
		default:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

func (c *WSConn) write(frame []byte, deadline time.Time) error {
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *WSConn) teardown() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.closeErr = c.ws.Close()
		close(c.done)
	})
}

// ReadLoop feeds every inbound text message to handle until the peer goes
// away, ctx is cancelled or the connection is closed. The connection is
// closed when ReadLoop returns.
func (c *WSConn) ReadLoop(ctx context.Context, handle func(ctx context.Context, msg []byte)) {
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		kind, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("connection dropped", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		handle(ctx, msg)
	}
}

// Handler upgrades HTTP requests to live-channel connections.
type Handler struct {
	registry   *Registry
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	opts       ConnOptions
	logger     *slog.Logger
}

// NewHandler wires a websocket endpoint to registry and dispatcher.
// Origins are not checked; the dashboard is served from other hosts.
func NewHandler(registry *Registry, dispatcher *Dispatcher, opts ConnOptions) *Handler {
	opts = opts.withDefaults()
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		opts:   opts,
		logger: opts.Logger.With("component", "live.handler"),
	}
}

// ServeHTTP blocks for the lifetime of the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := NewWSConn(ws, h.opts)
	ctx := r.Context()

	h.registry.Register(ctx, conn)
	defer h.registry.Unregister(conn)

	conn.ReadLoop(ctx, h.dispatcher.Handler(conn))
}
