package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/madiyar29925/UavHealthTracker12/internal/live"
)

// State is the lifecycle state of the client's channel.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// ErrGaveUp is reported once the reconnect budget is spent
var ErrGaveUp = errors.New("watch: connection lost")

// errSilent is the close reason when the liveness check fails
var errSilent = errors.New("watch: no traffic within liveness tolerance")

// Channel is one open connection to the server.
// Receive blocks until a message arrives or the channel fails.
type Channel interface {
	Send(frame []byte) error
	Receive() ([]byte, error)
	Close() error
}

// Dialer opens channels.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// DialerFunc adapts a function to Dialer
type DialerFunc func(ctx context.Context) (Channel, error)

func (f DialerFunc) Dial(ctx context.Context) (Channel, error) { return f(ctx) }

const (
	DefaultBaseDelay    = 5 * time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultPingInterval = 10 * time.Second
	DefaultMaxAttempts  = 10
	DefaultTolerance    = 3
)

// Options configures a Client. Zero values take the defaults above.
type Options struct {
	// OnMessage receives every envelope except pong
	OnMessage func(live.Envelope)
	// OnStateChange observes every transition
	OnStateChange func(State)
	// OnGiveUp fires once when reconnecting stops for good
	OnGiveUp func(error)

	Clock  Clock
	Logger *slog.Logger

	BaseDelay    time.Duration
	MaxDelay     time.Duration
	PingInterval time.Duration
	MaxAttempts  int
	// Tolerance is how many ping intervals may pass without traffic
	Tolerance int
	// RequirePong counts only pong replies as proof of life
	RequirePong bool
}

func (o Options) withDefaults() Options {
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Client keeps a live channel to the server open.
//
// State machine:
//
//	CONNECTING ──open──▶ OPEN ──close──▶ CLOSED
//	     ▲                                  │
//	     └──── after Backoff(attempts) ─────┘  while attempts < MaxAttempts
//
// A failed dial counts as a close. While open, a liveness probe runs every
// PingInterval; it force-closes the channel when nothing has arrived for
// Tolerance intervals and otherwise sends a ping.
//
// All transitions are serialised on one mutex. Each connection gets a
// generation number so events from a superseded channel are ignored.
type Client struct {
	dialer   Dialer
	opts     Options
	ctx      context.Context
	cancel   context.CancelFunc
	ch       Channel
	probe    Timer
	retry    Timer
	err      error
	done     chan struct{}
	alive    liveness
	gen      uint64
	attempts int
	mu       sync.Mutex
	state    State
	started  bool
	stopped  bool
}

// New creates a client that opens channels through dialer. Call Start or
// Run to connect.
func New(dialer Dialer, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		dialer: dialer,
		opts:   opts,
		done:   make(chan struct{}),
		state:  StateClosed,
		alive: liveness{
			interval:    opts.PingInterval,
			tolerance:   opts.Tolerance,
			requirePong: opts.RequirePong,
		},
	}
}

// Start begins connecting. Calling it again has no effect.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	notify := c.connectLocked()
	c.mu.Unlock()
	notify()
}

// Run starts the client and blocks until ctx is cancelled or the client
// gives up. It returns ErrGaveUp in the latter case.
func (c *Client) Run(ctx context.Context) error {
	c.Start(ctx)
	select {
	case <-ctx.Done():
		c.Stop()
		return nil
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.err
	}
}

// Stop closes the channel and cancels any pending reconnect.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	c.stopTimersLocked()
	ch := c.ch
	c.ch = nil
	c.gen++
	changed := c.setStateLocked(StateClosed)
	c.finishLocked(nil)
	c.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	changed()
}

// Done is closed when the client stops or gives up
func (c *Client) Done() <-chan struct{} { return c.done }

// State returns the current lifecycle state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the reconnect attempts made since the last open
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Send writes v to the server. []byte values are sent as is, anything else
// is JSON encoded. Returns false when the channel isn't open or the write
// fails.
func (c *Client) Send(v any) bool {
	frame, ok := v.([]byte)
	if !ok {
		var err error
		if frame, err = json.Marshal(v); err != nil {
			c.opts.Logger.Warn("encode outbound message", "error", err)
			return false
		}
	}

	c.mu.Lock()
	ch := c.ch
	open := c.state == StateOpen
	c.mu.Unlock()
	if !open || ch == nil {
		return false
	}
	if err := ch.Send(frame); err != nil {
		c.opts.Logger.Warn("send failed", "error", err)
		return false
	}
	return true
}

// connectLocked enters CONNECTING and dials in the background. The
// returned func must be called after mu is released.
func (c *Client) connectLocked() func() {
	c.gen++
	gen := c.gen
	changed := c.setStateLocked(StateConnecting)
	ctx := c.ctx
	go c.dial(ctx, gen)
	return changed
}

func (c *Client) dial(ctx context.Context, gen uint64) {
	ch, err := c.dialer.Dial(ctx)
	if err != nil {
		c.opts.Logger.Debug("dial failed", "error", err)
		c.closed(gen, err)
		return
	}
	c.opened(gen, ch)
}

func (c *Client) opened(gen uint64, ch Channel) {
	c.mu.Lock()
	if gen != c.gen || c.stopped {
		c.mu.Unlock()
		ch.Close()
		return
	}
	c.ch = ch
	c.attempts = 0
	c.alive.reset(c.opts.Clock.Now())
	c.probe = c.opts.Clock.AfterFunc(c.opts.PingInterval, func() { c.tick(gen) })
	changed := c.setStateLocked(StateOpen)
	c.mu.Unlock()

	c.opts.Logger.Info("channel open")
	changed()
	go c.readLoop(gen, ch)
}

func (c *Client) readLoop(gen uint64, ch Channel) {
	for {
		msg, err := ch.Receive()
		if err != nil {
			c.closed(gen, err)
			return
		}
		c.received(gen, msg)
	}
}

func (c *Client) received(gen uint64, msg []byte) {
	var env live.Envelope
	parseErr := json.Unmarshal(msg, &env)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.alive.observe(c.opts.Clock.Now(), env.Type)
	c.mu.Unlock()

	if parseErr != nil {
		c.opts.Logger.Warn("unparseable message", "error", parseErr)
		return
	}
	if env.Type == live.TypePong {
		return
	}
	if c.opts.OnMessage != nil {
		c.opts.OnMessage(env)
	}
}

// tick is the liveness probe. It checks for silence before sending.
func (c *Client) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	quiet, dead := c.alive.silentFor(c.opts.Clock.Now())
	if dead {
		c.mu.Unlock()
		c.opts.Logger.Warn("channel silent, forcing close", "quiet", quiet)
		c.closed(gen, errSilent)
		return
	}
	ch := c.ch
	c.probe = c.opts.Clock.AfterFunc(c.opts.PingInterval, func() { c.tick(gen) })
	c.mu.Unlock()

	if err := ch.Send(live.PingFrame); err != nil {
		c.opts.Logger.Debug("ping failed", "error", err)
	}
}

// closed handles every way a channel ends: peer close, transport error,
// failed dial and forced close
func (c *Client) closed(gen uint64, reason error) {
	c.mu.Lock()
	if gen != c.gen || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.stopTimersLocked()
	ch := c.ch
	c.ch = nil
	changed := c.setStateLocked(StateClosed)

	var giveUp func()
	if !c.stopped {
		if c.attempts < c.opts.MaxAttempts {
			c.attempts++
			delay := Backoff(c.attempts, c.opts.BaseDelay, c.opts.MaxDelay)
			c.opts.Logger.Info("channel closed, reconnecting", "reason", reason, "attempt", c.attempts, "delay", delay)
			c.retry = c.opts.Clock.AfterFunc(delay, func() { c.reconnect(gen) })
		} else {
			c.opts.Logger.Error("channel closed, giving up", "reason", reason, "attempts", c.attempts)
			giveUp = c.finishLocked(ErrGaveUp)
		}
	}
	c.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	changed()
	if giveUp != nil {
		giveUp()
	}
}

func (c *Client) reconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.stopped || c.state != StateClosed {
		c.mu.Unlock()
		return
	}
	notify := c.connectLocked()
	c.mu.Unlock()
	notify()
}

func (c *Client) stopTimersLocked() {
	if c.probe != nil {
		c.probe.Stop()
		c.probe = nil
	}
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}

// finishLocked marks the client terminal and returns the give-up callback
func (c *Client) finishLocked(err error) func() {
	select {
	case <-c.done:
		return func() {}
	default:
	}
	c.err = err
	close(c.done)
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	if err == nil || c.opts.OnGiveUp == nil {
		return func() {}
	}
	onGiveUp := c.opts.OnGiveUp
	return func() { onGiveUp(err) }
}

func (c *Client) setStateLocked(s State) func() {
	if c.state == s {
		return func() {}
	}
	c.state = s
	if c.opts.OnStateChange == nil {
		return func() {}
	}
	cb := c.opts.OnStateChange
	return func() { cb(s) }
}
