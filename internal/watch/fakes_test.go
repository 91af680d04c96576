package watch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// fakeClock only moves when Advance is called. Timer callbacks run on the
// goroutine calling Advance.
type fakeClock struct {
	now       time.Time
	timers    []*fakeTimer
	scheduled []time.Duration
	mu        sync.Mutex
}

type fakeTimer struct {
	at      time.Time
	f       func()
	clock   *fakeClock
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f, clock: c}
	c.timers = append(c.timers, t)
	c.scheduled = append(c.scheduled, d)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward by d, firing due timers in order
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *fakeClock) lastScheduled() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.scheduled) == 0 {
		return 0
	}
	return c.scheduled[len(c.scheduled)-1]
}

var errRefused = errors.New("connection refused")

// fakeChannel is an in-memory channel; the test plays the server
type fakeChannel struct {
	incoming chan []byte
	closed   chan struct{}
	sent     [][]byte
	mu       sync.Mutex
	once     sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{incoming: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeChannel) Send(frame []byte) error {
	select {
	case <-c.closed:
		return errors.New("send on closed channel")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, frame)
	return nil
}

func (c *fakeChannel) Receive() ([]byte, error) {
	select {
	case msg := <-c.incoming:
		return msg, nil
	case <-c.closed:
		return nil, errors.New("channel closed")
	}
}

func (c *fakeChannel) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeChannel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeChannel) sentFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, f := range c.sent {
		out[i] = string(f)
	}
	return out
}

// fakeDialer hands out queued channels; once the queue is empty every dial
// is refused
type fakeDialer struct {
	queue []*fakeChannel
	dials int
	mu    sync.Mutex
}

func (d *fakeDialer) Dial(context.Context) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.queue) == 0 {
		return nil, errRefused
	}
	ch := d.queue[0]
	d.queue = d.queue[1:]
	return ch, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
