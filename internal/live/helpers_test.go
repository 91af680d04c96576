package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
	"github.com/madiyar29925/UavHealthTracker12/internal/storage"
)

// fakeConn records every frame it is given
type fakeConn struct {
	id      string
	sendErr error
	panics  bool
	frames  [][]byte
	mu      sync.Mutex
	closed  atomic.Bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) error {
	if c.panics {
		panic("transport exploded")
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *fakeConn) IsOpen() bool { return !c.closed.Load() }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeConn) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) Envelopes(t *testing.T) []Envelope {
	t.Helper()
	frames := c.Frames()
	out := make([]Envelope, len(frames))
	for i, f := range frames {
		require.NoError(t, json.Unmarshal(f, &out[i]))
	}
	return out
}

func (c *fakeConn) Types(t *testing.T) []MessageType {
	t.Helper()
	envs := c.Envelopes(t)
	out := make([]MessageType, len(envs))
	for i, e := range envs {
		out[i] = e.Type
	}
	return out
}

// failingSource makes the join snapshot fail
type failingSource struct{ Source }

func (failingSource) ListUAVs(context.Context) ([]fleet.UAV, error) {
	return nil, errors.New("database unavailable")
}

// seededStore returns a memory store holding the demo fleet
func seededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	s := storage.NewMemoryStore()
	seeded, err := storage.Seed(context.Background(), s, time.Now())
	require.NoError(t, err)
	require.True(t, seeded)
	return s
}

// recordingIngestor counts calls and stores through a memory store
type recordingIngestor struct {
	store     storage.Store
	err       error
	telemetry []fleet.NewTelemetry
	alerts    []fleet.NewAlert
	mu        sync.Mutex
}

func (r *recordingIngestor) IngestTelemetry(ctx context.Context, in fleet.NewTelemetry) (fleet.Telemetry, error) {
	r.mu.Lock()
	r.telemetry = append(r.telemetry, in)
	r.mu.Unlock()
	if r.err != nil {
		return fleet.Telemetry{}, r.err
	}
	return r.store.CreateTelemetry(ctx, in)
}

func (r *recordingIngestor) CreateAlert(ctx context.Context, in fleet.NewAlert) (fleet.Alert, error) {
	r.mu.Lock()
	r.alerts = append(r.alerts, in)
	r.mu.Unlock()
	if r.err != nil {
		return fleet.Alert{}, r.err
	}
	return r.store.CreateAlert(ctx, in)
}

func (r *recordingIngestor) calls() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.telemetry), len(r.alerts)
}
