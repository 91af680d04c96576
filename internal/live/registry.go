package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
	"github.com/madiyar29925/UavHealthTracker12/internal/metrics"
)

const (
	// initialAlertLimit caps the alerts included in the join snapshot
	initialAlertLimit = 10

	// heldFrameLimit caps the broadcasts held for a connection while its
	// snapshot is being built
	heldFrameLimit = 256
)

// Source is the read side of the store needed by the live core.
// storage.Store satisfies it.
type Source interface {
	ListUAVs(ctx context.Context) ([]fleet.UAV, error)
	GetUAV(ctx context.Context, id int64) (fleet.UAV, error)
	DashboardStats(ctx context.Context) (fleet.DashboardStats, error)
	ListAlerts(ctx context.Context, limit int) ([]fleet.Alert, error)
}

// RegistryOptions configures a Registry. Every field is optional.
type RegistryOptions struct {
	// OnOpen runs after a connection has joined the active set
	OnOpen func(Conn)
	// OnClose runs once when a connection leaves the active set
	OnClose func(Conn)
	Logger  *slog.Logger
}

// Registry holds the set of active live-channel connections and fans
// envelopes out to them.
//
// Architecture:
//
//	┌─────────────────────────────────────┐
//	│             Registry                │
//	├─────────────────────────────────────┤
//	│  conns: []Conn in join order        │
//	│  pending: Conn → held frames        │
//	│  mu: RWMutex                        │
//	├─────────────────────────────────────┤
//	│  Register   → pending, snapshot,    │
//	│               flush held, join      │
//	│  Broadcast  → copy under RLock,     │
//	│               send outside it       │
//	│  Unregister → idempotent leave      │
//	└─────────────────────────────────────┘
//
// Concurrency Model:
//   - A joining connection is pending while its snapshot is read and sent.
//     No lock is held across the store reads, so a slow store delays only
//     the joiner
//   - Broadcasts made while a connection is pending are held for it and
//     sent right after initial_data, under the write lock, before it joins
//     the active set. A held frame may repeat a change the snapshot
//     already shows; clients replace records by id
//   - Broadcast sends without holding the lock; Conn.Send never blocks
//   - Membership is a slice so delivery follows registration order
type Registry struct {
	source  Source
	onOpen  func(Conn)
	onClose func(Conn)
	logger  *slog.Logger
	conns   []Conn
	pending map[Conn][][]byte
	mu      sync.RWMutex
	// heldMu guards pending values while mu is held for reading
	heldMu sync.Mutex
}

// NewRegistry creates an empty registry that builds join snapshots from source.
func NewRegistry(source Source, opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		source:  source,
		onOpen:  opts.OnOpen,
		onClose: opts.OnClose,
		logger:  logger.With("component", "live.registry"),
		pending: make(map[Conn][][]byte),
	}
}

// Register sends the initial_data snapshot to conn and adds it to the
// active set.
//
// The snapshot holds every drone, the dashboard stats and the ten most
// recent alerts. If the snapshot can't be built or sent the failure is
// logged and the connection still joins, so it receives later broadcasts.
//
// Registering a connection that is already registered only re-sends the
// snapshot.
func (r *Registry) Register(ctx context.Context, conn Conn) {
	r.mu.Lock()
	rejoin := r.index(conn) >= 0
	_, joining := r.pending[conn]
	if !rejoin && !joining {
		r.pending[conn] = nil
	}
	r.mu.Unlock()

	if joining {
		r.logger.Debug("connection already joining", "conn", conn.ID())
		return
	}
	r.sendSnapshot(ctx, conn)
	if rejoin {
		return
	}

	r.mu.Lock()
	held, ok := r.pending[conn]
	if ok {
		delete(r.pending, conn)
		r.conns = append(r.conns, conn)
		if conn.IsOpen() {
			for _, frame := range held {
				if err := safeSend(conn, frame); err != nil {
					r.logger.Warn("send held frame", "conn", conn.ID(), "error", err)
					metrics.SendFailures.WithLabelValues(failureReason(err)).Inc()
				}
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		// unregistered before the snapshot was sent
		return
	}
	metrics.LiveConnections.Inc()
	r.logger.Info("connection registered", "conn", conn.ID())
	if r.onOpen != nil {
		r.onOpen(conn)
	}
}

func (r *Registry) sendSnapshot(ctx context.Context, conn Conn) {
	frame, err := r.snapshot(ctx)
	if err != nil {
		r.logger.Error("build initial snapshot", "conn", conn.ID(), "error", err)
		return
	}
	if err := safeSend(conn, frame); err != nil {
		r.logger.Warn("send initial snapshot", "conn", conn.ID(), "error", err)
		metrics.SendFailures.WithLabelValues(failureReason(err)).Inc()
	}
}

func (r *Registry) snapshot(ctx context.Context) ([]byte, error) {
	uavs, err := r.source.ListUAVs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list uavs: %w", err)
	}
	stats, err := r.source.DashboardStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	alerts, err := r.source.ListAlerts(ctx, initialAlertLimit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	env, err := NewEnvelope(TypeInitialData, InitialData{UAVs: uavs, Stats: stats, Alerts: alerts})
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unregister removes conn from the active set. Removing a connection that
// isn't registered is a no-op, so it is safe to call from every close path.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	delete(r.pending, conn)
	i := r.index(conn)
	if i >= 0 {
		r.conns = slices.Delete(r.conns, i, i+1)
	}
	r.mu.Unlock()

	if i < 0 {
		return
	}
	metrics.LiveConnections.Dec()
	r.logger.Info("connection unregistered", "conn", conn.ID())
	if r.onClose != nil {
		r.onClose(conn)
	}
}

// index must be called with mu held
func (r *Registry) index(conn Conn) int {
	return slices.IndexFunc(r.conns, func(c Conn) bool { return c == conn })
}

// Broadcast serialises env once and delivers it to every registered
// connection that is still open.
//
// Delivery is best effort and at most once: a failure on one connection is
// logged and counted and never stops delivery to the rest. Connections that
// are not open are skipped but stay registered until their close path
// unregisters them.
//
// Returns the number of connections the frame was handed to.
func (r *Registry) Broadcast(env Envelope) int {
	frame, err := json.Marshal(env)
	if err != nil {
		r.logger.Error("marshal broadcast", "type", env.Type, "error", err)
		return 0
	}
	return r.BroadcastFrame(env.Type, frame)
}

// BroadcastFrame delivers an already serialised envelope of type t.
func (r *Registry) BroadcastFrame(t MessageType, frame []byte) int {
	r.mu.RLock()
	conns := slices.Clone(r.conns)
	r.hold(frame)
	r.mu.RUnlock()
	metrics.Broadcasts.WithLabelValues(string(t)).Inc()

	delivered := 0
	for _, c := range conns {
		if !c.IsOpen() {
			continue
		}
		if err := safeSend(c, frame); err != nil {
			r.logger.Warn("broadcast send failed", "type", t, "conn", c.ID(), "error", err)
			metrics.SendFailures.WithLabelValues(failureReason(err)).Inc()
			continue
		}
		delivered++
	}
	return delivered
}

// hold keeps frame for every pending connection. mu must be held.
func (r *Registry) hold(frame []byte) {
	r.heldMu.Lock()
	defer r.heldMu.Unlock()
	for c, frames := range r.pending {
		if len(frames) >= heldFrameLimit {
			metrics.SendFailures.WithLabelValues(failureReason(ErrSendQueueFull)).Inc()
			continue
		}
		r.pending[c] = append(frames, frame)
	}
}

// Conns returns a copy of the active set in registration order
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.conns)
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes every registered connection and waits for each to
// flush and close. Their close paths
// unregister them.
func (r *Registry) CloseAll() {
	var wg sync.WaitGroup
	for _, c := range r.Conns() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Close(); err != nil {
				r.logger.Debug("close connection", "conn", c.ID(), "error", err)
			}
		}()
	}
	wg.Wait()
}

// errSendPanic marks a Send that panicked
type errSendPanic struct{ v any }

func (e errSendPanic) Error() string { return fmt.Sprintf("live: send panicked: %v", e.v) }

func safeSend(c Conn, frame []byte) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = errSendPanic{v: v}
		}
	}()
	return c.Send(frame)
}

func failureReason(err error) string {
	var p errSendPanic
	switch {
	case errors.As(err, &p):
		return "panic"
	case errors.Is(err, ErrSendQueueFull):
		return "queue_full"
	case errors.Is(err, ErrConnClosed):
		return "closed"
	}
	return "error"
}
