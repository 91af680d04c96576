package live

import (
	"context"
	"errors"
	"log/slog"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
	"github.com/madiyar29925/UavHealthTracker12/internal/storage"
)

// Publisher forwards locally originated envelopes to other server instances.
// Publish must not block on the network.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Broadcaster turns committed domain changes into live-channel envelopes.
// None of its methods report failure: the write that triggered a broadcast
// has already been committed.
type Broadcaster struct {
	registry *Registry
	source   Source
	relay    Publisher
	logger   *slog.Logger
}

// NewBroadcaster creates a Broadcaster delivering through registry.
// relay may be nil for a single-instance deployment.
func NewBroadcaster(registry *Registry, source Source, relay Publisher, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		registry: registry,
		source:   source,
		relay:    relay,
		logger:   logger.With("component", "live.broadcaster"),
	}
}

// UAVUpdated re-reads the drone and broadcasts its full record as
// uav_update. Nothing is sent if the drone no longer exists.
func (b *Broadcaster) UAVUpdated(ctx context.Context, id int64) {
	uav, err := b.source.GetUAV(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.logger.Debug("uav_update skipped, uav gone", "uav", id)
			return
		}
		b.logger.Warn("uav_update refetch failed", "uav", id, "error", err)
		return
	}
	b.publish(ctx, TypeUAVUpdate, uav)
}

// AlertChanged broadcasts the alert as new_alert. Updates to an existing
// alert use the same type so clients replace the record by id.
func (b *Broadcaster) AlertChanged(ctx context.Context, alert fleet.Alert) {
	b.publish(ctx, TypeNewAlert, alert)
}

// UAVDeleted broadcasts uav_deleted with the drone's id and name
func (b *Broadcaster) UAVDeleted(ctx context.Context, id int64, name string) {
	b.publish(ctx, TypeUAVDeleted, UAVDeleted{ID: id, Name: name})
}

func (b *Broadcaster) publish(ctx context.Context, t MessageType, payload any) {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		b.logger.Error("build envelope", "type", t, "error", err)
		return
	}
	n := b.registry.Broadcast(env)
	b.logger.Debug("broadcast", "type", t, "delivered", n)

	if b.relay == nil {
		return
	}
	if err := b.relay.Publish(ctx, env); err != nil {
		b.logger.Warn("relay publish failed", "type", t, "error", err)
	}
}
