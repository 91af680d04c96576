// Package service sequences fleet writes with their live-channel broadcasts.
//
// Every mutating operation commits to the store first and broadcasts second.
// A broadcast never fails the operation that triggered it.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
	"github.com/madiyar29925/UavHealthTracker12/internal/storage"
)

// Notifier receives committed changes. live.Broadcaster satisfies it.
type Notifier interface {
	UAVUpdated(ctx context.Context, id int64)
	AlertChanged(ctx context.Context, alert fleet.Alert)
	UAVDeleted(ctx context.Context, id int64, name string)
}

// TelemetrySink mirrors ingested telemetry to a time-series store.
type TelemetrySink interface {
	WriteTelemetry(ctx context.Context, t fleet.Telemetry) error
}

// Options holds the optional collaborators of a Fleet.
type Options struct {
	Sink   TelemetrySink
	Now    func() time.Time
	Logger *slog.Logger
}

// Fleet is the write path shared by the REST API and the live channel.
type Fleet struct {
	store    storage.Store
	notifier Notifier
	sink     TelemetrySink
	now      func() time.Time
	logger   *slog.Logger
}

func NewFleet(store storage.Store, notifier Notifier, opts Options) *Fleet {
	f := &Fleet{
		store:    store,
		notifier: notifier,
		sink:     opts.Sink,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "service.fleet")
	return f
}

// Store exposes the underlying store for read-only handlers
func (f *Fleet) Store() storage.Store { return f.store }

// IngestTelemetry validates and stores a telemetry sample, mirrors it to the
// sink and broadcasts the drone's refreshed record as uav_update.
//
// Returns an error wrapping fleet.ErrInvalid for a bad payload and
// storage.ErrNotFound when the drone doesn't exist.
func (f *Fleet) IngestTelemetry(ctx context.Context, in fleet.NewTelemetry) (fleet.Telemetry, error) {
	if err := in.Validate(f.now()); err != nil {
		return fleet.Telemetry{}, err
	}
	if _, err := f.store.GetUAV(ctx, in.UAVID); err != nil {
		return fleet.Telemetry{}, fmt.Errorf("uav %d: %w", in.UAVID, err)
	}
	t, err := f.store.CreateTelemetry(ctx, in)
	if err != nil {
		return fleet.Telemetry{}, fmt.Errorf("store telemetry: %w", err)
	}

	if f.sink != nil {
		if err := f.sink.WriteTelemetry(ctx, t); err != nil {
			f.logger.Warn("telemetry mirror failed", "uav", t.UAVID, "error", err)
		}
	}
	f.notifier.UAVUpdated(ctx, t.UAVID)
	return t, nil
}

// CreateAlert validates and stores an alert and broadcasts it as new_alert.
func (f *Fleet) CreateAlert(ctx context.Context, in fleet.NewAlert) (fleet.Alert, error) {
	if err := in.Validate(f.now()); err != nil {
		return fleet.Alert{}, err
	}
	if _, err := f.store.GetUAV(ctx, in.UAVID); err != nil {
		return fleet.Alert{}, fmt.Errorf("uav %d: %w", in.UAVID, err)
	}
	a, err := f.store.CreateAlert(ctx, in)
	if err != nil {
		return fleet.Alert{}, fmt.Errorf("store alert: %w", err)
	}
	f.notifier.AlertChanged(ctx, a)
	return a, nil
}

// UpdateUAV applies an operator edit to a drone and broadcasts the new
// record as uav_update. LastUpdated defaults to now when the patch leaves
// it unset.
func (f *Fleet) UpdateUAV(ctx context.Context, id int64, p fleet.UAVPatch) (fleet.UAV, error) {
	if err := p.Validate(); err != nil {
		return fleet.UAV{}, err
	}
	if p.LastUpdated == nil {
		now := f.now()
		p.LastUpdated = &now
	}
	u, err := f.store.UpdateUAV(ctx, id, p)
	if err != nil {
		return fleet.UAV{}, err
	}
	f.notifier.UAVUpdated(ctx, u.ID)
	return u, nil
}

// UpdateComponent records a component health change. No live message
// carries components, so nothing is broadcast.
func (f *Fleet) UpdateComponent(ctx context.Context, id int64, p fleet.ComponentPatch) (fleet.Component, error) {
	if err := p.Validate(); err != nil {
		return fleet.Component{}, err
	}
	return f.store.UpdateComponent(ctx, id, p)
}

// UpdateAlert acknowledges or dismisses an alert and broadcasts the updated
// record as new_alert.
func (f *Fleet) UpdateAlert(ctx context.Context, id int64, p fleet.AlertPatch) (fleet.Alert, error) {
	a, err := f.store.UpdateAlert(ctx, id, p)
	if err != nil {
		return fleet.Alert{}, err
	}
	f.notifier.AlertChanged(ctx, a)
	return a, nil
}

// Deletion describes a removed drone.
type Deletion struct {
	UAV                fleet.UAV
	MaintenanceRemoved int
}

// Message is the human readable summary returned by the REST API
func (d Deletion) Message() string {
	msg := fmt.Sprintf("UAV %s has been successfully deleted", d.UAV.Name)
	switch {
	case d.MaintenanceRemoved == 1:
		msg += ", along with 1 maintenance record"
	case d.MaintenanceRemoved > 1:
		msg += fmt.Sprintf(", along with %d maintenance records", d.MaintenanceRemoved)
	}
	return msg
}

// DeleteUAV removes a drone with all its records and broadcasts uav_deleted.
func (f *Fleet) DeleteUAV(ctx context.Context, id int64) (Deletion, error) {
	u, err := f.store.GetUAV(ctx, id)
	if err != nil {
		return Deletion{}, err
	}
	records, err := f.store.ListMaintenanceByUAV(ctx, id)
	if err != nil {
		return Deletion{}, fmt.Errorf("count maintenance: %w", err)
	}
	if err := f.store.DeleteUAV(ctx, id); err != nil {
		return Deletion{}, err
	}

	f.logger.Info("uav deleted", "uav", id, "name", u.Name, "maintenance", len(records))
	f.notifier.UAVDeleted(ctx, id, u.Name)
	return Deletion{UAV: u, MaintenanceRemoved: len(records)}, nil
}
