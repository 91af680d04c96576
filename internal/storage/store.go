package storage

import (
	"context"
	"errors"
	"time"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
)

// ErrNotFound is returned when the requested record doesn't exist
var ErrNotFound = errors.New("record not found")

// Store defines the persistence contract for fleet data.
// All implementations must be safe for concurrent use.
// Mutating methods return the record as persisted.
type Store interface {
	// ListUAVs returns every drone ordered by id
	ListUAVs(ctx context.Context) ([]fleet.UAV, error)
	// GetUAV returns ErrNotFound if the drone doesn't exist
	GetUAV(ctx context.Context, id int64) (fleet.UAV, error)
	CreateUAV(ctx context.Context, in fleet.NewUAV) (fleet.UAV, error)
	UpdateUAV(ctx context.Context, id int64, p fleet.UAVPatch) (fleet.UAV, error)
	// DeleteUAV removes the drone and its telemetry, components, alerts
	// and maintenance records
	DeleteUAV(ctx context.Context, id int64) error

	// ListTelemetry returns samples newest first; limit <= 0 means all
	ListTelemetry(ctx context.Context, uavID int64, limit int) ([]fleet.Telemetry, error)
	// CreateTelemetry stores the sample and copies its readings onto the drone
	CreateTelemetry(ctx context.Context, in fleet.NewTelemetry) (fleet.Telemetry, error)

	ListComponents(ctx context.Context, uavID int64) ([]fleet.Component, error)
	CreateComponent(ctx context.Context, in fleet.NewComponent) (fleet.Component, error)
	UpdateComponent(ctx context.Context, id int64, p fleet.ComponentPatch) (fleet.Component, error)

	// ListAlerts returns alerts newest first; limit <= 0 means all
	ListAlerts(ctx context.Context, limit int) ([]fleet.Alert, error)
	ListAlertsByUAV(ctx context.Context, uavID int64) ([]fleet.Alert, error)
	// CreateAlert always stores the alert unacknowledged and undismissed
	CreateAlert(ctx context.Context, in fleet.NewAlert) (fleet.Alert, error)
	UpdateAlert(ctx context.Context, id int64, p fleet.AlertPatch) (fleet.Alert, error)

	// ListMaintenance returns records by scheduled date; limit <= 0 means all
	ListMaintenance(ctx context.Context, limit int) ([]fleet.Maintenance, error)
	ListMaintenanceByUAV(ctx context.Context, uavID int64) ([]fleet.Maintenance, error)
	GetMaintenance(ctx context.Context, id int64) (fleet.Maintenance, error)
	// UpcomingMaintenance returns open records scheduled between from and
	// from+days, both calendar days inclusive
	UpcomingMaintenance(ctx context.Context, from time.Time, days int) ([]fleet.Maintenance, error)
	CreateMaintenance(ctx context.Context, in fleet.NewMaintenance) (fleet.Maintenance, error)
	UpdateMaintenance(ctx context.Context, id int64, p fleet.MaintenancePatch) (fleet.Maintenance, error)
	CompleteMaintenance(ctx context.Context, id int64, at time.Time) (fleet.Maintenance, error)
	DeleteMaintenance(ctx context.Context, id int64) error

	DashboardStats(ctx context.Context) (fleet.DashboardStats, error)

	Close() error
}

// upcomingWindow returns the inclusive [start, end] date strings for an
// upcoming-maintenance query. Dates are UTC calendar days.
func upcomingWindow(from time.Time, days int) (string, string) {
	from = from.UTC()
	return from.Format(fleet.DateLayout), from.AddDate(0, 0, days).Format(fleet.DateLayout)
}
