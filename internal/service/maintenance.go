package service

import (
	"context"
	"fmt"
	"time"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
)

// CreateMaintenance schedules a job and raises an info alert announcing how
// many days remain until it is due.
func (f *Fleet) CreateMaintenance(ctx context.Context, in fleet.NewMaintenance) (fleet.Maintenance, error) {
	if err := in.Validate(); err != nil {
		return fleet.Maintenance{}, err
	}
	u, err := f.store.GetUAV(ctx, in.UAVID)
	if err != nil {
		return fleet.Maintenance{}, fmt.Errorf("uav %d: %w", in.UAVID, err)
	}
	m, err := f.store.CreateMaintenance(ctx, in)
	if err != nil {
		return fleet.Maintenance{}, fmt.Errorf("store maintenance: %w", err)
	}

	days := daysUntil(f.now(), m.ScheduledDate)
	f.raiseInfo(ctx, u, fmt.Sprintf("Maintenance Due: %s scheduled maintenance due in %d days.", u.Name, days))
	return m, nil
}

// UpdateMaintenance edits a job. No alert is raised.
func (f *Fleet) UpdateMaintenance(ctx context.Context, id int64, p fleet.MaintenancePatch) (fleet.Maintenance, error) {
	if err := p.Validate(); err != nil {
		return fleet.Maintenance{}, err
	}
	return f.store.UpdateMaintenance(ctx, id, p)
}

// CompleteMaintenance marks a job done and raises an info alert.
func (f *Fleet) CompleteMaintenance(ctx context.Context, id int64) (fleet.Maintenance, error) {
	m, err := f.store.CompleteMaintenance(ctx, id, f.now())
	if err != nil {
		return fleet.Maintenance{}, err
	}
	if u, err := f.store.GetUAV(ctx, m.UAVID); err == nil {
		f.raiseInfo(ctx, u, fmt.Sprintf("Maintenance Completed: %s scheduled maintenance has been completed.", u.Name))
	}
	return m, nil
}

// DeleteMaintenance cancels a job and raises an info alert.
func (f *Fleet) DeleteMaintenance(ctx context.Context, id int64) error {
	m, err := f.store.GetMaintenance(ctx, id)
	if err != nil {
		return err
	}
	u, uavErr := f.store.GetUAV(ctx, m.UAVID)
	if err := f.store.DeleteMaintenance(ctx, id); err != nil {
		return err
	}
	if uavErr == nil {
		f.raiseInfo(ctx, u, fmt.Sprintf("Maintenance Cancelled: Scheduled maintenance for %s has been deleted.", u.Name))
	}
	return nil
}

// raiseInfo stores an info alert for u and broadcasts it. The maintenance
// change it reports is already committed, so failures are only logged.
func (f *Fleet) raiseInfo(ctx context.Context, u fleet.UAV, message string) {
	a, err := f.store.CreateAlert(ctx, fleet.NewAlert{
		UAVID:     u.ID,
		Severity:  fleet.SeverityInfo,
		Message:   message,
		Timestamp: f.now(),
	})
	if err != nil {
		f.logger.Error("store maintenance alert", "uav", u.ID, "error", err)
		return
	}
	f.notifier.AlertChanged(ctx, a)
}

// daysUntil counts UTC calendar days from now's date to date (YYYY-MM-DD).
// Past dates give a negative count.
func daysUntil(now time.Time, date string) int {
	due, err := time.Parse(fleet.DateLayout, date)
	if err != nil {
		return 0
	}
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(due.Sub(today).Round(24*time.Hour) / (24 * time.Hour))
}

// UpcomingMaintenance lists open jobs scheduled from today through
// today+days.
func (f *Fleet) UpcomingMaintenance(ctx context.Context, days int) ([]fleet.Maintenance, error) {
	return f.store.UpcomingMaintenance(ctx, f.now(), days)
}
