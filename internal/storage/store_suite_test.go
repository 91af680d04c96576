package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
)

// testStore runs the behaviour every Store backend must share.
// newStore must return an empty store.
func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mkUAV := func(t *testing.T, s Store, name string, status fleet.UAVStatus, battery int) fleet.UAV {
		t.Helper()
		u, err := s.CreateUAV(ctx, fleet.NewUAV{
			Name: name, Status: status, BatteryLevel: battery, SignalStrength: 80,
			Speed: 5, Altitude: 100, LastUpdated: base,
		})
		require.NoError(t, err)
		return u
	}

	t.Run("missing records return ErrNotFound", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetUAV(ctx, 42)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteUAV(ctx, 42), ErrNotFound)
		_, err = s.UpdateAlert(ctx, 42, fleet.AlertPatch{})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.UpdateMaintenance(ctx, 42, fleet.MaintenancePatch{})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.CompleteMaintenance(ctx, 42, base)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetMaintenance(ctx, 42)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteMaintenance(ctx, 42), ErrNotFound)
	})

	t.Run("uavs are listed by id", func(t *testing.T) {
		s := newStore(t)
		a := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)
		b := mkUAV(t, s, "UAV-B", fleet.StatusOffline, 0)

		list, err := s.ListUAVs(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, a.ID, list[0].ID)
		assert.Equal(t, b.ID, list[1].ID)
		assert.Less(t, a.ID, b.ID)
	})

	t.Run("update uav applies only set fields", func(t *testing.T) {
		s := newStore(t)
		u := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)

		status := fleet.StatusCritical
		got, err := s.UpdateUAV(ctx, u.ID, fleet.UAVPatch{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, fleet.StatusCritical, got.Status)
		assert.Equal(t, "UAV-A", got.Name)
		assert.Equal(t, 90, got.BatteryLevel)
	})

	t.Run("telemetry updates the uav row", func(t *testing.T) {
		s := newStore(t)
		u := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)

		ts := base.Add(time.Minute)
		lat := 37.77
		tel, err := s.CreateTelemetry(ctx, fleet.NewTelemetry{
			UAVID: u.ID, Timestamp: ts, BatteryLevel: 71, SignalStrength: 64,
			Speed: 11.5, Altitude: 140, Latitude: &lat,
		})
		require.NoError(t, err)
		assert.NotZero(t, tel.ID)
		require.NotNil(t, tel.Latitude)
		assert.InDelta(t, 37.77, *tel.Latitude, 1e-9)
		assert.Nil(t, tel.Longitude)

		got, err := s.GetUAV(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 71, got.BatteryLevel)
		assert.Equal(t, 64, got.SignalStrength)
		assert.InDelta(t, 11.5, got.Speed, 1e-9)
		assert.InDelta(t, 140, got.Altitude, 1e-9)
		assert.True(t, ts.Equal(got.LastUpdated), "lastUpdated should follow the sample")
	})

	t.Run("telemetry is newest first and limited", func(t *testing.T) {
		s := newStore(t)
		u := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)
		for i := 0; i < 5; i++ {
			_, err := s.CreateTelemetry(ctx, fleet.NewTelemetry{
				UAVID: u.ID, Timestamp: base.Add(time.Duration(i) * time.Minute), BatteryLevel: 90 - i,
			})
			require.NoError(t, err)
		}

		list, err := s.ListTelemetry(ctx, u.ID, 3)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, 86, list[0].BatteryLevel)
		assert.Equal(t, 87, list[1].BatteryLevel)
		assert.Equal(t, 88, list[2].BatteryLevel)

		all, err := s.ListTelemetry(ctx, u.ID, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("components", func(t *testing.T) {
		s := newStore(t)
		u := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)

		details := "12 satellites connected"
		c, err := s.CreateComponent(ctx, fleet.NewComponent{
			UAVID: u.ID, Type: "gps", Status: "normal", Details: &details, LastUpdated: base,
		})
		require.NoError(t, err)
		assert.Nil(t, c.Value)

		status := "warning"
		value := 40
		c, err = s.UpdateComponent(ctx, c.ID, fleet.ComponentPatch{Status: &status, Value: &value})
		require.NoError(t, err)
		assert.Equal(t, "warning", c.Status)
		require.NotNil(t, c.Details)
		assert.Equal(t, details, *c.Details)
		require.NotNil(t, c.Value)
		assert.Equal(t, 40, *c.Value)

		list, err := s.ListComponents(ctx, u.ID)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("alerts start open and are newest first", func(t *testing.T) {
		s := newStore(t)
		u := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)

		old, err := s.CreateAlert(ctx, fleet.NewAlert{UAVID: u.ID, Severity: fleet.SeverityInfo, Message: "old", Timestamp: base})
		require.NoError(t, err)
		recent, err := s.CreateAlert(ctx, fleet.NewAlert{UAVID: u.ID, Severity: fleet.SeverityCritical, Message: "recent", Timestamp: base.Add(time.Hour)})
		require.NoError(t, err)
		assert.False(t, old.Acknowledged)
		assert.False(t, old.Dismissed)

		list, err := s.ListAlerts(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, recent.ID, list[0].ID)
		assert.Equal(t, old.ID, list[1].ID)

		limited, err := s.ListAlerts(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("alert patch", func(t *testing.T) {
		s := newStore(t)
		u := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)
		a, err := s.CreateAlert(ctx, fleet.NewAlert{UAVID: u.ID, Severity: fleet.SeverityWarning, Message: "low battery", Timestamp: base})
		require.NoError(t, err)

		yes := true
		a, err = s.UpdateAlert(ctx, a.ID, fleet.AlertPatch{Acknowledged: &yes})
		require.NoError(t, err)
		assert.True(t, a.Acknowledged)
		assert.False(t, a.Dismissed)

		byUAV, err := s.ListAlertsByUAV(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, byUAV, 1)
		assert.True(t, byUAV[0].Acknowledged)
	})

	t.Run("maintenance lifecycle", func(t *testing.T) {
		s := newStore(t)
		u := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)

		late, err := s.CreateMaintenance(ctx, fleet.NewMaintenance{UAVID: u.ID, ScheduledDate: "2026-03-20", Description: "upgrade firmware", MaintenanceType: "upgrade"})
		require.NoError(t, err)
		soon, err := s.CreateMaintenance(ctx, fleet.NewMaintenance{UAVID: u.ID, ScheduledDate: "2026-03-13", Description: "routine check", MaintenanceType: "routine"})
		require.NoError(t, err)
		assert.Equal(t, "2026-03-13", soon.ScheduledDate)
		assert.False(t, soon.Completed)
		assert.Nil(t, soon.CompletedAt)

		list, err := s.ListMaintenance(ctx, 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, soon.ID, list[0].ID)
		assert.Equal(t, late.ID, list[1].ID)

		upcoming, err := s.UpcomingMaintenance(ctx, base, 7)
		require.NoError(t, err)
		require.Len(t, upcoming, 1)
		assert.Equal(t, soon.ID, upcoming[0].ID)

		got, err := s.GetMaintenance(ctx, late.ID)
		require.NoError(t, err)
		assert.Equal(t, "upgrade firmware", got.Description)

		desc := "routine check and calibration"
		patched, err := s.UpdateMaintenance(ctx, soon.ID, fleet.MaintenancePatch{Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, desc, patched.Description)
		assert.Equal(t, "routine", patched.MaintenanceType)

		done, err := s.CompleteMaintenance(ctx, soon.ID, base.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, done.Completed)
		require.NotNil(t, done.CompletedAt)
		assert.True(t, base.Add(time.Hour).Equal(*done.CompletedAt))

		upcoming, err = s.UpcomingMaintenance(ctx, base, 7)
		require.NoError(t, err)
		assert.Empty(t, upcoming)

		require.NoError(t, s.DeleteMaintenance(ctx, late.ID))
		byUAV, err := s.ListMaintenanceByUAV(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, byUAV, 1)
		assert.Equal(t, soon.ID, byUAV[0].ID)
	})

	t.Run("upcoming window is inclusive on both ends", func(t *testing.T) {
		s := newStore(t)
		u := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)
		for _, d := range []string{"2026-03-09", "2026-03-10", "2026-03-17", "2026-03-18"} {
			_, err := s.CreateMaintenance(ctx, fleet.NewMaintenance{UAVID: u.ID, ScheduledDate: d, Description: d, MaintenanceType: "routine"})
			require.NoError(t, err)
		}

		upcoming, err := s.UpcomingMaintenance(ctx, base, 7)
		require.NoError(t, err)
		require.Len(t, upcoming, 2)
		assert.Equal(t, "2026-03-10", upcoming[0].ScheduledDate)
		assert.Equal(t, "2026-03-17", upcoming[1].ScheduledDate)
	})

	t.Run("upcoming window uses the UTC date of from", func(t *testing.T) {
		s := newStore(t)
		u := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)
		for _, d := range []string{"2025-12-31", "2026-01-07", "2026-01-08"} {
			_, err := s.CreateMaintenance(ctx, fleet.NewMaintenance{UAVID: u.ID, ScheduledDate: d, Description: d, MaintenanceType: "routine"})
			require.NoError(t, err)
		}

		// Jan 1 08:00 at UTC+10 is Dec 31 22:00 UTC
		from := time.Date(2026, 1, 1, 8, 0, 0, 0, time.FixedZone("UTC+10", 10*3600))
		upcoming, err := s.UpcomingMaintenance(ctx, from, 7)
		require.NoError(t, err)
		require.Len(t, upcoming, 2)
		assert.Equal(t, "2025-12-31", upcoming[0].ScheduledDate)
		assert.Equal(t, "2026-01-07", upcoming[1].ScheduledDate)
	})

	t.Run("delete uav cascades", func(t *testing.T) {
		s := newStore(t)
		keep := mkUAV(t, s, "UAV-Keep", fleet.StatusActive, 90)
		gone := mkUAV(t, s, "UAV-Gone", fleet.StatusWarning, 30)

		for _, u := range []fleet.UAV{keep, gone} {
			_, err := s.CreateTelemetry(ctx, fleet.NewTelemetry{UAVID: u.ID, Timestamp: base, BatteryLevel: 50})
			require.NoError(t, err)
			_, err = s.CreateComponent(ctx, fleet.NewComponent{UAVID: u.ID, Type: "motor", Status: "normal", LastUpdated: base})
			require.NoError(t, err)
			_, err = s.CreateAlert(ctx, fleet.NewAlert{UAVID: u.ID, Severity: fleet.SeverityInfo, Message: u.Name, Timestamp: base})
			require.NoError(t, err)
			_, err = s.CreateMaintenance(ctx, fleet.NewMaintenance{UAVID: u.ID, ScheduledDate: "2026-03-11", Description: u.Name, MaintenanceType: "routine"})
			require.NoError(t, err)
		}

		require.NoError(t, s.DeleteUAV(ctx, gone.ID))

		_, err := s.GetUAV(ctx, gone.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		tel, err := s.ListTelemetry(ctx, gone.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, tel)
		comps, err := s.ListComponents(ctx, gone.ID)
		require.NoError(t, err)
		assert.Empty(t, comps)
		maint, err := s.ListMaintenance(ctx, 0)
		require.NoError(t, err)
		require.Len(t, maint, 1)
		assert.Equal(t, keep.ID, maint[0].UAVID)

		alerts, err := s.ListAlerts(ctx, 0)
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, keep.ID, alerts[0].UAVID)
	})

	t.Run("dashboard stats", func(t *testing.T) {
		s := newStore(t)

		stats, err := s.DashboardStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, fleet.DashboardStats{}, stats, "empty fleet has avgBattery 0")

		a := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)
		mkUAV(t, s, "UAV-B", fleet.StatusWarning, 31)
		mkUAV(t, s, "UAV-C", fleet.StatusCritical, 54)
		mkUAV(t, s, "UAV-D", fleet.StatusOffline, 0)

		open, err := s.CreateAlert(ctx, fleet.NewAlert{UAVID: a.ID, Severity: fleet.SeverityInfo, Message: "open", Timestamp: base})
		require.NoError(t, err)
		acked, err := s.CreateAlert(ctx, fleet.NewAlert{UAVID: a.ID, Severity: fleet.SeverityInfo, Message: "acked", Timestamp: base})
		require.NoError(t, err)
		dismissed, err := s.CreateAlert(ctx, fleet.NewAlert{UAVID: a.ID, Severity: fleet.SeverityInfo, Message: "dismissed", Timestamp: base})
		require.NoError(t, err)
		yes := true
		_, err = s.UpdateAlert(ctx, acked.ID, fleet.AlertPatch{Acknowledged: &yes})
		require.NoError(t, err)
		_, err = s.UpdateAlert(ctx, dismissed.ID, fleet.AlertPatch{Dismissed: &yes})
		require.NoError(t, err)
		_ = open

		stats, err = s.DashboardStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.ActiveUAVs)
		assert.Equal(t, 1, stats.OfflineUAVs)
		assert.Equal(t, 1, stats.ActiveAlerts)
		assert.Equal(t, 58, stats.AvgBattery) // (90+31+54)/3 = 58.33
	})

	t.Run("concurrent telemetry ingestion", func(t *testing.T) {
		s := newStore(t)
		u := mkUAV(t, s, "UAV-A", fleet.StatusActive, 90)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.CreateTelemetry(ctx, fleet.NewTelemetry{
					UAVID: u.ID, Timestamp: base.Add(time.Duration(i) * time.Second), BatteryLevel: i,
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		all, err := s.ListTelemetry(ctx, u.ID, 0)
		require.NoError(t, err)
		assert.Len(t, all, 20)
	})
}
