package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
)

func TestSeed(t *testing.T) {
	testSeed(t, NewMemoryStore())
}

func testSeed(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	seeded, err := Seed(ctx, s, now)
	require.NoError(t, err)
	require.True(t, seeded)

	uavs, err := s.ListUAVs(ctx)
	require.NoError(t, err)
	require.Len(t, uavs, 6)

	names := make([]string, len(uavs))
	for i, u := range uavs {
		names[i] = u.Name
	}
	assert.Equal(t, []string{
		"UAV-Alpha01", "UAV-Bravo02", "UAV-Charlie03",
		"UAV-Delta04", "UAV-Echo05", "UAV-Foxtrot06",
	}, names)
	assert.Equal(t, int64(2), uavs[1].ID)
	assert.Equal(t, fleet.StatusWarning, uavs[1].Status)
	assert.Equal(t, 92, uavs[0].BatteryLevel, "newest sample keeps the seeded battery level")

	t.Run("components only for flying drones", func(t *testing.T) {
		for _, u := range uavs {
			comps, err := s.ListComponents(ctx, u.ID)
			require.NoError(t, err)
			if u.Status == fleet.StatusOffline {
				assert.Empty(t, comps, u.Name)
				continue
			}
			assert.Len(t, comps, 6, u.Name)
		}

		comps, err := s.ListComponents(ctx, uavs[2].ID)
		require.NoError(t, err)
		var radio fleet.Component
		for _, c := range comps {
			if c.Type == "radio" {
				radio = c
			}
		}
		assert.Equal(t, "critical", radio.Status)
		require.NotNil(t, radio.Value)
		assert.Equal(t, 15, *radio.Value)
	})

	t.Run("thirty minutes of telemetry", func(t *testing.T) {
		tel, err := s.ListTelemetry(ctx, uavs[0].ID, 0)
		require.NoError(t, err)
		require.Len(t, tel, 30)
		assert.True(t, now.Equal(tel[0].Timestamp))
		assert.True(t, now.Add(-29*time.Minute).Equal(tel[29].Timestamp))

		tel, err = s.ListTelemetry(ctx, uavs[4].ID, 0)
		require.NoError(t, err)
		assert.Empty(t, tel)
	})

	t.Run("alerts and maintenance", func(t *testing.T) {
		alerts, err := s.ListAlerts(ctx, 10)
		require.NoError(t, err)
		require.Len(t, alerts, 3)
		assert.Equal(t, fleet.SeverityCritical, alerts[0].Severity)
		assert.Equal(t, uavs[2].ID, alerts[0].UAVID)

		upcoming, err := s.UpcomingMaintenance(ctx, now, 7)
		require.NoError(t, err)
		require.Len(t, upcoming, 1)
		assert.Equal(t, "2026-03-13", upcoming[0].ScheduledDate)
		assert.Equal(t, uavs[0].ID, upcoming[0].UAVID)
	})

	t.Run("dashboard", func(t *testing.T) {
		stats, err := s.DashboardStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, fleet.DashboardStats{ActiveUAVs: 4, OfflineUAVs: 2, ActiveAlerts: 3, AvgBattery: 66}, stats)
	})

	t.Run("second seed is a no-op", func(t *testing.T) {
		seeded, err := Seed(ctx, s, now)
		require.NoError(t, err)
		assert.False(t, seeded)

		uavs, err := s.ListUAVs(ctx)
		require.NoError(t, err)
		assert.Len(t, uavs, 6)
	})
}
