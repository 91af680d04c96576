package storage

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
)

// Seed loads the demo fleet into an empty store.
//
// The demo fleet is six drones (UAV-Alpha01 .. UAV-Foxtrot06), a full set
// of components plus thirty minutes of one-minute telemetry for every drone
// that is not offline, three open alerts and one routine maintenance job due
// in three days. Timestamps are relative to now.
//
// Returns false without touching the store when it already holds drones.
func Seed(ctx context.Context, s Store, now time.Time) (bool, error) {
	existing, err := s.ListUAVs(ctx)
	if err != nil {
		return false, fmt.Errorf("seed: list uavs: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	demo := []fleet.NewUAV{
		{Name: "UAV-Alpha01", Status: fleet.StatusActive, BatteryLevel: 92, SignalStrength: 98, Speed: 12, Altitude: 120, LastUpdated: now},
		{Name: "UAV-Bravo02", Status: fleet.StatusWarning, BatteryLevel: 31, SignalStrength: 85, Speed: 8, Altitude: 85, LastUpdated: now},
		{Name: "UAV-Charlie03", Status: fleet.StatusCritical, BatteryLevel: 54, SignalStrength: 15, Speed: 15, Altitude: 210, LastUpdated: now},
		{Name: "UAV-Delta04", Status: fleet.StatusActive, BatteryLevel: 87, SignalStrength: 92, Speed: 9, Altitude: 75, LastUpdated: now},
		{Name: "UAV-Echo05", Status: fleet.StatusOffline, LastUpdated: now.Add(-24 * time.Hour)},
		{Name: "UAV-Foxtrot06", Status: fleet.StatusOffline, LastUpdated: now.Add(-48 * time.Hour)},
	}

	rng := rand.New(rand.NewPCG(uint64(now.UnixNano()), 0x5eed))
	byName := make(map[string]fleet.UAV, len(demo))

	for _, in := range demo {
		u, err := s.CreateUAV(ctx, in)
		if err != nil {
			return false, fmt.Errorf("seed: create %s: %w", in.Name, err)
		}
		byName[u.Name] = u

		if u.Status == fleet.StatusOffline {
			continue
		}
		for _, c := range demoComponents(u, now) {
			if _, err := s.CreateComponent(ctx, c); err != nil {
				return false, fmt.Errorf("seed: component %s/%s: %w", u.Name, c.Type, err)
			}
		}
		for _, t := range demoTelemetry(u, now, rng) {
			if _, err := s.CreateTelemetry(ctx, t); err != nil {
				return false, fmt.Errorf("seed: telemetry %s: %w", u.Name, err)
			}
		}
	}

	alerts := []fleet.NewAlert{
		{
			UAVID:     byName["UAV-Charlie03"].ID,
			Severity:  fleet.SeverityCritical,
			Message:   "Signal Loss Detected: UAV-Charlie03 has weak signal strength (15%).",
			Timestamp: now.Add(-10 * time.Minute),
		},
		{
			UAVID:     byName["UAV-Bravo02"].ID,
			Severity:  fleet.SeverityWarning,
			Message:   "Low Battery Warning: UAV-Bravo02 battery level below 35%.",
			Timestamp: now.Add(-25 * time.Minute),
		},
		{
			UAVID:     byName["UAV-Alpha01"].ID,
			Severity:  fleet.SeverityInfo,
			Message:   "Maintenance Due: UAV-Alpha01 scheduled maintenance due in 3 days.",
			Timestamp: now.Add(-2 * time.Hour),
		},
	}
	for _, a := range alerts {
		if _, err := s.CreateAlert(ctx, a); err != nil {
			return false, fmt.Errorf("seed: alert: %w", err)
		}
	}

	_, err = s.CreateMaintenance(ctx, fleet.NewMaintenance{
		UAVID:           byName["UAV-Alpha01"].ID,
		ScheduledDate:   now.AddDate(0, 0, 3).Format(fleet.DateLayout),
		Description:     "Scheduled routine maintenance for UAV-Alpha01",
		MaintenanceType: "routine",
	})
	if err != nil {
		return false, fmt.Errorf("seed: maintenance: %w", err)
	}

	return true, nil
}

func demoComponents(u fleet.UAV, now time.Time) []fleet.NewComponent {
	gyro := fleet.NewComponent{Type: "gyroscope", Status: "normal", Details: strPtr("Calibrated and operational"), Value: intPtr(95)}
	if u.Name == "UAV-Bravo02" {
		gyro = fleet.NewComponent{Type: "gyroscope", Status: "warning", Details: strPtr("Minor calibration needed"), Value: intPtr(68)}
	}
	radio := fleet.NewComponent{Type: "radio", Status: "normal", Details: strPtr("2.4GHz connection stable"), Value: intPtr(95)}
	if u.Name == "UAV-Charlie03" {
		radio = fleet.NewComponent{Type: "radio", Status: "critical", Details: strPtr("Signal interference detected"), Value: intPtr(15)}
	}

	out := []fleet.NewComponent{
		{Type: "motor", Status: "normal", Details: strPtr("All motors functioning normally"), Value: intPtr(35)},
		{Type: "camera", Status: "normal", Details: strPtr("4K camera operational"), Value: intPtr(42)},
		{Type: "gps", Status: "normal", Details: strPtr("12 satellites connected"), Value: intPtr(85)},
		{Type: "battery", Status: "normal", Details: strPtr("5200mAh LiPo battery"), Value: intPtr(u.BatteryLevel)},
		gyro,
		radio,
	}
	for i := range out {
		out[i].UAVID = u.ID
		out[i].LastUpdated = now
	}
	return out
}

// demoTelemetry produces thirty samples one minute apart, oldest first, so
// the newest sample is the last write and the drone row ends up tracking it.
func demoTelemetry(u fleet.UAV, now time.Time, rng *rand.Rand) []fleet.NewTelemetry {
	const samples = 30
	out := make([]fleet.NewTelemetry, 0, samples)
	for i := samples - 1; i >= 0; i-- {
		variation := rng.Float64()*10 - 5
		lat := round(37.7749+variation/1000, 6)
		lon := round(-122.4194+variation/1000, 6)
		temp := round(25+variation/5, 2)

		out = append(out, fleet.NewTelemetry{
			UAVID:          u.ID,
			Timestamp:      now.Add(-time.Duration(i) * time.Minute),
			BatteryLevel:   clampPercent(float64(u.BatteryLevel) - float64(i)*0.15),
			SignalStrength: clampPercent(float64(u.SignalStrength) + variation/2),
			Speed:          round(math.Max(0, u.Speed+variation/3), 2),
			Altitude:       math.Round(math.Max(0, u.Altitude+variation)),
			Latitude:       &lat,
			Longitude:      &lon,
			Temperature:    &temp,
		})
	}
	return out
}

func clampPercent(v float64) int {
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
