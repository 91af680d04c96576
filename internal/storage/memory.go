package storage

import (
	"cmp"
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
	"golang.org/x/exp/slices"
)

// MemoryStore implements Store with in-memory maps.
// Uses sync.RWMutex for thread-safe concurrent access.
// Records are stored and returned by value so callers never share state.
type MemoryStore struct {
	uavs        map[int64]fleet.UAV
	telemetry   map[int64]fleet.Telemetry
	components  map[int64]fleet.Component
	alerts      map[int64]fleet.Alert
	maintenance map[int64]fleet.Maintenance
	now         func() time.Time
	seq         sequences
	mu          sync.RWMutex
}

// sequences hands out ids per table the way a serial column does:
// starting at 1 and never reused after a delete
type sequences struct {
	uav, telemetry, component, alert, maintenance int64
}

func nextID(counter *int64) int64 {
	*counter++
	return *counter
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		uavs:        make(map[int64]fleet.UAV),
		telemetry:   make(map[int64]fleet.Telemetry),
		components:  make(map[int64]fleet.Component),
		alerts:      make(map[int64]fleet.Alert),
		maintenance: make(map[int64]fleet.Maintenance),
		now:         time.Now,
	}
}

func (m *MemoryStore) ListUAVs(_ context.Context) ([]fleet.UAV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fleet.UAV, 0, len(m.uavs))
	for _, u := range m.uavs {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b fleet.UAV) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryStore) GetUAV(_ context.Context, id int64) (fleet.UAV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.uavs[id]
	if !ok {
		return fleet.UAV{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) CreateUAV(_ context.Context, in fleet.NewUAV) (fleet.UAV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := fleet.UAV{
		ID:             nextID(&m.seq.uav),
		Name:           in.Name,
		Status:         in.Status,
		BatteryLevel:   in.BatteryLevel,
		SignalStrength: in.SignalStrength,
		Speed:          in.Speed,
		Altitude:       in.Altitude,
		LastUpdated:    in.LastUpdated,
	}
	m.uavs[u.ID] = u
	return u, nil
}

func (m *MemoryStore) UpdateUAV(_ context.Context, id int64, p fleet.UAVPatch) (fleet.UAV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.uavs[id]
	if !ok {
		return fleet.UAV{}, ErrNotFound
	}
	p.Apply(&u)
	m.uavs[id] = u
	return u, nil
}

// DeleteUAV removes the drone and every record that references it
func (m *MemoryStore) DeleteUAV(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.uavs[id]; !ok {
		return ErrNotFound
	}
	for k, t := range m.telemetry {
		if t.UAVID == id {
			delete(m.telemetry, k)
		}
	}
	for k, c := range m.components {
		if c.UAVID == id {
			delete(m.components, k)
		}
	}
	for k, a := range m.alerts {
		if a.UAVID == id {
			delete(m.alerts, k)
		}
	}
	for k, r := range m.maintenance {
		if r.UAVID == id {
			delete(m.maintenance, k)
		}
	}
	delete(m.uavs, id)
	return nil
}

func (m *MemoryStore) ListTelemetry(_ context.Context, uavID int64, limit int) ([]fleet.Telemetry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fleet.Telemetry, 0)
	for _, t := range m.telemetry {
		if t.UAVID == uavID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b fleet.Telemetry) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return truncate(out, limit), nil
}

// CreateTelemetry stores the sample and updates the drone summary in the
// same critical section so readers never see one without the other
func (m *MemoryStore) CreateTelemetry(_ context.Context, in fleet.NewTelemetry) (fleet.Telemetry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := fleet.Telemetry{
		ID:             nextID(&m.seq.telemetry),
		UAVID:          in.UAVID,
		Timestamp:      in.Timestamp,
		BatteryLevel:   in.BatteryLevel,
		SignalStrength: in.SignalStrength,
		Speed:          in.Speed,
		Altitude:       in.Altitude,
		Latitude:       copyPtr(in.Latitude),
		Longitude:      copyPtr(in.Longitude),
		Temperature:    copyPtr(in.Temperature),
	}
	m.telemetry[t.ID] = t

	if u, ok := m.uavs[in.UAVID]; ok {
		u.BatteryLevel = in.BatteryLevel
		u.SignalStrength = in.SignalStrength
		u.Speed = in.Speed
		u.Altitude = in.Altitude
		u.LastUpdated = in.Timestamp
		m.uavs[u.ID] = u
	}
	return t, nil
}

func (m *MemoryStore) ListComponents(_ context.Context, uavID int64) ([]fleet.Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fleet.Component, 0)
	for _, c := range m.components {
		if c.UAVID == uavID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b fleet.Component) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryStore) CreateComponent(_ context.Context, in fleet.NewComponent) (fleet.Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := fleet.Component{
		ID:          nextID(&m.seq.component),
		UAVID:       in.UAVID,
		Type:        in.Type,
		Status:      in.Status,
		Details:     copyPtr(in.Details),
		Value:       copyPtr(in.Value),
		LastUpdated: in.LastUpdated,
	}
	m.components[c.ID] = c
	return c, nil
}

func (m *MemoryStore) UpdateComponent(_ context.Context, id int64, p fleet.ComponentPatch) (fleet.Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.components[id]
	if !ok {
		return fleet.Component{}, ErrNotFound
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Details != nil {
		c.Details = copyPtr(p.Details)
	}
	if p.Value != nil {
		c.Value = copyPtr(p.Value)
	}
	c.LastUpdated = m.now()
	m.components[id] = c
	return c, nil
}

func (m *MemoryStore) ListAlerts(_ context.Context, limit int) ([]fleet.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fleet.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, a)
	}
	sortAlertsNewestFirst(out)
	return truncate(out, limit), nil
}

func (m *MemoryStore) ListAlertsByUAV(_ context.Context, uavID int64) ([]fleet.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fleet.Alert, 0)
	for _, a := range m.alerts {
		if a.UAVID == uavID {
			out = append(out, a)
		}
	}
	sortAlertsNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) CreateAlert(_ context.Context, in fleet.NewAlert) (fleet.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := fleet.Alert{
		ID:        nextID(&m.seq.alert),
		UAVID:     in.UAVID,
		Severity:  in.Severity,
		Message:   in.Message,
		Timestamp: in.Timestamp,
	}
	m.alerts[a.ID] = a
	return a, nil
}

func (m *MemoryStore) UpdateAlert(_ context.Context, id int64, p fleet.AlertPatch) (fleet.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return fleet.Alert{}, ErrNotFound
	}
	p.Apply(&a)
	m.alerts[id] = a
	return a, nil
}

func (m *MemoryStore) ListMaintenance(_ context.Context, limit int) ([]fleet.Maintenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fleet.Maintenance, 0, len(m.maintenance))
	for _, r := range m.maintenance {
		out = append(out, copyMaintenance(r))
	}
	sortMaintenanceByDate(out)
	return truncate(out, limit), nil
}

func (m *MemoryStore) ListMaintenanceByUAV(_ context.Context, uavID int64) ([]fleet.Maintenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fleet.Maintenance, 0)
	for _, r := range m.maintenance {
		if r.UAVID == uavID {
			out = append(out, copyMaintenance(r))
		}
	}
	sortMaintenanceByDate(out)
	return out, nil
}

func (m *MemoryStore) GetMaintenance(_ context.Context, id int64) (fleet.Maintenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.maintenance[id]
	if !ok {
		return fleet.Maintenance{}, ErrNotFound
	}
	return copyMaintenance(r), nil
}

func (m *MemoryStore) UpcomingMaintenance(_ context.Context, from time.Time, days int) ([]fleet.Maintenance, error) {
	start, end := upcomingWindow(from, days)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fleet.Maintenance, 0)
	for _, r := range m.maintenance {
		// YYYY-MM-DD strings order the same way as the dates they encode
		if !r.Completed && r.ScheduledDate >= start && r.ScheduledDate <= end {
			out = append(out, copyMaintenance(r))
		}
	}
	sortMaintenanceByDate(out)
	return out, nil
}

func (m *MemoryStore) CreateMaintenance(_ context.Context, in fleet.NewMaintenance) (fleet.Maintenance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := fleet.Maintenance{
		ID:              nextID(&m.seq.maintenance),
		UAVID:           in.UAVID,
		ScheduledDate:   in.ScheduledDate,
		Description:     in.Description,
		Completed:       in.Completed,
		MaintenanceType: in.MaintenanceType,
		CreatedAt:       m.now(),
	}
	m.maintenance[r.ID] = r
	return r, nil
}

func (m *MemoryStore) UpdateMaintenance(_ context.Context, id int64, p fleet.MaintenancePatch) (fleet.Maintenance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.maintenance[id]
	if !ok {
		return fleet.Maintenance{}, ErrNotFound
	}
	p.Apply(&r)
	m.maintenance[id] = r
	return copyMaintenance(r), nil
}

func (m *MemoryStore) CompleteMaintenance(_ context.Context, id int64, at time.Time) (fleet.Maintenance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.maintenance[id]
	if !ok {
		return fleet.Maintenance{}, ErrNotFound
	}
	r.Completed = true
	r.CompletedAt = &at
	m.maintenance[id] = r
	return copyMaintenance(r), nil
}

// DeleteMaintenance returns ErrNotFound if the record doesn't exist
func (m *MemoryStore) DeleteMaintenance(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.maintenance[id]; !ok {
		return ErrNotFound
	}
	delete(m.maintenance, id)
	return nil
}

func (m *MemoryStore) DashboardStats(_ context.Context) (fleet.DashboardStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats fleet.DashboardStats
	batterySum := 0
	for _, u := range m.uavs {
		switch {
		case u.Status.InService():
			stats.ActiveUAVs++
			batterySum += u.BatteryLevel
		case u.Status == fleet.StatusOffline:
			stats.OfflineUAVs++
		}
	}
	for _, a := range m.alerts {
		if a.Active() {
			stats.ActiveAlerts++
		}
	}
	if stats.ActiveUAVs > 0 {
		stats.AvgBattery = int(math.Round(float64(batterySum) / float64(stats.ActiveUAVs)))
	}
	return stats, nil
}

// Close is a no-op for the memory store
func (m *MemoryStore) Close() error { return nil }

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyMaintenance(r fleet.Maintenance) fleet.Maintenance {
	r.CompletedAt = copyPtr(r.CompletedAt)
	return r
}

func sortAlertsNewestFirst(alerts []fleet.Alert) {
	slices.SortFunc(alerts, func(a, b fleet.Alert) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

func sortMaintenanceByDate(records []fleet.Maintenance) {
	slices.SortFunc(records, func(a, b fleet.Maintenance) int {
		if c := strings.Compare(a.ScheduledDate, b.ScheduledDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
