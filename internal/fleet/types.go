package fleet

import "time"

// UAVStatus is the operational state reported for a drone.
type UAVStatus string

const (
	StatusActive   UAVStatus = "active"
	StatusWarning  UAVStatus = "warning"
	StatusCritical UAVStatus = "critical"
	StatusOffline  UAVStatus = "offline"
)

// InService reports whether a drone with this status counts as active on the
// dashboard. Warning and critical drones are still flying.
func (s UAVStatus) InService() bool {
	return s == StatusActive || s == StatusWarning || s == StatusCritical
}

// Severity classifies an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// UAV is the current summary of one drone. The battery, signal, speed and
// altitude fields track the most recent telemetry sample.
type UAV struct {
	LastUpdated    time.Time `json:"lastUpdated"`
	Name           string    `json:"name"`
	Status         UAVStatus `json:"status"`
	Speed          float64   `json:"speed"`    // m/s
	Altitude       float64   `json:"altitude"` // meters
	ID             int64     `json:"id"`
	BatteryLevel   int       `json:"batteryLevel"`   // percent
	SignalStrength int       `json:"signalStrength"` // percent
}

// Telemetry is one persisted telemetry sample.
type Telemetry struct {
	Timestamp      time.Time `json:"timestamp"`
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	Temperature    *float64  `json:"temperature"`
	Speed          float64   `json:"speed"`
	Altitude       float64   `json:"altitude"`
	ID             int64     `json:"id"`
	UAVID          int64     `json:"uavId"`
	BatteryLevel   int       `json:"batteryLevel"`
	SignalStrength int       `json:"signalStrength"`
}

// Component is the health record of one drone subsystem
// (motor, camera, gps, battery, gyroscope, radio).
type Component struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Details     *string   `json:"details"`
	Value       *int      `json:"value"`
	Type        string    `json:"type"`
	Status      string    `json:"status"` // normal, warning, critical
	ID          int64     `json:"id"`
	UAVID       int64     `json:"uavId"`
}

// Alert is a persisted alert. Alerts are never deleted on their own; they
// are acknowledged or dismissed.
type Alert struct {
	Timestamp    time.Time `json:"timestamp"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	ID           int64     `json:"id"`
	UAVID        int64     `json:"uavId"`
	Acknowledged bool      `json:"acknowledged"`
	Dismissed    bool      `json:"dismissed"`
}

// Active reports whether the alert still needs operator attention.
func (a Alert) Active() bool {
	return !a.Acknowledged && !a.Dismissed
}

// Maintenance is a scheduled maintenance record. ScheduledDate is a calendar
// date in YYYY-MM-DD form.
type Maintenance struct {
	CreatedAt       time.Time  `json:"createdAt"`
	CompletedAt     *time.Time `json:"completedAt"`
	ScheduledDate   string     `json:"scheduledDate"`
	Description     string     `json:"description"`
	MaintenanceType string     `json:"maintenanceType"` // routine, emergency, upgrade
	ID              int64      `json:"id"`
	UAVID           int64      `json:"uavId"`
	Completed       bool       `json:"completed"`
}

// DashboardStats is the fleet-wide aggregate shown on the dashboard.
// The JSON names match what dashboard clients already read.
type DashboardStats struct {
	ActiveUAVs   int `json:"activeUavs"`
	OfflineUAVs  int `json:"offlineUavs"`
	ActiveAlerts int `json:"activeAlerts"`
	AvgBattery   int `json:"avgBattery"`
}

// DateLayout is the layout of Maintenance.ScheduledDate.
const DateLayout = "2006-01-02"
