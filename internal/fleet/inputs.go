package fleet

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is wrapped by every validation failure returned from this package.
var ErrInvalid = errors.New("invalid record")

// fleetValidate is shared by all insert and patch types.
var fleetValidate *validator.Validate

func init() {
	fleetValidate = validator.New()
	_ = fleetValidate.RegisterValidation("isodate", validateISODate)
}

// validateISODate accepts YYYY-MM-DD calendar dates.
func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}

func check(v any) error {
	if err := fleetValidate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// NewUAV is the insert payload for a drone.
type NewUAV struct {
	LastUpdated    time.Time `json:"lastUpdated"`
	Name           string    `json:"name" validate:"required,max=64"`
	Status         UAVStatus `json:"status" validate:"required,oneof=active warning critical offline"`
	Speed          float64   `json:"speed" validate:"gte=0"`
	Altitude       float64   `json:"altitude" validate:"gte=0"`
	BatteryLevel   int       `json:"batteryLevel" validate:"gte=0,lte=100"`
	SignalStrength int       `json:"signalStrength" validate:"gte=0,lte=100"`
}

// Validate checks the payload. A zero LastUpdated is filled with now.
func (n *NewUAV) Validate(now time.Time) error {
	if n.LastUpdated.IsZero() {
		n.LastUpdated = now
	}
	return check(n)
}

// UAVPatch updates selected drone fields. Nil fields are left unchanged.
type UAVPatch struct {
	LastUpdated    *time.Time `json:"lastUpdated,omitempty"`
	Name           *string    `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	Status         *UAVStatus `json:"status,omitempty" validate:"omitempty,oneof=active warning critical offline"`
	Speed          *float64   `json:"speed,omitempty" validate:"omitempty,gte=0"`
	Altitude       *float64   `json:"altitude,omitempty" validate:"omitempty,gte=0"`
	BatteryLevel   *int       `json:"batteryLevel,omitempty" validate:"omitempty,gte=0,lte=100"`
	SignalStrength *int       `json:"signalStrength,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// Validate checks the patch.
func (p *UAVPatch) Validate() error {
	return check(p)
}

// Apply copies every set field onto u.
func (p UAVPatch) Apply(u *UAV) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.BatteryLevel != nil {
		u.BatteryLevel = *p.BatteryLevel
	}
	if p.SignalStrength != nil {
		u.SignalStrength = *p.SignalStrength
	}
	if p.Speed != nil {
		u.Speed = *p.Speed
	}
	if p.Altitude != nil {
		u.Altitude = *p.Altitude
	}
	if p.LastUpdated != nil {
		u.LastUpdated = *p.LastUpdated
	}
}

// NewTelemetry is the insert payload for a telemetry sample. It arrives from
// the REST simulate endpoint and from live-channel "telemetry" messages.
type NewTelemetry struct {
	Timestamp      time.Time `json:"timestamp"`
	Latitude       *float64  `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64  `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Temperature    *float64  `json:"temperature,omitempty"`
	Speed          float64   `json:"speed" validate:"gte=0"`
	Altitude       float64   `json:"altitude" validate:"gte=0"`
	UAVID          int64     `json:"uavId" validate:"required,gt=0"`
	BatteryLevel   int       `json:"batteryLevel" validate:"gte=0,lte=100"`
	SignalStrength int       `json:"signalStrength" validate:"gte=0,lte=100"`
}

// Validate checks the payload. A zero Timestamp is filled with now.
func (n *NewTelemetry) Validate(now time.Time) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
	return check(n)
}

// NewComponent is the insert payload for a component health record.
type NewComponent struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Details     *string   `json:"details,omitempty"`
	Value       *int      `json:"value,omitempty"`
	Type        string    `json:"type" validate:"required,oneof=motor camera gps battery gyroscope radio"`
	Status      string    `json:"status" validate:"required,oneof=normal warning critical"`
	UAVID       int64     `json:"uavId" validate:"required,gt=0"`
}

// Validate checks the payload. A zero LastUpdated is filled with now.
func (n *NewComponent) Validate(now time.Time) error {
	if n.LastUpdated.IsZero() {
		n.LastUpdated = now
	}
	return check(n)
}

// ComponentPatch updates a component's health. Nil fields are left unchanged.
type ComponentPatch struct {
	Details *string `json:"details,omitempty"`
	Value   *int    `json:"value,omitempty"`
	Status  *string `json:"status,omitempty" validate:"omitempty,oneof=normal warning critical"`
}

// Validate checks the patch.
func (p *ComponentPatch) Validate() error {
	return check(p)
}

// NewAlert is the insert payload for an alert. Acknowledged and dismissed
// always start false regardless of what the caller sends.
type NewAlert struct {
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity" validate:"required,oneof=info warning critical"`
	Message   string    `json:"message" validate:"required,max=1024"`
	UAVID     int64     `json:"uavId" validate:"required,gt=0"`
}

// Validate checks the payload. A zero Timestamp is filled with now.
func (n *NewAlert) Validate(now time.Time) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
	return check(n)
}

// AlertPatch acknowledges or dismisses an alert.
type AlertPatch struct {
	Acknowledged *bool `json:"acknowledged,omitempty"`
	Dismissed    *bool `json:"dismissed,omitempty"`
}

// Apply copies every set field onto a.
func (p AlertPatch) Apply(a *Alert) {
	if p.Acknowledged != nil {
		a.Acknowledged = *p.Acknowledged
	}
	if p.Dismissed != nil {
		a.Dismissed = *p.Dismissed
	}
}

// NewMaintenance is the insert payload for a maintenance record.
type NewMaintenance struct {
	ScheduledDate   string `json:"scheduledDate" validate:"required,isodate"`
	Description     string `json:"description" validate:"required,max=1024"`
	MaintenanceType string `json:"maintenanceType" validate:"required,oneof=routine emergency upgrade"`
	UAVID           int64  `json:"uavId" validate:"required,gt=0"`
	Completed       bool   `json:"completed"`
}

// Validate checks the payload.
func (n *NewMaintenance) Validate() error {
	return check(n)
}

// MaintenancePatch updates selected maintenance fields.
type MaintenancePatch struct {
	ScheduledDate   *string `json:"scheduledDate,omitempty" validate:"omitempty,isodate"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=1024"`
	MaintenanceType *string `json:"maintenanceType,omitempty" validate:"omitempty,oneof=routine emergency upgrade"`
	Completed       *bool   `json:"completed,omitempty"`
}

// Validate checks the patch.
func (p *MaintenancePatch) Validate() error {
	return check(p)
}

// Apply copies every set field onto m.
func (p MaintenancePatch) Apply(m *Maintenance) {
	if p.ScheduledDate != nil {
		m.ScheduledDate = *p.ScheduledDate
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.MaintenanceType != nil {
		m.MaintenanceType = *p.MaintenanceType
	}
	if p.Completed != nil {
		m.Completed = *p.Completed
	}
}
