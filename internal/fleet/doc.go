// Package fleet defines the domain records of the UAV health tracker: drones,
// telemetry samples, component health, alerts, maintenance records and the
// dashboard aggregate.
//
// # Records and payloads
//
// Persisted records (UAV, Telemetry, Component, Alert, Maintenance) carry the
// identifiers assigned by the store. Insert payloads (NewUAV, NewTelemetry,
// NewComponent, NewAlert, NewMaintenance) are what callers hand to the store
// and are checked with go-playground/validator before persistence. Patch
// payloads use pointer fields so that "not sent" and "set to zero" differ.
//
// # Wire format
//
// JSON field names are camelCase and match what browser clients already
// consume: "uavId", "batteryLevel", "lastUpdated" and so on. Optional numeric
// fields are pointers and encode as null when absent.
//
// # Validation
//
//	in := fleet.NewTelemetry{UAVID: 3, BatteryLevel: 54, SignalStrength: 15}
//	if err := in.Validate(time.Now()); err != nil {
//	    // errors.Is(err, fleet.ErrInvalid)
//	}
//
// Validate fills zero timestamps with the supplied time so that devices may
// omit them.
package fleet
