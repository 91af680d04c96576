package live

import (
	"encoding/json"
	"fmt"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
)

// MessageType names the kind of an envelope.
type MessageType string

const (
	// server to client
	TypeInitialData MessageType = "initial_data"
	TypeUAVUpdate   MessageType = "uav_update"
	TypeNewAlert    MessageType = "new_alert"
	TypeUAVDeleted  MessageType = "uav_deleted"
	TypePong        MessageType = "pong"

	// client to server
	TypePing      MessageType = "ping"
	TypeTelemetry MessageType = "telemetry"
	TypeAlert     MessageType = "alert"
)

// Envelope is the one message shape carried by the live channel in both
// directions. Payload is omitted for ping and pong.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope of type t.
// A nil payload produces an envelope without one.
func NewEnvelope(t MessageType, payload any) (Envelope, error) {
	env := Envelope{Type: t}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	env.Payload = raw
	return env, nil
}

// HasPayload reports whether the envelope carries a non-null payload
func (e Envelope) HasPayload() bool {
	return len(e.Payload) > 0 && string(e.Payload) != "null"
}

// InitialData is the snapshot sent to a connection when it joins.
type InitialData struct {
	UAVs   []fleet.UAV          `json:"uavs"`
	Stats  fleet.DashboardStats `json:"stats"`
	Alerts []fleet.Alert        `json:"alerts"`
}

// UAVDeleted is the payload of a uav_deleted envelope.
type UAVDeleted struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// pongFrame is sent verbatim in reply to every ping
var pongFrame = []byte(`{"type":"pong"}`)

// PingFrame is what clients send to probe the channel
var PingFrame = []byte(`{"type":"ping"}`)
