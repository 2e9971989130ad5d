package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/shottracker/shottracker/pkg/core"
)

// Client to server message types.
const (
	TypeConditions  = "conditions"
	TypeHeading     = "heading"
	TypeWind        = "wind"
	TypeManualAngle = "manual_angle"
	TypePositions   = "positions"
)

// Server to client message types.
const (
	TypeSolution = "solution"
	TypeError    = "error"
	TypeAck      = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	env := Envelope{Type: msgType}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env.Payload = raw
	return env, nil
}

// Marshal builds the JSON encoding of an envelope in one step.
func Marshal(msgType string, payload any) ([]byte, error) {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// ConditionsPayload sets the shot parameters of a session. Either RifleID
// (looked up server side) or an inline Rifle must be given.
type ConditionsPayload struct {
	RifleID       string             `json:"rifle_id,omitempty"`
	Rifle         *core.RifleProfile `json:"rifle,omitempty"`
	DistanceYards float64            `json:"distance_yards"`
	WindSpeedMPH  float64            `json:"wind_speed_mph"`
}

// BearingPayload carries a compass bearing in degrees, used by heading and
// wind messages.
type BearingPayload struct {
	Bearing float64 `json:"bearing"`
}

// ManualAnglePayload sets the wind angle directly. A nil Angle clears it and
// falls back to the bearings.
type ManualAnglePayload struct {
	Angle *float64 `json:"angle"`
}

// PositionsPayload sets heading and distance from shooter and target
// positions given as "lat,lon".
type PositionsPayload struct {
	Shooter string `json:"shooter"`
	Target  string `json:"target"`
}

// SolutionPayload is the server's answer once a session has enough state.
type SolutionPayload struct {
	WindAngle    float64         `json:"wind_angle"`
	WindCategory string          `json:"wind_category"`
	Result       core.ShotResult `json:"result"`
	Layout       json.RawMessage `json:"layout"`
	DropText     string          `json:"drop_text"`
	DriftText    string          `json:"drift_text,omitempty"`
}

// ErrorPayload reports a rejected message.
type ErrorPayload struct {
	For     string `json:"for,omitempty"`
	Message string `json:"message"`
}

// AckPayload acknowledges an accepted message that did not yet produce a
// solution. Missing lists what the session still needs.
type AckPayload struct {
	For     string   `json:"for"`
	Missing []string `json:"missing,omitempty"`
}
