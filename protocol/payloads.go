package protocol

import (
	"encoding/json"
	"fmt"
)

// PositionFormat selects which position payload shapes are accepted.
type PositionFormat string

const (
	// FormatStructured accepts only {gps:{lat,lon}, ekf:{lat,lon}}.
	FormatStructured PositionFormat = "structured"
	// FormatFlat accepts only {lat,lon}; the value is used for both gps and ekf.
	FormatFlat PositionFormat = "flat"
	// FormatAny accepts either shape, preferring the structured one.
	FormatAny PositionFormat = "any"
)

// ParsePositionFormat validates a configured format string. Empty means structured.
func ParsePositionFormat(s string) (PositionFormat, error) {
	switch PositionFormat(s) {
	case "", FormatStructured:
		return FormatStructured, nil
	case FormatFlat:
		return FormatFlat, nil
	case FormatAny:
		return FormatAny, nil
	}
	return "", fmt.Errorf("unknown position format %q", s)
}

// Coordinate is a lat/lon pair as sent on the wire. Pointer fields let the
// receiver tell a missing value from a zero one.
type Coordinate struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// Valid reports whether both lat and lon are present.
func (c *Coordinate) Valid() bool {
	return c != nil && c.Lat != nil && c.Lon != nil
}

// WirePosition carries both the structured (gps/ekf) and flat shapes. Which
// one is honoured depends on the configured PositionFormat.
type WirePosition struct {
	GPS *Coordinate `json:"gps,omitempty"`
	EKF *Coordinate `json:"ekf,omitempty"`
	Lat *float64    `json:"lat,omitempty"`
	Lon *float64    `json:"lon,omitempty"`
}

// WireWaypoint is a waypoint as sent by a robot. Classification is derived
// server-side, so any value the robot sends is ignored.
type WireWaypoint struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// WireMission is the optional mission block of a report.
type WireMission struct {
	Waypoints            []WireWaypoint `json:"waypoints,omitempty"`
	CurrentWaypointIndex *int           `json:"current_waypoint_index,omitempty"`
}

// RobotReport is the payload a robot sends on every update.
type RobotReport struct {
	RobotID  string        `json:"robot_id"`
	Position *WirePosition `json:"position"`
	Mission  *WireMission  `json:"mission,omitempty"`
}

// DecodeReport unmarshals a raw JSON report. Type errors (e.g. a string
// latitude) surface here as decode errors.
func DecodeReport(data []byte) (*RobotReport, error) {
	var r RobotReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// ReportAck is the reply to a report, on HTTP and on the reply topic.
type ReportAck struct {
	RobotID string `json:"robot_id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RobotEvent is published on the events topic for every observer-facing change.
type RobotEvent struct {
	RobotID string          `json:"robot_id"`
	State   json.RawMessage `json:"state,omitempty"`
}
