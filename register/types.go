// Package register holds the live state of every reporting robot and
// coordinates the notifications observers receive when that state changes.
package register

import (
	"errors"
	"time"
)

var (
	// ErrInvalidPayload rejects a report with a missing robot_id or a
	// malformed position. Nothing is stored; the robot must fix and resend.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrWaypointsRequired rejects a report from a robot whose mission is
	// not known yet. The position in that report is discarded.
	ErrWaypointsRequired = errors.New("waypoints required")
)

// Classification is the derived progress label of a waypoint.
type Classification string

const (
	Unfinished  Classification = "unfinished"
	CurrentGoal Classification = "current_goal"
	Completed   Classification = "completed"
)

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Position holds the raw GPS fix and the filtered EKF estimate.
type Position struct {
	GPS Coordinate `json:"gps"`
	EKF Coordinate `json:"ekf"`
}

// Waypoint is one stop of a mission. Its index in the mission is its identity.
type Waypoint struct {
	Lat            float64        `json:"lat"`
	Lon            float64        `json:"lon"`
	Classification Classification `json:"classification,omitempty"`
}

// Mission is an ordered waypoint list plus the index of the current goal.
type Mission struct {
	Waypoints            []Waypoint `json:"waypoints,omitempty"`
	CurrentWaypointIndex *int       `json:"current_waypoint_index,omitempty"`
}

// Known reports whether the mission has any waypoints.
func (m Mission) Known() bool {
	return len(m.Waypoints) > 0
}

func (m Mission) clone() Mission {
	var out Mission
	if m.Waypoints != nil {
		out.Waypoints = make([]Waypoint, len(m.Waypoints))
		copy(out.Waypoints, m.Waypoints)
	}
	if m.CurrentWaypointIndex != nil {
		idx := *m.CurrentWaypointIndex
		out.CurrentWaypointIndex = &idx
	}
	return out
}

// RobotState is everything the tracker knows about one robot.
type RobotState struct {
	RobotID    string    `json:"robot_id"`
	Mission    Mission   `json:"mission"`
	Position   Position  `json:"position"`
	LastUpdate time.Time `json:"last_update"`
}

// Clone returns a deep copy that shares no memory with s.
func (s RobotState) Clone() RobotState {
	s.Mission = s.Mission.clone()
	return s
}
