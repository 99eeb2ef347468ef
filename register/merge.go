package register

import (
	"fmt"
	"time"

	"robottracker/protocol"
)

// report is a RobotReport that passed validation.
type report struct {
	robotID   string
	position  Position
	waypoints []Waypoint
	index     *int
}

// normalize validates a wire report and converts it to typed values. It never
// touches stored state, so a rejected report cannot leave anything half-applied.
func normalize(rep *protocol.RobotReport, format protocol.PositionFormat) (*report, error) {
	if rep == nil {
		return nil, fmt.Errorf("%w: empty report", ErrInvalidPayload)
	}
	if rep.RobotID == "" {
		return nil, fmt.Errorf("%w: missing robot_id", ErrInvalidPayload)
	}
	pos, err := parsePosition(rep.Position, format)
	if err != nil {
		return nil, err
	}
	out := &report{robotID: rep.RobotID, position: pos}
	if rep.Mission == nil {
		return out, nil
	}
	if len(rep.Mission.Waypoints) > 0 {
		out.waypoints = make([]Waypoint, len(rep.Mission.Waypoints))
		for i, wp := range rep.Mission.Waypoints {
			if wp.Lat == nil || wp.Lon == nil {
				return nil, fmt.Errorf("%w: waypoint %d needs lat and lon", ErrInvalidPayload, i)
			}
			out.waypoints[i] = Waypoint{Lat: *wp.Lat, Lon: *wp.Lon}
		}
	}
	if rep.Mission.CurrentWaypointIndex != nil {
		idx := *rep.Mission.CurrentWaypointIndex
		out.index = &idx
	}
	return out, nil
}

func parsePosition(p *protocol.WirePosition, format protocol.PositionFormat) (Position, error) {
	if p == nil {
		return Position{}, fmt.Errorf("%w: missing position", ErrInvalidPayload)
	}
	structured := p.GPS.Valid() && p.EKF.Valid()
	flat := p.Lat != nil && p.Lon != nil

	switch {
	case structured && format != protocol.FormatFlat:
		return Position{
			GPS: Coordinate{Lat: *p.GPS.Lat, Lon: *p.GPS.Lon},
			EKF: Coordinate{Lat: *p.EKF.Lat, Lon: *p.EKF.Lon},
		}, nil
	case flat && format != protocol.FormatStructured:
		c := Coordinate{Lat: *p.Lat, Lon: *p.Lon}
		return Position{GPS: c, EKF: c}, nil
	case format == protocol.FormatFlat:
		return Position{}, fmt.Errorf("%w: position needs lat and lon", ErrInvalidPayload)
	default:
		return Position{}, fmt.Errorf("%w: position needs gps and ekf with lat and lon", ErrInvalidPayload)
	}
}

// Merge applies rep on top of existing (nil for an unknown robot) and returns
// the resulting state and whether the robot is new. existing is not modified.
//
// A non-empty waypoint list replaces the stored mission wholesale, dropping the
// stored index unless rep carries a fresh one. If no waypoints are known after
// that, the report fails with ErrWaypointsRequired and its position is thrown
// away. Otherwise position and last update are overwritten, and a reported
// index reclassifies the stored waypoints.
func Merge(existing *RobotState, rep *protocol.RobotReport, format protocol.PositionFormat, now time.Time) (RobotState, bool, error) {
	in, err := normalize(rep, format)
	if err != nil {
		return RobotState{}, false, err
	}

	isNew := existing == nil
	var next RobotState
	if isNew {
		next = RobotState{RobotID: in.robotID}
	} else {
		next = existing.Clone()
	}

	if len(in.waypoints) > 0 {
		next.Mission = Mission{Waypoints: in.waypoints}
	}
	if !next.Mission.Known() {
		return RobotState{}, false, fmt.Errorf("mission waypoints for robot %s are missing: %w", in.robotID, ErrWaypointsRequired)
	}

	next.Position = in.position
	next.LastUpdate = now

	if in.index != nil {
		next.Mission.Waypoints = Classify(next.Mission.Waypoints, *in.index)
		idx := *in.index
		next.Mission.CurrentWaypointIndex = &idx
	}
	return next, isNew, nil
}
