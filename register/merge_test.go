package register

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"robottracker/protocol"
)

var mergeTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestMergeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		rep  *protocol.RobotReport
	}{
		{"nil report", nil},
		{"missing robot_id", at("", 1, 1)},
		{"missing position", &protocol.RobotReport{RobotID: "r1"}},
		{"gps only", &protocol.RobotReport{
			RobotID:  "r1",
			Position: &protocol.WirePosition{GPS: &protocol.Coordinate{Lat: ptr(1.0), Lon: ptr(1.0)}},
		}},
		{"ekf without lon", &protocol.RobotReport{
			RobotID: "r1",
			Position: &protocol.WirePosition{
				GPS: &protocol.Coordinate{Lat: ptr(1.0), Lon: ptr(1.0)},
				EKF: &protocol.Coordinate{Lat: ptr(1.0)},
			},
		}},
		{"flat when structured required", &protocol.RobotReport{
			RobotID:  "r1",
			Position: &protocol.WirePosition{Lat: ptr(1.0), Lon: ptr(1.0)},
		}},
		{"waypoint without lat", func() *protocol.RobotReport {
			rep := at("r1", 1, 1)
			rep.Mission = &protocol.WireMission{Waypoints: []protocol.WireWaypoint{{Lon: ptr(2.0)}}}
			return rep
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Merge(nil, tt.rep, protocol.FormatStructured, mergeTime)
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("err = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestMergePositionFormats(t *testing.T) {
	flat := &protocol.RobotReport{
		RobotID:  "r1",
		Position: &protocol.WirePosition{Lat: ptr(5.0), Lon: ptr(6.0)},
	}
	withMission(flat, nil, [2]float64{0, 0})

	state, _, err := Merge(nil, flat, protocol.FormatFlat, mergeTime)
	if err != nil {
		t.Fatalf("flat under FormatFlat: %v", err)
	}
	want := Position{GPS: Coordinate{5, 6}, EKF: Coordinate{5, 6}}
	if state.Position != want {
		t.Errorf("position = %+v, want %+v", state.Position, want)
	}

	if _, _, err := Merge(nil, flat, protocol.FormatAny, mergeTime); err != nil {
		t.Errorf("flat under FormatAny: %v", err)
	}

	structured := withMission(at("r1", 1, 2), nil, [2]float64{0, 0})
	if _, _, err := Merge(nil, structured, protocol.FormatFlat, mergeTime); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("structured under FormatFlat: err = %v, want ErrInvalidPayload", err)
	}
	if _, _, err := Merge(nil, structured, protocol.FormatAny, mergeTime); err != nil {
		t.Errorf("structured under FormatAny: %v", err)
	}
}

func TestMergeRequiresMission(t *testing.T) {
	_, _, err := Merge(nil, at("r1", 1, 1), protocol.FormatStructured, mergeTime)
	if !errors.Is(err, ErrWaypointsRequired) {
		t.Fatalf("err = %v, want ErrWaypointsRequired", err)
	}

	// An index alone does not make a mission known.
	_, _, err = Merge(nil, withMission(at("r1", 1, 1), ptr(0)), protocol.FormatStructured, mergeTime)
	if !errors.Is(err, ErrWaypointsRequired) {
		t.Fatalf("index only: err = %v, want ErrWaypointsRequired", err)
	}
}

func TestMergeReplacesWaypointsWholesale(t *testing.T) {
	existing := RobotState{
		RobotID: "r1",
		Mission: Mission{
			Waypoints:            Classify([]Waypoint{{Lat: 0}, {Lat: 1}, {Lat: 2}}, 2),
			CurrentWaypointIndex: ptr(2),
		},
		LastUpdate: mergeTime.Add(-time.Minute),
	}

	rep := withMission(at("r1", 9, 9), nil, [2]float64{7, 7}, [2]float64{8, 8})
	next, isNew, err := Merge(&existing, rep, protocol.FormatStructured, mergeTime)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if isNew {
		t.Error("isNew = true for an existing robot")
	}
	want := Mission{Waypoints: []Waypoint{{Lat: 7, Lon: 7}, {Lat: 8, Lon: 8}}}
	if diff := cmp.Diff(want, next.Mission); diff != "" {
		t.Errorf("mission mismatch (-want +got):\n%s", diff)
	}
	if !next.LastUpdate.Equal(mergeTime) {
		t.Errorf("last_update = %v, want %v", next.LastUpdate, mergeTime)
	}
	if existing.Mission.CurrentWaypointIndex == nil || *existing.Mission.CurrentWaypointIndex != 2 {
		t.Error("existing state was modified")
	}
}

func TestMergeEmptyWaypointsKeepsMission(t *testing.T) {
	existing := RobotState{
		RobotID: "r1",
		Mission: Mission{Waypoints: []Waypoint{{Lat: 0}, {Lat: 1}}},
	}
	rep := at("r1", 2, 2)
	rep.Mission = &protocol.WireMission{Waypoints: []protocol.WireWaypoint{}}

	next, _, err := Merge(&existing, rep, protocol.FormatStructured, mergeTime)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(next.Mission.Waypoints) != 2 {
		t.Errorf("waypoints = %d, want 2", len(next.Mission.Waypoints))
	}
}

func TestMergeWithoutIndexLeavesUnclassified(t *testing.T) {
	rep := withMission(at("r1", 1, 1), nil, [2]float64{0, 0})
	next, _, err := Merge(nil, rep, protocol.FormatStructured, mergeTime)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if c := next.Mission.Waypoints[0].Classification; c != "" {
		t.Errorf("classification = %q, want none until an index is reported", c)
	}
}
