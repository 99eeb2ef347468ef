package register

import (
	"sync"
	"time"

	"robottracker/protocol"
)

func ptr[T any](v T) *T { return &v }

// at builds a structured report with identical gps and ekf fixes.
func at(id string, lat, lon float64) *protocol.RobotReport {
	return &protocol.RobotReport{
		RobotID: id,
		Position: &protocol.WirePosition{
			GPS: &protocol.Coordinate{Lat: ptr(lat), Lon: ptr(lon)},
			EKF: &protocol.Coordinate{Lat: ptr(lat), Lon: ptr(lon)},
		},
	}
}

// withMission attaches waypoints (pairs of lat, lon) and an optional index.
func withMission(rep *protocol.RobotReport, index *int, coords ...[2]float64) *protocol.RobotReport {
	m := &protocol.WireMission{CurrentWaypointIndex: index}
	for _, c := range coords {
		m.Waypoints = append(m.Waypoints, protocol.WireWaypoint{Lat: ptr(c[0]), Lon: ptr(c[1])})
	}
	rep.Mission = m
	return rep
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mockNotifier records notifications as "kind:subject" strings.
type mockNotifier struct {
	mu        sync.Mutex
	events    []string
	states    []RobotState
	snapshots map[ObserverID]map[string]RobotState
	panicOn   string
}

func (n *mockNotifier) record(ev string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	if n.panicOn != "" && ev == n.panicOn {
		panic("notifier exploded on " + ev)
	}
}

func (n *mockNotifier) NotifyNewRobot(s RobotState) {
	n.record("new_robot:" + s.RobotID)
}

func (n *mockNotifier) NotifyRobotUpdate(s RobotState) {
	n.mu.Lock()
	n.states = append(n.states, s)
	n.mu.Unlock()
	n.record("robot_update:" + s.RobotID)
}

func (n *mockNotifier) NotifyRobotOffline(id, actor string) {
	if actor != "" {
		n.record("robot_offline:" + id + ":" + actor)
		return
	}
	n.record("robot_offline:" + id)
}

func (n *mockNotifier) NotifyInitialSnapshot(states map[string]RobotState, target ObserverID) {
	n.mu.Lock()
	if n.snapshots == nil {
		n.snapshots = make(map[ObserverID]map[string]RobotState)
	}
	n.snapshots[target] = states
	n.mu.Unlock()
	n.record("initial_snapshot:" + string(target))
}

func (n *mockNotifier) getEvents() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := make([]string, len(n.events))
	copy(cp, n.events)
	return cp
}

func (n *mockNotifier) waitFor(event string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, ev := range n.getEvents() {
			if ev == event {
				return true
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func (n *mockNotifier) count(event string) int {
	c := 0
	for _, ev := range n.getEvents() {
		if ev == event {
			c++
		}
	}
	return c
}

func discardLog(string, ...any) {}
