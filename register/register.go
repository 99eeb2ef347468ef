package register

import (
	"sort"
	"sync"
	"time"

	"robottracker/protocol"
)

// Option configures a Register.
type Option func(*Register)

// WithPositionFormat sets which position shapes Upsert accepts.
func WithPositionFormat(f protocol.PositionFormat) Option {
	return func(r *Register) { r.format = f }
}

// WithClock overrides the time source used to stamp LastUpdate.
func WithClock(now func() time.Time) Option {
	return func(r *Register) { r.now = now }
}

// Register is the in-memory store of robot states. One mutex guards the map
// for the whole of every operation; values handed out are always deep copies.
//
// seq orders the notification phase of the operations that notify, so
// notifications leave in the order their mutations committed. mu itself is
// never held across a notification.
type Register struct {
	mu     sync.Mutex
	robots map[string]RobotState
	format protocol.PositionFormat
	now    func() time.Time

	seq sync.Mutex
}

// New creates an empty Register accepting structured positions by default.
func New(opts ...Option) *Register {
	r := &Register{
		robots: make(map[string]RobotState),
		format: protocol.FormatStructured,
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetPositionFormat changes the accepted position shape for later reports.
func (r *Register) SetPositionFormat(f protocol.PositionFormat) {
	r.mu.Lock()
	r.format = f
	r.mu.Unlock()
}

// PositionFormat returns the accepted position shape.
func (r *Register) PositionFormat() protocol.PositionFormat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format
}

// Upsert validates and merges rep into the stored state of its robot. It
// returns a copy of the stored state and whether this is the first accepted
// report since the robot was created or last evicted. Rejections wrap
// ErrInvalidPayload or ErrWaypointsRequired and leave the register untouched.
func (r *Register) Upsert(rep *protocol.RobotReport) (RobotState, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing *RobotState
	if rep != nil {
		if s, ok := r.robots[rep.RobotID]; ok {
			existing = &s
		}
	}
	next, isNew, err := Merge(existing, rep, r.format, r.now())
	if err != nil {
		return RobotState{}, false, err
	}
	r.robots[next.RobotID] = next
	return next.Clone(), isNew, nil
}

// Get returns a copy of one robot's state.
func (r *Register) Get(robotID string) (RobotState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.robots[robotID]
	if !ok {
		return RobotState{}, false
	}
	return s.Clone(), true
}

// Snapshot returns copies of all current robot states keyed by robot ID.
func (r *Register) Snapshot() map[string]RobotState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]RobotState, len(r.robots))
	for id, s := range r.robots {
		out[id] = s.Clone()
	}
	return out
}

// Len returns the number of tracked robots.
func (r *Register) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.robots)
}

// EvictStale removes every robot whose last update is more than timeout
// before now and returns their IDs in sorted order.
func (r *Register) EvictStale(now time.Time, timeout time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, s := range r.robots {
		if now.Sub(s.LastUpdate) > timeout {
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	for _, id := range evicted {
		delete(r.robots, id)
	}
	return evicted
}

// Remove deletes one robot regardless of its age. It reports whether the
// robot was present.
func (r *Register) Remove(robotID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.robots[robotID]; !ok {
		return false
	}
	delete(r.robots, robotID)
	return true
}

// The *Seq variants take seq, run the operation, and hand seq back to the
// caller as a release func. The caller notifies and then releases, so commit
// order and notification order match. seq is taken before mu: a notifier may
// read the register but must not call back into a *Seq operation.

func (r *Register) upsertSeq(rep *protocol.RobotReport) (RobotState, bool, func(), error) {
	r.seq.Lock()
	state, isNew, err := r.Upsert(rep)
	if err != nil {
		r.seq.Unlock()
		return RobotState{}, false, nil, err
	}
	return state, isNew, r.seq.Unlock, nil
}

func (r *Register) evictSeq(now time.Time, timeout time.Duration) ([]string, func()) {
	r.seq.Lock()
	return r.EvictStale(now, timeout), r.seq.Unlock
}

func (r *Register) removeSeq(robotID string) (bool, func()) {
	r.seq.Lock()
	return r.Remove(robotID), r.seq.Unlock
}

func (r *Register) snapshotSeq() (map[string]RobotState, func()) {
	r.seq.Lock()
	return r.Snapshot(), r.seq.Unlock
}
