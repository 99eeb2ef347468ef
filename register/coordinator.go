package register

import (
	"log"

	"robottracker/protocol"
)

// ObserverID identifies one connected observer.
type ObserverID string

// Notifier is how the register tells the outside world about changes. Every
// method is fire-and-forget and must not block: it runs after the register
// lock is released but while later notifications wait their turn.
type Notifier interface {
	NotifyNewRobot(state RobotState)
	NotifyRobotUpdate(state RobotState)
	// NotifyRobotOffline announces a removal. actor names who evicted the
	// robot; it is empty when the sweeper timed it out.
	NotifyRobotOffline(robotID, actor string)
	NotifyInitialSnapshot(states map[string]RobotState, target ObserverID)
}

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...any)

// Coordinator pairs every register mutation with its notifications.
type Coordinator struct {
	reg      *Register
	notifier Notifier
	logFn    LogFunc
}

// NewCoordinator creates a coordinator. A nil logFn logs with log.Printf.
func NewCoordinator(reg *Register, notifier Notifier, logFn LogFunc) *Coordinator {
	if logFn == nil {
		logFn = log.Printf
	}
	return &Coordinator{reg: reg, notifier: notifier, logFn: logFn}
}

// Register returns the underlying register.
func (c *Coordinator) Register() *Register { return c.reg }

// Report applies one robot report. On success observers get new_robot (first
// report only) followed by robot_update. Rejections notify nobody.
func (c *Coordinator) Report(rep *protocol.RobotReport) (RobotState, bool, error) {
	state, isNew, release, err := c.reg.upsertSeq(rep)
	if err != nil {
		return RobotState{}, false, err
	}
	defer release()

	if isNew {
		c.logFn("register: new robot online: %s", state.RobotID)
		deliver(c.logFn, "new_robot", state.RobotID, func() { c.notifier.NotifyNewRobot(state.Clone()) })
	}
	deliver(c.logFn, "robot_update", state.RobotID, func() { c.notifier.NotifyRobotUpdate(state.Clone()) })
	return state, isNew, nil
}

// ObserverConnected sends the current snapshot to one observer. The observer
// must already be subscribed to broadcasts so nothing committed after the
// snapshot is missed.
func (c *Coordinator) ObserverConnected(target ObserverID) {
	states, release := c.reg.snapshotSeq()
	defer release()
	deliver(c.logFn, "initial_snapshot", string(target), func() { c.notifier.NotifyInitialSnapshot(states, target) })
}

// Evict removes a robot on request of actor and announces it offline. It
// reports whether the robot was tracked.
func (c *Coordinator) Evict(robotID, actor string) bool {
	ok, release := c.reg.removeSeq(robotID)
	defer release()
	if !ok {
		return false
	}
	c.logFn("register: robot %s evicted by %s", robotID, actor)
	deliver(c.logFn, "robot_offline", robotID, func() { c.notifier.NotifyRobotOffline(robotID, actor) })
	return true
}

// deliver runs one notification, containing a panicking notifier so the
// committed change and the remaining notifications are unaffected.
func deliver(logFn LogFunc, event, subject string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logFn("register: %s notification for %s failed: %v", event, subject, r)
		}
	}()
	fn()
}
