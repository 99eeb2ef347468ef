package engine

import "robottracker/register"

// registerEmitter bridges the register's Notifier interface to the EventBus.
type registerEmitter struct {
	bus *EventBus
}

func (e *registerEmitter) NotifyNewRobot(state register.RobotState) {
	e.bus.Emit(Event{Type: EventRobotOnline, Payload: RobotOnlineEvent{State: state}})
}

func (e *registerEmitter) NotifyRobotUpdate(state register.RobotState) {
	e.bus.Emit(Event{Type: EventRobotUpdated, Payload: RobotUpdatedEvent{State: state}})
}

func (e *registerEmitter) NotifyRobotOffline(robotID, actor string) {
	e.bus.Emit(Event{Type: EventRobotOffline, Payload: RobotOfflineEvent{RobotID: robotID, Actor: actor}})
}

func (e *registerEmitter) NotifyInitialSnapshot(states map[string]register.RobotState, target register.ObserverID) {
	e.bus.Emit(Event{Type: EventInitialSnapshot, Payload: InitialSnapshotEvent{Robots: states, Target: target}})
}

var _ register.Notifier = (*registerEmitter)(nil)
