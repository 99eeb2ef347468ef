package engine

import (
	"time"

	"robottracker/register"
)

const (
	EventRobotOnline EventType = iota + 1
	EventRobotUpdated
	EventRobotOffline
	EventInitialSnapshot
	EventTrackerReconfigured
	EventMessagingConnected
	EventMessagingDisconnected
)

// --- Event payloads ---

type RobotOnlineEvent struct {
	State register.RobotState
}

type RobotUpdatedEvent struct {
	State register.RobotState
}

// RobotOfflineEvent carries the evicting actor; empty means an inactivity timeout.
type RobotOfflineEvent struct {
	RobotID string
	Actor   string
}

// InitialSnapshotEvent is meant for one observer only; broadcast sinks ignore it.
type InitialSnapshotEvent struct {
	Robots map[string]register.RobotState
	Target register.ObserverID
}

type TrackerReconfiguredEvent struct {
	SweepInterval     time.Duration
	InactivityTimeout time.Duration
	PositionFormat    string
}

type ConnectionEvent struct {
	Detail string
}
