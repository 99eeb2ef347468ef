package engine

import (
	"context"
	"time"

	"robottracker/protocol"
)

const sinkQueueSize = 1024

func (e *Engine) wireEventHandlers() {
	robotEvents := []EventType{EventRobotOnline, EventRobotUpdated, EventRobotOffline}

	if e.debug {
		e.Events.SubscribeTypes(func(evt Event) {
			switch ev := evt.Payload.(type) {
			case RobotOnlineEvent:
				e.logFn("engine: robot %s online", ev.State.RobotID)
			case RobotUpdatedEvent:
				e.logFn("engine: robot %s at %.6f,%.6f", ev.State.RobotID, ev.State.Position.EKF.Lat, ev.State.Position.EKF.Lon)
			case RobotOfflineEvent:
				e.logFn("engine: robot %s offline", ev.RobotID)
			}
		}, robotEvents...)
	}

	// Robot registry and audit trail
	if e.db != nil {
		s := e.addSink("registry", func(evt Event) {
			switch ev := evt.Payload.(type) {
			case RobotOnlineEvent:
				if err := e.db.RecordRobotOnline(ev.State.RobotID); err != nil {
					e.logFn("engine: registry online %s: %v", ev.State.RobotID, err)
				}
				e.db.AppendAudit("robot", ev.State.RobotID, "online", "", "", "system")
			case RobotUpdatedEvent:
				pos := ev.State.Position.EKF
				if err := e.db.TouchRobot(ev.State.RobotID, pos.Lat, pos.Lon); err != nil {
					e.logFn("engine: registry touch %s: %v", ev.State.RobotID, err)
				}
			case RobotOfflineEvent:
				if err := e.db.RecordRobotOffline(ev.RobotID); err != nil {
					e.logFn("engine: registry offline %s: %v", ev.RobotID, err)
				}
				action, actor := "timed_out", "system"
				if ev.Actor != "" {
					action, actor = "evicted", ev.Actor
				}
				e.db.AppendAudit("robot", ev.RobotID, action, "online", "offline", actor)
			}
		})
		e.Events.SubscribeTypes(s.push, robotEvents...)
	}

	// Redis read model
	if e.cache != nil {
		s := e.addSink("statecache", func(evt Event) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			switch ev := evt.Payload.(type) {
			case RobotUpdatedEvent:
				if err := e.cache.PutRobot(ctx, ev.State); err != nil {
					e.logFn("engine: cache put %s: %v", ev.State.RobotID, err)
				}
			case RobotOfflineEvent:
				if err := e.cache.RemoveRobot(ctx, ev.RobotID); err != nil {
					e.logFn("engine: cache remove %s: %v", ev.RobotID, err)
				}
			}
		})
		e.Events.SubscribeTypes(s.push, EventRobotUpdated, EventRobotOffline)
	}
}

// wirePublisher forwards robot events to the events topic while messaging is
// connected.
func (e *Engine) wirePublisher() {
	s := e.addSink("publisher", func(evt Event) {
		if !e.msgClient.IsConnected() {
			return
		}
		var (
			msgType, robotID string
			state            any
		)
		switch ev := evt.Payload.(type) {
		case RobotOnlineEvent:
			msgType, robotID, state = protocol.TypeRobotOnline, ev.State.RobotID, ev.State
		case RobotUpdatedEvent:
			msgType, robotID, state = protocol.TypeRobotUpdate, ev.State.RobotID, ev.State
		case RobotOfflineEvent:
			msgType, robotID = protocol.TypeRobotOffline, ev.RobotID
		default:
			return
		}
		if err := e.publisher.Publish(msgType, robotID, state); err != nil {
			e.logFn("engine: publish %s for %s: %v", msgType, robotID, err)
		}
	})
	e.Events.SubscribeTypes(s.push, EventRobotOnline, EventRobotUpdated, EventRobotOffline)
}

func (e *Engine) addSink(name string, handle func(Event)) *sink {
	s := newSink(name, sinkQueueSize, e.logFn, handle)
	e.sinks = append(e.sinks, s)
	return s
}
