package messaging

import (
	"encoding/json"
	"fmt"

	"robottracker/protocol"
)

// EventPublisher publishes observer-facing robot events to the events topic
// so consumers outside the web UI can follow the fleet.
type EventPublisher struct {
	client *Client
	topic  string
	self   protocol.Address
}

func NewEventPublisher(client *Client, topic, trackerID string) *EventPublisher {
	return &EventPublisher{
		client: client,
		topic:  topic,
		self:   protocol.Address{Role: protocol.RoleTracker, ID: trackerID},
	}
}

// Publish sends one event. state may be nil (offline events carry none).
func (p *EventPublisher) Publish(msgType, robotID string, state any) error {
	env, err := p.Envelope(msgType, robotID, state)
	if err != nil {
		return err
	}
	return p.client.PublishEnvelope(p.topic, robotID, env)
}

// Envelope builds the envelope Publish would send.
func (p *EventPublisher) Envelope(msgType, robotID string, state any) (*protocol.Envelope, error) {
	ev := protocol.RobotEvent{RobotID: robotID}
	if state != nil {
		raw, err := json.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("encode %s state for %s: %w", msgType, robotID, err)
		}
		ev.State = raw
	}
	return protocol.NewEnvelope(msgType, p.self, protocol.Address{Role: protocol.RoleObserver}, &ev)
}
