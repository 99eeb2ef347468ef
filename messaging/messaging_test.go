package messaging

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"robottracker/config"
	"robottracker/protocol"
	"robottracker/register"
)

func disabledClient() *Client {
	return NewClient(&config.MessagingConfig{Backend: "none"})
}

func TestDisabledClient(t *testing.T) {
	c := disabledClient()
	if c.Enabled() {
		t.Error("Enabled = true for backend none")
	}
	if err := c.Connect(); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect err = %v, want ErrDisabled", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected = true for backend none")
	}
	if err := c.Publish("t", "", []byte("x")); !errors.Is(err, ErrDisabled) {
		t.Errorf("Publish err = %v, want ErrDisabled", err)
	}
	c.Close()
}

func TestUnknownBackend(t *testing.T) {
	c := NewClient(&config.MessagingConfig{Backend: "carrier-pigeon"})
	if err := c.Connect(); err == nil || errors.Is(err, ErrDisabled) {
		t.Errorf("Connect err = %v, want unknown backend error", err)
	}
}

func TestSubscribeRemembersHandler(t *testing.T) {
	c := disabledClient()
	c.Subscribe("robots.reports", func(string, []byte) {})
	c.mu.RLock()
	_, ok := c.handlers["robots.reports"]
	c.mu.RUnlock()
	if !ok {
		t.Error("handler should be kept for restore after reconnect")
	}
}

func TestReconfigureKeepsSubscriptions(t *testing.T) {
	c := disabledClient()
	c.Subscribe("robots.reports", func(string, []byte) {})

	err := c.Reconfigure(&config.MessagingConfig{Backend: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if c.Backend() != "carrier-pigeon" {
		t.Errorf("Backend = %q, want carrier-pigeon", c.Backend())
	}

	if err := c.Reconfigure(&config.MessagingConfig{Backend: "none"}); !errors.Is(err, ErrDisabled) {
		t.Errorf("Reconfigure err = %v, want ErrDisabled", err)
	}
	c.mu.RLock()
	_, ok := c.handlers["robots.reports"]
	c.mu.RUnlock()
	if !ok {
		t.Error("subscription lost across reconfigure")
	}
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []*protocol.RobotReport
	err     error
}

func (f *fakeReporter) Report(rep *protocol.RobotReport) (register.RobotState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, rep)
	return register.RobotState{RobotID: rep.RobotID}, true, f.err
}

func reportEnvelope(t *testing.T, dstID string) []byte {
	t.Helper()
	lat, lon := 1.0, 2.0
	env, err := protocol.NewEnvelope(protocol.TypeRobotReport,
		protocol.Address{Role: protocol.RoleRobot, ID: "r1"},
		protocol.Address{Role: protocol.RoleTracker, ID: dstID},
		&protocol.RobotReport{
			RobotID:  "r1",
			Position: &protocol.WirePosition{Lat: &lat, Lon: &lon},
		})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestReportListenerFeedsReporter(t *testing.T) {
	rep := &fakeReporter{err: register.ErrWaypointsRequired}
	l := NewReportListener(disabledClient(), rep, "robots.reports", "robots.replies.", "tracker")

	l.ingestor.HandleRaw(reportEnvelope(t, ""))
	l.ingestor.HandleRaw(reportEnvelope(t, "tracker"))
	l.ingestor.HandleRaw(reportEnvelope(t, "some-other-tracker"))

	rep.mu.Lock()
	defer rep.mu.Unlock()
	if len(rep.reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(rep.reports))
	}
	if rep.reports[0].RobotID != "r1" || *rep.reports[0].Position.Lat != 1 {
		t.Errorf("report = %+v", rep.reports[0])
	}
}

type sentAck struct {
	topic string
	key   string
	env   protocol.Envelope
}

// fakeReplies records published acks. While gate is non-nil every publish
// waits for it to be closed.
type fakeReplies struct {
	mu   sync.Mutex
	sent []sentAck
	gate chan struct{}
}

func (f *fakeReplies) PublishEnvelope(topic, key string, env interface{ Encode() ([]byte, error) }) error {
	if f.gate != nil {
		<-f.gate
	}
	data, err := env.Encode()
	if err != nil {
		return err
	}
	var decoded protocol.Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentAck{topic: topic, key: key, env: decoded})
	f.mu.Unlock()
	return nil
}

func (f *fakeReplies) waitFor(n int, timeout time.Duration) []sentAck {
	deadline := time.Now().Add(timeout)
	for {
		f.mu.Lock()
		got := append([]sentAck(nil), f.sent...)
		f.mu.Unlock()
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReportListenerPublishesAck(t *testing.T) {
	replies := &fakeReplies{}
	l := NewReportListener(disabledClient(), &fakeReporter{err: register.ErrWaypointsRequired}, "robots.reports", "robots.replies.", "tracker")
	l.replies = replies
	defer l.Stop()

	raw := reportEnvelope(t, "")
	var in protocol.Envelope
	json.Unmarshal(raw, &in)
	l.ingestor.HandleRaw(raw)

	sent := replies.waitFor(1, 2*time.Second)
	if len(sent) != 1 {
		t.Fatalf("acks = %d, want 1", len(sent))
	}
	if sent[0].topic != "robots.replies.r1" || sent[0].key != "r1" {
		t.Errorf("ack topic/key = %q/%q, want robots.replies.r1/r1", sent[0].topic, sent[0].key)
	}
	if sent[0].env.CorID != in.ID {
		t.Errorf("cor = %q, want %q", sent[0].env.CorID, in.ID)
	}
	var ack protocol.ReportAck
	if err := sent[0].env.DecodePayload(&ack); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if ack.Status != protocol.StatusWaypointsRequired {
		t.Errorf("status = %q, want waypoints_required", ack.Status)
	}
}

func TestReportListenerDoesNotBlockOnPublish(t *testing.T) {
	replies := &fakeReplies{gate: make(chan struct{})}
	rep := &fakeReporter{}
	l := NewReportListener(disabledClient(), rep, "robots.reports", "robots.replies.", "tracker")
	l.replies = replies

	raw := reportEnvelope(t, "")
	handled := make(chan struct{})
	go func() {
		defer close(handled)
		for i := 0; i < ackQueueSize+10; i++ {
			l.ingestor.HandleRaw(raw)
		}
	}()
	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("report handling blocked behind a stalled ack publish")
	}

	rep.mu.Lock()
	n := len(rep.reports)
	rep.mu.Unlock()
	if n != ackQueueSize+10 {
		t.Errorf("reports = %d, want %d", n, ackQueueSize+10)
	}

	close(replies.gate)
	l.Stop()
	if sent := replies.waitFor(1, time.Second); len(sent) == 0 {
		t.Error("queued acks were not published after the publisher recovered")
	}
}

func TestReplyTopic(t *testing.T) {
	l := NewReportListener(disabledClient(), &fakeReporter{}, "in", "robots.replies.", "tracker")
	if got := l.ReplyTopic("helhest"); got != "robots.replies.helhest" {
		t.Errorf("ReplyTopic = %q", got)
	}
}

func TestEventPublisherEnvelope(t *testing.T) {
	p := NewEventPublisher(disabledClient(), "robots.events", "tracker")

	env, err := p.Envelope(protocol.TypeRobotUpdate, "r1", map[string]string{"robot_id": "r1"})
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if env.Type != protocol.TypeRobotUpdate || env.Dst.Role != protocol.RoleObserver {
		t.Errorf("envelope = %+v", env)
	}
	var ev protocol.RobotEvent
	if err := env.DecodePayload(&ev); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	var state map[string]string
	if err := json.Unmarshal(ev.State, &state); err != nil || state["robot_id"] != "r1" {
		t.Errorf("state = %s, err = %v", ev.State, err)
	}

	off, err := p.Envelope(protocol.TypeRobotOffline, "r1", nil)
	if err != nil {
		t.Fatalf("Envelope offline: %v", err)
	}
	var offEv protocol.RobotEvent
	off.DecodePayload(&offEv)
	if offEv.State != nil {
		t.Errorf("offline state = %s, want none", offEv.State)
	}

	if err := p.Publish(protocol.TypeRobotOffline, "r1", nil); !errors.Is(err, ErrDisabled) {
		t.Errorf("Publish err = %v, want ErrDisabled", err)
	}
}
