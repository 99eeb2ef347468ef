package messaging

import (
	"log"
	"sync"

	"robottracker/protocol"
	"robottracker/register"
)

// Reporter applies one robot report.
type Reporter interface {
	Report(rep *protocol.RobotReport) (register.RobotState, bool, error)
}

const ackQueueSize = 256

type envelopePublisher interface {
	PublishEnvelope(topic, key string, env interface{ Encode() ([]byte, error) }) error
}

type pendingAck struct {
	topic   string
	robotID string
	env     *protocol.Envelope
}

// ReportListener feeds robot reports arriving on the reports topic into the
// register and answers each robot on its own reply topic.
//
// Reports are handled on the broker client's delivery goroutine, which must
// not block, so acks are published from a separate goroutine in report order.
type ReportListener struct {
	protocol.NoOpHandler

	client      *Client
	replies     envelopePublisher
	reporter    Reporter
	topic       string
	replyPrefix string
	self        protocol.Address
	ingestor    *protocol.Ingestor

	mu     sync.RWMutex
	acks   chan pendingAck
	closed bool
	done   chan struct{}
}

// NewReportListener creates a listener for topic. Replies go to
// replyPrefix + robot ID.
func NewReportListener(client *Client, reporter Reporter, topic, replyPrefix, trackerID string) *ReportListener {
	l := &ReportListener{
		client:      client,
		replies:     client,
		reporter:    reporter,
		topic:       topic,
		replyPrefix: replyPrefix,
		self:        protocol.Address{Role: protocol.RoleTracker, ID: trackerID},
		acks:        make(chan pendingAck, ackQueueSize),
		done:        make(chan struct{}),
	}
	l.ingestor = protocol.NewIngestor(l, l.accept)
	go l.publishAcks()
	return l
}

// Stop publishes the acks already queued and stops the ack goroutine.
func (l *ReportListener) Stop() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.acks)
	l.mu.Unlock()
	<-l.done
}

func (l *ReportListener) publishAcks() {
	defer close(l.done)
	for a := range l.acks {
		if err := l.replies.PublishEnvelope(a.topic, a.robotID, a.env); err != nil {
			log.Printf("listener: publish ack for %s: %v", a.robotID, err)
		}
	}
}

func (l *ReportListener) queueAck(a pendingAck) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.acks <- a:
	default:
		log.Printf("listener: ack queue full, dropping ack for %s", a.robotID)
	}
}

// Start subscribes to the reports topic.
func (l *ReportListener) Start() error {
	return l.client.Subscribe(l.topic, func(_ string, data []byte) {
		l.ingestor.HandleRaw(data)
	})
}

// accept drops envelopes addressed to some other tracker.
func (l *ReportListener) accept(hdr *protocol.RawHeader) bool {
	if hdr.Type != protocol.TypeRobotReport {
		return false
	}
	return hdr.Dst.ID == "" || hdr.Dst.ID == l.self.ID
}

// ReplyTopic returns the topic a robot listens on for acks.
func (l *ReportListener) ReplyTopic(robotID string) string {
	return l.replyPrefix + robotID
}

func (l *ReportListener) HandleRobotReport(env *protocol.Envelope, p *protocol.RobotReport) {
	_, _, err := l.reporter.Report(p)
	if err != nil {
		log.Printf("listener: report from %s rejected: %v", p.RobotID, err)
	}
	if p.RobotID == "" {
		return
	}

	ack := register.Ack(p.RobotID, err)
	reply, rerr := protocol.NewReply(protocol.TypeReportAck, l.self,
		protocol.Address{Role: protocol.RoleRobot, ID: p.RobotID}, env.ID, &ack)
	if rerr != nil {
		log.Printf("listener: build ack for %s: %v", p.RobotID, rerr)
		return
	}
	l.queueAck(pendingAck{topic: l.ReplyTopic(p.RobotID), robotID: p.RobotID, env: reply})
}
