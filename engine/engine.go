package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"robottracker/config"
	"robottracker/messaging"
	"robottracker/protocol"
	"robottracker/register"
	"robottracker/statecache"
	"robottracker/store"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Cache      *statecache.RedisStore
	MsgClient  *messaging.Client
	LogFunc    LogFunc
	Debug      bool
}

type Engine struct {
	cfg         *config.Config
	configPath  string
	db          *store.DB
	cache       *statecache.RedisStore
	msgClient   *messaging.Client
	register    *register.Register
	coordinator *register.Coordinator
	sweeper     *register.Sweeper
	listener    *messaging.ReportListener
	publisher   *messaging.EventPublisher
	sinks       []*sink
	Events      *EventBus
	logFn       LogFunc
	debug       bool
	startedAt   time.Time

	cancel       context.CancelFunc
	stopChan     chan struct{}
	msgConnected bool
}

// New builds the engine and its register. Nothing runs until Start.
func New(c Config) (*Engine, error) {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	if c.AppConfig == nil {
		c.AppConfig = config.Defaults()
	}
	c.AppConfig.RLock()
	tc := c.AppConfig.Tracker
	mc := c.AppConfig.Messaging
	c.AppConfig.RUnlock()

	// The client keeps its own copy; config edits reach it via ReconfigureMessaging.
	if c.MsgClient == nil {
		c.MsgClient = messaging.NewClient(&mc)
	}
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	format, err := protocol.ParsePositionFormat(tc.PositionFormat)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		cache:      c.Cache,
		msgClient:  c.MsgClient,
		Events:     NewEventBus(),
		logFn:      logFn,
		debug:      c.Debug,
		stopChan:   make(chan struct{}, 1),
	}

	emitter := &registerEmitter{bus: e.Events}
	e.register = register.New(register.WithPositionFormat(format))
	e.coordinator = register.NewCoordinator(e.register, emitter, register.LogFunc(logFn))

	sc := register.SweeperConfig{
		Interval: tc.SweepInterval,
		Timeout:  tc.InactivityTimeout,
		LogFunc:  register.LogFunc(logFn),
	}
	if c.Debug {
		sc.DebugFunc = register.LogFunc(logFn)
	}
	e.sweeper = register.NewSweeper(e.register, emitter, sc)
	return e, nil
}

func (e *Engine) Start() {
	e.startedAt = time.Now()

	e.resetReadModels()
	e.wireEventHandlers()

	e.cfg.RLock()
	mc := e.cfg.Messaging
	e.cfg.RUnlock()

	// The listener and publisher are wired even with messaging disabled: the
	// client remembers the subscription and restores it if messaging is
	// enabled later through ReconfigureMessaging.
	e.publisher = messaging.NewEventPublisher(e.msgClient, mc.EventsTopic, mc.TrackerID)
	e.wirePublisher()

	e.listener = messaging.NewReportListener(e.msgClient, e.coordinator, mc.ReportsTopic, mc.ReplyTopicPrefix, mc.TrackerID)
	if err := e.listener.Start(); err == nil {
		e.logFn("engine: listening for reports on %s", mc.ReportsTopic)
	} else if !errors.Is(err, messaging.ErrDisabled) {
		e.logFn("engine: report listener on %s: %v", mc.ReportsTopic, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.sweeper.Start(ctx)

	e.checkConnectionStatus()
	go e.connectionHealthLoop()

	e.logFn("engine: started")
}

func (e *Engine) Stop() {
	select {
	case e.stopChan <- struct{}{}:
	default:
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.listener != nil {
		e.listener.Stop()
	}
	for _, s := range e.sinks {
		s.close()
	}
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                     { return e.db }
func (e *Engine) Cache() *statecache.RedisStore     { return e.cache }
func (e *Engine) AppConfig() *config.Config         { return e.cfg }
func (e *Engine) ConfigPath() string                { return e.configPath }
func (e *Engine) MsgClient() *messaging.Client      { return e.msgClient }
func (e *Engine) Register() *register.Register      { return e.register }
func (e *Engine) Coordinator() *register.Coordinator { return e.coordinator }
func (e *Engine) Sweeper() *register.Sweeper        { return e.sweeper }
func (e *Engine) StartedAt() time.Time              { return e.startedAt }

// Report applies one robot report from any transport.
func (e *Engine) Report(rep *protocol.RobotReport) (register.RobotState, bool, error) {
	return e.coordinator.Report(rep)
}

// ObserverConnected sends the current fleet snapshot to one observer.
func (e *Engine) ObserverConnected(id register.ObserverID) {
	e.coordinator.ObserverConnected(id)
}

// Evict removes a robot on operator request. actor is recorded in the audit log.
func (e *Engine) Evict(robotID, actor string) bool {
	if actor == "" {
		actor = "unknown"
	}
	return e.coordinator.Evict(robotID, actor)
}

// ReconfigureTracker applies the tracker config section live.
func (e *Engine) ReconfigureTracker() error {
	e.cfg.RLock()
	tc := e.cfg.Tracker
	e.cfg.RUnlock()

	if err := tc.Validate(); err != nil {
		return err
	}
	format, err := protocol.ParsePositionFormat(tc.PositionFormat)
	if err != nil {
		return err
	}
	e.register.SetPositionFormat(format)
	e.sweeper.Reconfigure(tc.SweepInterval, tc.InactivityTimeout)

	e.logFn("engine: tracker reconfigured (sweep %s, timeout %s, format %s)", tc.SweepInterval, tc.InactivityTimeout, format)
	e.Events.Emit(Event{Type: EventTrackerReconfigured, Payload: TrackerReconfiguredEvent{
		SweepInterval:     tc.SweepInterval,
		InactivityTimeout: tc.InactivityTimeout,
		PositionFormat:    string(format),
	}})
	return nil
}

// ReconfigureMessaging reconnects messaging with current config.
func (e *Engine) ReconfigureMessaging() {
	e.cfg.RLock()
	mc := e.cfg.Messaging
	e.cfg.RUnlock()
	if err := e.msgClient.Reconfigure(&mc); err != nil && !errors.Is(err, messaging.ErrDisabled) {
		e.logFn("engine: messaging reconfigure error: %v", err)
	} else {
		e.logFn("engine: messaging reconfigured (%s)", e.msgClient.Backend())
	}
	e.checkConnectionStatus()
}

// resetReadModels clears state left behind by a previous run; the register
// always starts empty.
func (e *Engine) resetReadModels() {
	if e.db != nil {
		if n, err := e.db.MarkAllRobotsOffline(); err != nil {
			e.logFn("engine: reset robot registry: %v", err)
		} else if n > 0 {
			e.logFn("engine: marked %d robots offline from previous run", n)
		}
	}
	if e.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := e.cache.FlushAll(ctx); err != nil {
			e.logFn("engine: flush state cache: %v", err)
		}
	}
}

func (e *Engine) checkConnectionStatus() {
	if e.msgClient.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: e.msgClient.Backend() + " connected"}})
		}
	} else {
		if e.msgConnected {
			e.msgConnected = false
			e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: e.msgClient.Backend() + " disconnected"}})
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// Health summarises the engine for the health endpoint.
func (e *Engine) Health() map[string]any {
	interval, timeout := e.sweeper.Timings()
	h := map[string]any{
		"status":             "ok",
		"robots":             e.register.Len(),
		"sweep_interval":     interval.String(),
		"inactivity_timeout": timeout.String(),
		"position_format":    string(e.register.PositionFormat()),
		"messaging":          e.msgClient.IsConnected(),
		"messaging_backend":  e.msgClient.Backend(),
		"uptime":             fmt.Sprintf("%.0fs", time.Since(e.startedAt).Seconds()),
	}
	if e.db != nil {
		h["database"] = e.db.Driver()
	}
	if e.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h["cache"] = e.cache.Ping(ctx) == nil
	}
	return h
}
