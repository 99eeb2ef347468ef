package register

import (
	"context"
	"log"
	"sync"
	"time"
)

// SweeperConfig holds the parameters for NewSweeper.
type SweeperConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	LogFunc  LogFunc
	// DebugFunc receives a per-robot age line on every pass. Nil disables it.
	DebugFunc LogFunc
	// Now overrides the clock used to judge staleness.
	Now func() time.Time
}

// Sweeper periodically evicts robots that stopped reporting and announces
// each one offline.
type Sweeper struct {
	reg      *Register
	notifier Notifier
	logFn    LogFunc
	debugFn  LogFunc
	now      func() time.Time

	mu       sync.Mutex
	interval time.Duration
	timeout  time.Duration

	resetCh  chan time.Duration
	stopChan chan struct{}
}

// NewSweeper creates a sweeper over reg. Call Start or Run to begin ticking.
func NewSweeper(reg *Register, notifier Notifier, cfg SweeperConfig) *Sweeper {
	logFn := cfg.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		reg:      reg,
		notifier: notifier,
		logFn:    logFn,
		debugFn:  cfg.DebugFunc,
		now:      now,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		resetCh:  make(chan time.Duration, 1),
		stopChan: make(chan struct{}, 1),
	}
}

// Timings returns the current sweep interval and inactivity timeout.
func (s *Sweeper) Timings() (interval, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval, s.timeout
}

// Reconfigure changes the interval and timeout. A running loop picks up the
// new interval on its next select.
func (s *Sweeper) Reconfigure(interval, timeout time.Duration) {
	s.mu.Lock()
	changed := interval != s.interval
	s.interval = interval
	s.timeout = timeout
	s.mu.Unlock()

	if !changed {
		return
	}
	// Replace any pending reset with the latest interval.
	select {
	case <-s.resetCh:
	default:
	}
	s.resetCh <- interval
}

// Start runs the sweep loop in a new goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Stop ends a running loop between ticks.
func (s *Sweeper) Stop() {
	select {
	case s.stopChan <- struct{}{}:
	default:
	}
}

// Run sweeps on every tick until ctx is cancelled or Stop is called. A pass in
// progress always completes before the loop exits.
func (s *Sweeper) Run(ctx context.Context) {
	interval, _ := s.Timings()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logFn("sweeper: started (interval %s)", interval)
	for {
		select {
		case <-ctx.Done():
			s.logFn("sweeper: stopped")
			return
		case <-s.stopChan:
			s.logFn("sweeper: stopped")
			return
		case d := <-s.resetCh:
			ticker.Reset(d)
			s.logFn("sweeper: interval now %s", d)
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one pass: evict every stale robot, then send one offline
// notification per evicted ID. It returns the evicted IDs.
func (s *Sweeper) Sweep() []string {
	_, timeout := s.Timings()
	now := s.now()

	if s.debugFn != nil {
		for id, st := range s.reg.Snapshot() {
			s.debugFn("sweeper: checking %s, %.1fs since last update", id, now.Sub(st.LastUpdate).Seconds())
		}
	}

	ids, release := s.reg.evictSeq(now, timeout)
	defer release()
	for _, id := range ids {
		s.logFn("sweeper: removing inactive robot: %s", id)
		deliver(s.logFn, "robot_offline", id, func() { s.notifier.NotifyRobotOffline(id, "") })
	}
	return ids
}
