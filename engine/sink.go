package engine

import (
	"sync"
	"sync/atomic"
)

// sink runs a slow subscriber (database, cache, bus egress) on its own
// goroutine so Emit never waits on I/O. Events keep their order; when the
// queue is full new events are dropped and counted.
type sink struct {
	name   string
	handle func(Event)
	logFn  LogFunc

	mu      sync.RWMutex
	ch      chan Event
	closed  bool
	dropped atomic.Uint64
	done    chan struct{}
}

func newSink(name string, size int, logFn LogFunc, handle func(Event)) *sink {
	s := &sink{
		name:   name,
		handle: handle,
		logFn:  logFn,
		ch:     make(chan Event, size),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *sink) push(evt Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- evt:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			s.logFn("engine: %s sink full, %d events dropped", s.name, n)
		}
	}
}

func (s *sink) run() {
	defer close(s.done)
	for evt := range s.ch {
		s.call(evt)
	}
}

func (s *sink) call(evt Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logFn("engine: %s sink panicked: %v", s.name, r)
		}
	}()
	s.handle(evt)
}

// close stops accepting events and waits for the queue to drain.
func (s *sink) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	<-s.done
}
