package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jorenvermeersch/budget-api/internal/logging"
)

var (
	ErrSinkFull   = errors.New("security event buffer full")
	ErrSinkClosed = errors.New("security event sink closed")
)

// AsyncSink hands events to next on a background goroutine so that slow
// sinks never delay a request. When the buffer is full the event is dropped.
type AsyncSink struct {
	next    Sink
	events  chan Event
	logger  logging.Logger
	dropped atomic.Int64
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAsyncSink(next Sink, buffer int, logger logging.Logger) *AsyncSink {
	s := &AsyncSink{
		next:   next,
		events: make(chan Event, buffer),
		logger: logger.With("module", "security_events_async"),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *AsyncSink) loop() {
	defer s.wg.Done()
	for e := range s.events {
		if err := s.next.Write(context.Background(), e); err != nil {
			s.logger.Error(context.Background(), "error forwarding security event", "event", string(e.Code), "error", err)
		}
	}
}

// Write never blocks. Events arriving after Close are dropped.
func (s *AsyncSink) Write(_ context.Context, e Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return ErrSinkClosed
	}

	select {
	case s.events <- e:
		return nil
	default:
		s.dropped.Add(1)
		return ErrSinkFull
	}
}

// Dropped returns how many events were discarded, because the buffer was
// full or the sink was closed.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting events and waits until the buffer is drained.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
