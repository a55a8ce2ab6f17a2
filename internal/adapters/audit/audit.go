// Package audit records who did what to which resource. Recording is
// fire-and-forget through a bounded queue so a slow audit store never blocks
// a send; overflow drops the event and counts the drop.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/observability"
)

type Event struct {
	Action   string
	Resource string
	Details  map[string]any
	At       time.Time
}

// Writer persists a single event. Implementations must be safe for one
// writer goroutine.
type Writer interface {
	WriteEvent(ctx context.Context, e Event) error
}

type Sink struct {
	ch chan Event
	wg sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewSink(w Writer, buffer int) *Sink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &Sink{ch: make(chan Event, buffer)}
	s.wg.Add(1)
	go s.run(w)
	return s
}

// Record enqueues the event without blocking. Events offered to a full queue
// or a closed sink are dropped.
func (s *Sink) Record(action, resource string, details map[string]any) {
	e := Event{Action: action, Resource: resource, Details: details, At: time.Now().UTC()}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		observability.ObserveAudit("dropped")
		return
	}
	select {
	case s.ch <- e:
	default:
		observability.ObserveAudit("dropped")
		log.Warn().Str("action", action).Str("resource", resource).Msg("audit queue full, event dropped")
	}
}

// Close stops intake, drains queued events, and waits for the writer.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Sink) run(w Writer) {
	defer s.wg.Done()
	for e := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := w.WriteEvent(ctx, e)
		cancel()
		if err != nil {
			observability.ObserveAudit("failed")
			log.Error().Err(err).Str("action", e.Action).Str("resource", e.Resource).Msg("audit write failed")
			continue
		}
		observability.ObserveAudit("written")
	}
}
