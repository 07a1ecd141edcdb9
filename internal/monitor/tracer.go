package monitor

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxTraces bounds the trace buffer when no size is configured.
const DefaultMaxTraces = 1000

// Tracer keeps the most recent traces and fans new ones out to subscribers.
type Tracer struct {
	mu          sync.RWMutex
	traces      []*Trace
	maxTraces   int
	subscribers map[string]chan *Trace
}

// NewTracer creates a tracer holding up to maxTraces traces.
func NewTracer(maxTraces int) *Tracer {
	if maxTraces <= 0 {
		maxTraces = DefaultMaxTraces
	}
	return &Tracer{
		traces:      make([]*Trace, 0),
		maxTraces:   maxTraces,
		subscribers: make(map[string]chan *Trace),
	}
}

// Record stores t, assigning an ID and timestamp when missing, and
// notifies subscribers. Slow subscribers miss traces rather than block.
func (s *Tracer) Record(t *Trace) {
	s.mu.Lock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	s.traces = append(s.traces, t)
	if len(s.traces) > s.maxTraces {
		s.traces = s.traces[len(s.traces)-s.maxTraces:]
	}
	subscribers := make([]chan *Trace, 0, len(s.subscribers))
	for _, ch := range s.subscribers {
		subscribers = append(subscribers, ch)
	}
	s.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- t:
		default:
		}
	}
}

// List returns matching traces, newest first.
func (s *Tracer) List(f TraceFilter) []*Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Trace, 0)
	for i := len(s.traces) - 1; i >= 0; i-- {
		t := s.traces[i]
		if f.Method != "" && !strings.EqualFold(t.Request.Method, f.Method) {
			continue
		}
		if f.Path != "" && !strings.HasPrefix(t.Request.Path, f.Path) {
			continue
		}
		if f.StatusCode != 0 && t.Response.StatusCode != f.StatusCode {
			continue
		}
		if !f.StartTime.IsZero() && t.Timestamp.Before(f.StartTime) {
			continue
		}
		if !f.EndTime.IsZero() && t.Timestamp.After(f.EndTime) {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// Get returns the trace with id, or nil.
func (s *Tracer) Get(id string) *Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.traces {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Clear drops every stored trace.
func (s *Tracer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = make([]*Trace, 0)
}

// Subscribe returns a subscription ID and a channel receiving new traces.
func (s *Tracer) Subscribe() (string, <-chan *Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan *Trace, 100)
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a subscription.
func (s *Tracer) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Stats reports the buffer size and subscriber count.
func (s *Tracer) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"totalTraces":       len(s.traces),
		"maxTraces":         s.maxTraces,
		"activeSubscribers": len(s.subscribers),
	}
}
