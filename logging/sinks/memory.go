package sinks

import (
	"context"
	"maps"
	"slices"
	"sync"

	"tilesuite/server/logging"
)

// MemorySink records events for tests. It also satisfies logging.Publisher so
// components can publish into it without a router in between.
type MemorySink struct {
	mu     sync.RWMutex
	events []logging.Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(event logging.Event) error {
	event.Targets = slices.Clone(event.Targets)
	event.Extra = maps.Clone(event.Extra)
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Publish(_ context.Context, event logging.Event) {
	_ = s.Write(event)
}

func (s *MemorySink) Events() []logging.Event {
	return s.Matching(nil)
}

func (s *MemorySink) EventsOfType(t logging.EventType) []logging.Event {
	return s.Matching(func(e logging.Event) bool { return e.Type == t })
}

func (s *MemorySink) EventsInCategory(category string) []logging.Event {
	return s.Matching(func(e logging.Event) bool { return e.Category == category })
}

// Matching returns the recorded events accepted by keep, in publish order. A
// nil keep returns everything.
func (s *MemorySink) Matching(keep func(logging.Event) bool) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]logging.Event, 0, len(s.events))
	for _, e := range s.events {
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}
