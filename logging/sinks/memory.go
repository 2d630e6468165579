package sinks

import (
	"context"
	"sync"

	"emberwake/server/logging"
)

// Memory retains events for test assertions.
type Memory struct {
	mu     sync.Mutex
	events []logging.Event
}

// NewMemory builds an in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Write(event logging.Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *Memory) Close(context.Context) error { return nil }

// Events returns a copy of everything written so far.
func (s *Memory) Events() []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]logging.Event, len(s.events))
	copy(copied, s.events)
	return copied
}

// EventsOfType filters retained events by type.
func (s *Memory) EventsOfType(eventType logging.EventType) []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []logging.Event
	for _, event := range s.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}
