package logging

import (
	"context"
	"time"
)

// EventType names a structured gameplay or system event.
type EventType string

// Severity orders events for sink filtering.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// EntityKind classifies the actor an event refers to.
type EntityKind string

const (
	EntityKindUnknown   EntityKind = "unknown"
	EntityKindCharacter EntityKind = "character"
	EntityKindEnemy     EntityKind = "enemy"
	EntityKindItem      EntityKind = "item"
	EntityKindSession   EntityKind = "session"
	EntityKindZone      EntityKind = "zone"
)

// EntityRef identifies the subject of an event.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

const (
	CategoryGameplay = "gameplay"
	CategoryCombat   = "combat"
	CategorySystem   = "system"
)

// Event is the structured record published by the simulation.
type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Publisher receives simulation events. Zones hold an injected Publisher
// rather than a process-wide singleton so each zone can route its own
// stream.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
