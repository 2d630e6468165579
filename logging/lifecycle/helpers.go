package lifecycle

import (
	"context"

	"emberwake/server/logging"
)

const (
	// EventCharacterJoined is emitted when a character enters a zone.
	EventCharacterJoined logging.EventType = "lifecycle.character_joined"
	// EventCharacterLeft is emitted when a character leaves or is reaped.
	EventCharacterLeft logging.EventType = "lifecycle.character_left"
	// EventEnemySpawned is emitted when a nest produces a new enemy instance.
	EventEnemySpawned logging.EventType = "lifecycle.enemy_spawned"
	// EventSessionDisconnected is emitted when a connection drops.
	EventSessionDisconnected logging.EventType = "lifecycle.session_disconnected"
)

// CharacterJoinedPayload describes a zone join.
type CharacterJoinedPayload struct {
	ZoneID string `json:"zoneId"`
	Name   string `json:"name"`
}

// CharacterLeftPayload describes a zone leave.
type CharacterLeftPayload struct {
	ZoneID string `json:"zoneId"`
	Reason string `json:"reason"`
}

// EnemySpawnedPayload describes a nest spawn.
type EnemySpawnedPayload struct {
	TemplateID string `json:"templateId"`
}

// SessionDisconnectedPayload describes a dropped connection.
type SessionDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// CharacterJoined publishes a zone-join event.
func CharacterJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CharacterJoinedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCharacterJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// CharacterLeft publishes a zone-leave event.
func CharacterLeft(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CharacterLeftPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCharacterLeft,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// EnemySpawned publishes a nest-spawn event.
func EnemySpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EnemySpawnedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEnemySpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// SessionDisconnected publishes a connection-drop event.
func SessionDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SessionDisconnectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
	})
}
