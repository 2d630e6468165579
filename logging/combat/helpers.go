package combat

import (
	"context"

	"emberwake/server/logging"
)

const (
	// EventAttackResolved is emitted for every attack the resolver applies.
	EventAttackResolved logging.EventType = "combat.attack_resolved"
	// EventEntityDied is emitted when an attack drops a target to zero health.
	EventEntityDied logging.EventType = "combat.entity_died"
)

// AttackResolvedPayload describes one resolved attack.
type AttackResolvedPayload struct {
	TargetID string `json:"targetId"`
	Damage   int    `json:"damage"`
	Killing  bool   `json:"killing,omitempty"`
}

// EntityDiedPayload describes a death transition.
type EntityDiedPayload struct {
	KillerID string `json:"killerId,omitempty"`
}

// AttackResolved publishes an attack event.
func AttackResolved(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AttackResolvedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAttackResolved,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// EntityDied publishes a death event.
func EntityDied(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EntityDiedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEntityDied,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
