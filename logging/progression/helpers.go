package progression

import (
	"context"

	"emberwake/server/logging"
)

const (
	// EventExperienceAwarded is emitted on any XP gain.
	EventExperienceAwarded logging.EventType = "progression.experience_awarded"
	// EventLevelUp is emitted when an XP award crosses a level threshold.
	EventLevelUp logging.EventType = "progression.level_up"
)

// ExperienceAwardedPayload describes an XP gain.
type ExperienceAwardedPayload struct {
	Amount  int64 `json:"amount"`
	TotalXP int64 `json:"totalXp"`
}

// LevelUpPayload describes a level boundary crossing.
type LevelUpPayload struct {
	NewLevel  int `json:"newLevel"`
	MaxHealth int `json:"maxHealth"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
}

// ExperienceAwarded publishes an XP-gain event.
func ExperienceAwarded(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ExperienceAwardedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventExperienceAwarded,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// LevelUp publishes a level-up event.
func LevelUp(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload LevelUpPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventLevelUp,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}
