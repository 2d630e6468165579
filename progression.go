package server

import (
	"context"
	"math"

	"emberwake/server/logging"
	loggingprogression "emberwake/server/logging/progression"
)

// xpForLevel returns the total experience required to reach the level.
// Level 1 requires zero.
func xpForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(math.Floor(100 * math.Pow(float64(level-1), 1.5)))
}

// levelForXP returns the highest level whose threshold the total meets.
func levelForXP(xp int64) int {
	level := 1
	for xpForLevel(level+1) <= xp {
		level++
	}
	return level
}

// baseStatsForLevel derives the unequipped stat line for a level.
func baseStatsForLevel(level int) (maxHealth, attack, defense int) {
	if level < 1 {
		level = 1
	}
	return 100 + 10*(level-1), 10 + 2*(level-1), 5 + (level - 1)
}

// awardExperience adds XP to a character, applies any level-ups, and sends
// the private progression events.
func (z *Zone) awardExperience(cs *characterState, amount int64) {
	if amount <= 0 {
		return
	}
	cs.XP += amount
	loggingprogression.ExperienceAwarded(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: cs.ID, Kind: characterKind},
		loggingprogression.ExperienceAwardedPayload{Amount: amount, TotalXP: cs.XP})

	newLevel := levelForXP(cs.XP)
	if cs.Level >= newLevel {
		// No boundary crossed; the plain XP delta is the whole story.
		z.events.sendTo(cs.sessionID, xpUpdateMessage{
			Ver:         ProtocolVersion,
			Type:        "xpUpdate",
			CharacterID: cs.ID,
			XP:          cs.XP,
			Level:       cs.Level,
			NextLevel:   xpForLevel(cs.Level + 1),
		})
		return
	}
	for cs.Level < newLevel {
		cs.Level++
		z.applyLevelUp(cs)
	}
}

// applyLevelUp recomputes base stats for the new level and restores health
// to the new maximum. The notification supersedes any xpUpdate this tick.
func (z *Zone) applyLevelUp(cs *characterState) {
	z.recomputeDerivedStats(cs)
	cs.SetHealth(cs.MaxHealth)

	z.events.sendTo(cs.sessionID, levelUpNotificationMessage{
		Ver:         ProtocolVersion,
		Type:        "levelUpNotification",
		CharacterID: cs.ID,
		NewLevel:    cs.Level,
		NewStats:    baseStats{MaxHealth: cs.MaxHealth, Attack: cs.Attack, Defense: cs.Defense},
		XP:          cs.XP,
		NextLevel:   xpForLevel(cs.Level + 1),
	})
	loggingprogression.LevelUp(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: cs.ID, Kind: characterKind},
		loggingprogression.LevelUpPayload{NewLevel: cs.Level, MaxHealth: cs.MaxHealth, Attack: cs.Attack, Defense: cs.Defense})
}
