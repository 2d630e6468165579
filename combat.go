package server

import (
	"context"
	"time"

	"emberwake/server/internal/state"
	"emberwake/server/logging"
	loggingcombat "emberwake/server/logging/combat"
)

const (
	characterKind = logging.EntityKindCharacter
	enemyKind     = logging.EntityKindEnemy
)

// stageCharacterAttack validates an attack command. In-range attacks off
// cooldown become staged intents for this tick; out-of-range attacks convert
// into a tracked move toward the target.
func (z *Zone) stageCharacterAttack(cs *characterState, cmd Command, now time.Time, staged *stagedIntents) {
	target, ok := z.enemies[cmd.Attack.TargetID]
	if !ok || !target.Alive() {
		// Stale by the time it arrived; latency makes this routine, so no
		// reply goes back.
		return
	}

	cs.pendingPickup = ""

	if distance(cs.X, cs.Y, target.X, target.Y) > characterAttackRange {
		cs.pendingAttack = target.ID
		cs.moveTarget = &vec2{X: target.X, Y: target.Y}
		if err := cs.TransitionTo(state.CharacterMoving); err != nil {
			z.events.reject(cmd, CommandRejectInvalid, err.Error())
			cs.pendingAttack = ""
			cs.moveTarget = nil
			return
		}
		z.events.ack(cmd)
		return
	}

	if now.Before(cs.nextAttackAt) {
		// Still on cooldown; dropped without a reply, the client swings again.
		return
	}
	if err := cs.TransitionTo(state.CharacterAttacking); err != nil {
		z.events.reject(cmd, CommandRejectInvalid, err.Error())
		return
	}
	cs.pendingAttack = ""
	cs.moveTarget = nil
	staged.attacks = append(staged.attacks, attackIntent{
		attackerID:   cs.ID,
		targetID:     target.ID,
		attackerKind: characterKind,
	})
	z.events.ack(cmd)
}

// resolveAttacks applies every staged attack in submission order. Damage is
// attack minus defense with a floor of 1, so armor never nullifies a hit.
func (z *Zone) resolveAttacks(now time.Time, attacks []attackIntent) {
	for _, intent := range attacks {
		switch intent.attackerKind {
		case characterKind:
			z.resolveCharacterAttack(now, intent)
		case enemyKind:
			z.resolveEnemyAttack(now, intent)
		}
	}
}

func (z *Zone) resolveCharacterAttack(now time.Time, intent attackIntent) {
	cs, ok := z.characters[intent.attackerID]
	if !ok || cs.State == state.CharacterDead {
		return
	}
	target, ok := z.enemies[intent.targetID]
	if !ok || !target.Alive() {
		cs.settleIdle()
		return
	}
	if distance(cs.X, cs.Y, target.X, target.Y) > characterAttackRange {
		// Target slipped out of reach between staging and resolution.
		cs.settleIdle()
		return
	}

	damage := damageAmount(cs.Attack, target.tpl.Defense)
	killed := target.ApplyDamage(damage)
	cs.nextAttackAt = now.Add(characterAttackCooldown)
	target.aggressorID = cs.ID

	z.emitCombatAction(cs.ID, target.ID, damage)
	loggingcombat.AttackResolved(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: cs.ID, Kind: characterKind},
		loggingcombat.AttackResolvedPayload{TargetID: target.ID, Damage: damage, Killing: killed})

	if killed {
		z.handleEnemyDeath(now, target, cs)
	}
	cs.settleIdle()
}

func (z *Zone) resolveEnemyAttack(now time.Time, intent attackIntent) {
	enemy, ok := z.enemies[intent.attackerID]
	if !ok || !enemy.Alive() {
		return
	}
	target, ok := z.characters[intent.targetID]
	if !ok || target.State == state.CharacterDead {
		enemy.ClearTarget()
		return
	}
	if distance(enemy.X, enemy.Y, target.X, target.Y) > enemy.tpl.AttackRange {
		return
	}

	damage := damageAmount(enemy.tpl.Attack, target.Defense)
	killed := target.ApplyDamage(damage)
	enemy.nextAttackAt = now.Add(time.Duration(enemy.tpl.AttackCooldownMS) * time.Millisecond)

	z.emitCombatAction(enemy.ID, target.ID, damage)
	loggingcombat.AttackResolved(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: enemy.ID, Kind: enemyKind},
		loggingcombat.AttackResolvedPayload{TargetID: target.ID, Damage: damage, Killing: killed})

	if killed {
		z.handleCharacterDeath(now, target, enemy.ID)
	}
}

func (z *Zone) emitCombatAction(attackerID, targetID string, damage int) {
	z.events.addAction(combatActionEntry{
		AttackerID: attackerID,
		TargetID:   targetID,
		Damage:     damage,
	})
}

// handleEnemyDeath awards XP, rolls loot, and marks the enemy for removal at
// the end of the tick.
func (z *Zone) handleEnemyDeath(now time.Time, enemy *enemyState, killer *characterState) {
	z.events.broadcast(entityDiedMessage{
		Ver:      ProtocolVersion,
		Type:     "entityDied",
		EntityID: enemy.ID,
		KillerID: killer.ID,
	})
	loggingcombat.EntityDied(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: enemy.ID, Kind: enemyKind},
		loggingcombat.EntityDiedPayload{KillerID: killer.ID})

	z.awardExperience(killer, enemy.tpl.XPReward)
	z.rollLoot(now, enemy)
}

func (z *Zone) handleCharacterDeath(now time.Time, cs *characterState, killerID string) {
	cs.moveTarget = nil
	cs.pendingAttack = ""
	cs.pendingPickup = ""
	cs.respawnAt = now.Add(characterRespawnDelay)

	z.events.broadcast(entityDiedMessage{
		Ver:      ProtocolVersion,
		Type:     "entityDied",
		EntityID: cs.ID,
		KillerID: killerID,
	})
	loggingcombat.EntityDied(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: cs.ID, Kind: characterKind},
		loggingcombat.EntityDiedPayload{KillerID: killerID})

	for _, enemy := range z.enemies {
		if enemy.TargetID == cs.ID {
			enemy.ClearTarget()
		}
	}
}

// sweepDeadEnemies removes corpses after the tick's attacks resolved, so two
// kill claims in one tick both observed a live target.
func (z *Zone) sweepDeadEnemies(now time.Time) {
	for _, id := range append([]string(nil), z.enemyOrder...) {
		enemy, ok := z.enemies[id]
		if !ok || enemy.Alive() {
			continue
		}
		if enemy.nest != nil {
			enemy.nest.alive--
			if enemy.nest.cfg.RespawnMS > 0 {
				respawnAt := now.Add(time.Duration(enemy.nest.cfg.RespawnMS) * time.Millisecond)
				enemy.nest.respawns = append(enemy.nest.respawns, respawnAt)
			}
		}
		delete(z.enemies, id)
		z.enemyOrder = removeID(z.enemyOrder, id)
	}
}

// sweepTargetInvariant clears any enemy target that no longer refers to a
// live character in the zone.
func (z *Zone) sweepTargetInvariant() {
	for _, id := range z.enemyOrder {
		enemy, ok := z.enemies[id]
		if !ok || enemy.TargetID == "" {
			continue
		}
		target, exists := z.characters[enemy.TargetID]
		if !exists || target.State == state.CharacterDead {
			enemy.ClearTarget()
		}
	}
}

func damageAmount(attack, defense int) int {
	damage := attack - defense
	if damage < 1 {
		damage = 1
	}
	return damage
}
