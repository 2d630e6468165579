package server

import (
	"time"

	"emberwake/server/internal/state"
)

// advanceMovement integrates every moving entity one tick and handles
// arrival: plain moves come to rest, tracked attacks convert to staged
// intents once in range, and loot approaches roll into pickup attempts.
func (z *Zone) advanceMovement(now time.Time, dt float64, staged *stagedIntents) {
	for _, id := range z.characterOrder {
		cs, ok := z.characters[id]
		if !ok {
			continue
		}
		z.advanceCharacter(cs, now, dt, staged)
	}
	for _, id := range z.enemyOrder {
		enemy, ok := z.enemies[id]
		if !ok {
			continue
		}
		z.advanceEnemy(enemy, dt)
	}
}

func (z *Zone) advanceCharacter(cs *characterState, now time.Time, dt float64, staged *stagedIntents) {
	if cs.State == state.CharacterDead {
		return
	}

	// Tracked attack: follow the live target, strike as soon as it is in
	// reach.
	if cs.pendingAttack != "" {
		target, ok := z.enemies[cs.pendingAttack]
		if !ok || !target.Alive() {
			cs.pendingAttack = ""
			cs.moveTarget = nil
			cs.settleIdle()
			return
		}
		if distance(cs.X, cs.Y, target.X, target.Y) <= characterAttackRange {
			cs.moveTarget = nil
			if now.Before(cs.nextAttackAt) {
				return
			}
			if err := cs.TransitionTo(state.CharacterAttacking); err != nil {
				return
			}
			staged.attacks = append(staged.attacks, attackIntent{
				attackerID:   cs.ID,
				targetID:     target.ID,
				attackerKind: characterKind,
			})
			cs.pendingAttack = ""
			return
		}
		cs.moveTarget = &vec2{X: target.X, Y: target.Y}
		if cs.State != state.CharacterMoving {
			if err := cs.TransitionTo(state.CharacterMoving); err != nil {
				return
			}
		}
	}

	if cs.moveTarget == nil {
		return
	}

	arrived := stepToward(&cs.X, &cs.Y, *cs.moveTarget, characterMoveSpeed*dt)
	if !arrived {
		return
	}
	cs.moveTarget = nil

	switch cs.State {
	case state.CharacterMoving:
		if cs.pendingAttack == "" && cs.pendingPickup == "" {
			_ = cs.TransitionTo(state.CharacterIdle)
		}
	case state.CharacterMovingToLoot:
		_ = cs.TransitionTo(state.CharacterLootingArea)
		z.resolvePendingPickup(cs, now)
	}
}

func (z *Zone) advanceEnemy(enemy *enemyState, dt float64) {
	if !enemy.Alive() || enemy.moveTarget == nil {
		return
	}
	if enemy.tpl.Stationary {
		enemy.moveTarget = nil
		return
	}
	arrived := stepToward(&enemy.X, &enemy.Y, *enemy.moveTarget, enemy.tpl.MoveSpeed*dt)
	if arrived {
		enemy.moveTarget = nil
		if enemy.State == state.EnemyWandering {
			_ = enemy.TransitionTo(state.EnemyIdle)
		}
	}
}

// stepToward advances a position toward target by at most step, clamped to
// the zone. Reports arrival.
func stepToward(x, y *float64, target vec2, step float64) bool {
	dx := target.X - *x
	dy := target.Y - *y
	dist := distance(*x, *y, target.X, target.Y)
	if dist <= arriveThreshold || dist <= step {
		*x, *y = clampToZone(target.X, target.Y)
		return true
	}
	*x, *y = clampToZone(*x+dx/dist*step, *y+dy/dist*step)
	return false
}

// settleIdle returns a character to idle from any interruptible state.
func (cs *characterState) settleIdle() {
	switch cs.State {
	case state.CharacterMoving, state.CharacterAttacking,
		state.CharacterMovingToLoot, state.CharacterLootingArea:
		_ = cs.TransitionTo(state.CharacterIdle)
	}
}
