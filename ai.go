package server

import (
	"context"
	"math"
	"time"

	"emberwake/server/internal/content"
	"emberwake/server/internal/state"
	"emberwake/server/logging"
	logginglifecycle "emberwake/server/logging/lifecycle"
)

const (
	wanderIntervalMin = 3 * time.Second
	wanderIntervalMax = 8 * time.Second
	fleeDuration      = 4 * time.Second
	// chaseLeashFactor bounds how far past its aggro radius an enemy will
	// pursue before giving up.
	chaseLeashFactor = 2.5
)

// runAI makes one decision pass over every live enemy and returns the attack
// intents they staged. Decisions run before client commands so enemy strikes
// and player strikes resolve inside the same tick.
func (z *Zone) runAI(now time.Time) stagedIntents {
	var staged stagedIntents
	for _, id := range z.enemyOrder {
		enemy, ok := z.enemies[id]
		if !ok || !enemy.Alive() {
			continue
		}
		z.decideEnemy(enemy, now, &staged)
	}
	return staged
}

func (z *Zone) decideEnemy(enemy *enemyState, now time.Time, staged *stagedIntents) {
	if enemy.State == state.EnemyFleeing {
		if now.Before(enemy.fleeUntil) {
			return
		}
		enemy.fleeUntil = time.Time{}
		enemy.aggressorID = ""
		enemy.ClearTarget()
		enemy.moveTarget = &vec2{X: enemy.anchor.X, Y: enemy.anchor.Y}
		_ = enemy.TransitionTo(state.EnemyWandering)
		return
	}

	// Low health breaks off combat for enemies that flee. A cleared target
	// still counts as threatened while the aggressor is remembered.
	if enemy.tpl.CanFlee && enemy.MaxHealth > 0 {
		ratio := float64(enemy.Health) / float64(enemy.MaxHealth)
		if ratio <= enemy.tpl.FleeThreshold && (enemy.TargetID != "" || enemy.aggressorID != "") {
			z.startFlee(enemy, now)
			return
		}
	}

	if enemy.TargetID != "" {
		z.pursueTarget(enemy, now, staged)
		return
	}

	// Retaliate against whoever hit us, aggressive or not.
	if enemy.aggressorID != "" {
		if target, ok := z.characters[enemy.aggressorID]; ok && target.State != state.CharacterDead {
			enemy.TargetID = enemy.aggressorID
			_ = enemy.TransitionTo(state.EnemyChasing)
			z.pursueTarget(enemy, now, staged)
			return
		}
		enemy.aggressorID = ""
	}

	if enemy.tpl.Aggressive && enemy.tpl.AggroRadius > 0 {
		if target := z.nearestCharacter(enemy.X, enemy.Y, enemy.tpl.AggroRadius); target != nil {
			enemy.TargetID = target.ID
			_ = enemy.TransitionTo(state.EnemyChasing)
			z.pursueTarget(enemy, now, staged)
			return
		}
	}

	z.wander(enemy, now)
}

func (z *Zone) pursueTarget(enemy *enemyState, now time.Time, staged *stagedIntents) {
	target, ok := z.characters[enemy.TargetID]
	if !ok || target.State == state.CharacterDead {
		enemy.ClearTarget()
		return
	}

	dist := distance(enemy.X, enemy.Y, target.X, target.Y)
	leash := enemy.tpl.AggroRadius * chaseLeashFactor
	if leash > 0 && dist > leash {
		enemy.ClearTarget()
		enemy.aggressorID = ""
		enemy.moveTarget = &vec2{X: enemy.anchor.X, Y: enemy.anchor.Y}
		_ = enemy.TransitionTo(state.EnemyWandering)
		return
	}

	if dist <= enemy.tpl.AttackRange {
		enemy.moveTarget = nil
		if enemy.State != state.EnemyAttacking {
			if err := enemy.TransitionTo(state.EnemyAttacking); err != nil {
				return
			}
		}
		if now.Before(enemy.nextAttackAt) {
			return
		}
		staged.attacks = append(staged.attacks, attackIntent{
			attackerID:   enemy.ID,
			targetID:     target.ID,
			attackerKind: enemyKind,
		})
		return
	}

	if enemy.tpl.Stationary {
		// Cannot close the gap; hold position until the target returns.
		enemy.moveTarget = nil
		if enemy.State != state.EnemyChasing {
			_ = enemy.TransitionTo(state.EnemyChasing)
		}
		return
	}
	if enemy.State != state.EnemyChasing {
		if err := enemy.TransitionTo(state.EnemyChasing); err != nil {
			return
		}
	}
	enemy.moveTarget = &vec2{X: target.X, Y: target.Y}
}

func (z *Zone) startFlee(enemy *enemyState, now time.Time) {
	threatID := enemy.TargetID
	if threatID == "" {
		threatID = enemy.aggressorID
	}
	threat, ok := z.characters[threatID]
	if err := enemy.TransitionTo(state.EnemyFleeing); err != nil {
		return
	}
	enemy.fleeUntil = now.Add(fleeDuration)
	if ok {
		// Run directly away from the attacker.
		dx, dy := normalizeVector(vec2{X: enemy.X - threat.X, Y: enemy.Y - threat.Y})
		fleeX, fleeY := clampToZone(enemy.X+dx*enemy.tpl.AggroRadius, enemy.Y+dy*enemy.tpl.AggroRadius)
		enemy.moveTarget = &vec2{X: fleeX, Y: fleeY}
	} else {
		enemy.moveTarget = &vec2{X: enemy.anchor.X, Y: enemy.anchor.Y}
	}
	enemy.TargetID = ""
}

func (z *Zone) wander(enemy *enemyState, now time.Time) {
	if enemy.tpl.Stationary || enemy.wanderRadius <= 0 {
		return
	}
	if enemy.moveTarget != nil || now.Before(enemy.nextWanderAt) {
		return
	}
	if err := enemy.TransitionTo(state.EnemyWandering); err != nil {
		return
	}
	angle := z.rng.Float64() * 2 * math.Pi
	radius := z.rng.Float64() * enemy.wanderRadius
	x, y := clampToZone(enemy.anchor.X+math.Cos(angle)*radius, enemy.anchor.Y+math.Sin(angle)*radius)
	enemy.moveTarget = &vec2{X: x, Y: y}
	jitter := time.Duration(z.rng.Int63n(int64(wanderIntervalMax - wanderIntervalMin)))
	enemy.nextWanderAt = now.Add(wanderIntervalMin + jitter)
}

// nearestCharacter returns the closest live character within radius, or nil.
func (z *Zone) nearestCharacter(x, y, radius float64) *characterState {
	var nearest *characterState
	best := radius
	for _, id := range z.characterOrder {
		cs, ok := z.characters[id]
		if !ok || cs.State == state.CharacterDead {
			continue
		}
		if d := distance(x, y, cs.X, cs.Y); d <= best {
			best = d
			nearest = cs
		}
	}
	return nearest
}

func (z *Zone) spawnInitialEnemies(now time.Time) {
	for _, nest := range z.nests {
		for i := 0; i < nest.cfg.Count; i++ {
			z.spawnFromNest(nest, now, false)
		}
	}
}

// refillNests respawns enemies whose nest timers have elapsed.
func (z *Zone) refillNests(now time.Time) {
	for _, nest := range z.nests {
		due := 0
		for _, at := range nest.respawns {
			if !now.Before(at) {
				due++
			}
		}
		if due == 0 {
			continue
		}
		remaining := nest.respawns[:0]
		for _, at := range nest.respawns {
			if now.Before(at) {
				remaining = append(remaining, at)
			}
		}
		nest.respawns = remaining
		for i := 0; i < due; i++ {
			z.spawnFromNest(nest, now, true)
		}
	}
}

func (z *Zone) spawnFromNest(nest *nestState, now time.Time, announce bool) {
	tpl, ok := z.catalog.Enemy(nest.cfg.TemplateID)
	if !ok {
		return
	}
	x, y := nest.cfg.X, nest.cfg.Y
	if nest.cfg.WanderRadius > 0 {
		angle := z.rng.Float64() * 2 * math.Pi
		radius := z.rng.Float64() * nest.cfg.WanderRadius
		x, y = clampToZone(x+math.Cos(angle)*radius, y+math.Sin(angle)*radius)
	}
	enemy := z.spawnEnemy(tpl, nest, x, y)
	if announce {
		z.events.broadcast(enemySpawnedMessage{
			Ver:   ProtocolVersion,
			Type:  "enemySpawned",
			Enemy: enemy.Enemy,
		})
	}
}

func (z *Zone) spawnEnemy(tpl content.EnemyTemplate, nest *nestState, x, y float64) *enemyState {
	enemy := &enemyState{
		Enemy: state.Enemy{
			ID:         z.nextEnemyInstanceID(tpl.ID),
			TemplateID: tpl.ID,
			Name:       tpl.Name,
			X:          x,
			Y:          y,
			Health:     tpl.MaxHealth,
			MaxHealth:  tpl.MaxHealth,
			State:      state.EnemyIdle,
		},
		tpl:          tpl,
		anchor:       vec2{X: x, Y: y},
		wanderRadius: 0,
		nest:         nest,
	}
	if nest != nil {
		enemy.anchor = vec2{X: nest.cfg.X, Y: nest.cfg.Y}
		enemy.wanderRadius = nest.cfg.WanderRadius
		nest.alive++
	}
	z.enemies[enemy.ID] = enemy
	z.enemyOrder = append(z.enemyOrder, enemy.ID)

	logginglifecycle.EnemySpawned(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: enemy.ID, Kind: logging.EntityKindEnemy},
		logginglifecycle.EnemySpawnedPayload{TemplateID: tpl.ID})
	return enemy
}
