package state

// Transition tables for the discrete entity state machines. Every state
// change funnels through these so the legal moves are enumerable in tests
// and an out-of-table transition is a bug, not a silent overwrite.

var characterTransitions = map[CharacterState]map[CharacterState]bool{
	CharacterIdle: {
		CharacterMoving:       true,
		CharacterAttacking:    true,
		CharacterMovingToLoot: true,
		CharacterDead:         true,
	},
	CharacterMoving: {
		CharacterIdle:         true,
		CharacterAttacking:    true,
		CharacterMovingToLoot: true,
		CharacterDead:         true,
	},
	CharacterAttacking: {
		CharacterIdle:         true,
		CharacterMoving:       true,
		CharacterMovingToLoot: true,
		CharacterDead:         true,
	},
	CharacterMovingToLoot: {
		CharacterIdle:        true,
		CharacterMoving:      true,
		CharacterAttacking:   true,
		CharacterLootingArea: true,
		CharacterDead:        true,
	},
	CharacterLootingArea: {
		CharacterIdle:         true,
		CharacterMoving:       true,
		CharacterAttacking:    true,
		CharacterMovingToLoot: true,
		CharacterDead:         true,
	},
	// Dead exits only through Respawn.
	CharacterDead: {},
}

// CharacterTransitionAllowed reports whether the table permits from -> to.
func CharacterTransitionAllowed(from, to CharacterState) bool {
	return characterTransitions[from][to]
}

var enemyTransitions = map[EnemyState]map[EnemyState]bool{
	EnemyIdle: {
		EnemyWandering: true,
		EnemyChasing:   true,
		EnemyFleeing:   true,
	},
	EnemyWandering: {
		EnemyIdle:    true,
		EnemyChasing: true,
		EnemyFleeing: true,
	},
	EnemyChasing: {
		EnemyIdle:      true,
		EnemyWandering: true,
		EnemyAttacking: true,
		EnemyFleeing:   true,
	},
	EnemyAttacking: {
		EnemyIdle:      true,
		EnemyWandering: true,
		EnemyChasing:   true,
		EnemyFleeing:   true,
	},
	EnemyFleeing: {
		EnemyIdle:      true,
		EnemyWandering: true,
		EnemyChasing:   true,
	},
}

// EnemyTransitionAllowed reports whether the table permits from -> to.
func EnemyTransitionAllowed(from, to EnemyState) bool {
	return enemyTransitions[from][to]
}
