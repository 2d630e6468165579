package state

import "fmt"

// EnemyState is the discrete AI label broadcast to clients.
type EnemyState string

const (
	EnemyIdle      EnemyState = "idle"
	EnemyWandering EnemyState = "wandering"
	EnemyChasing   EnemyState = "chasing"
	EnemyAttacking EnemyState = "attacking"
	EnemyFleeing   EnemyState = "fleeing"
)

// Enemy is the wire-visible record for a hostile creature instance.
type Enemy struct {
	ID         string     `json:"id"`
	TemplateID string     `json:"templateId"`
	Name       string     `json:"name"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Health     int        `json:"health"`
	MaxHealth  int        `json:"maxHealth"`
	State      EnemyState `json:"state"`
	TargetID   string     `json:"targetId,omitempty"`
}

// SetHealth clamps the new value to [0, MaxHealth].
func (e *Enemy) SetHealth(health int) {
	if e == nil {
		return
	}
	if health < 0 {
		health = 0
	}
	if health > e.MaxHealth {
		health = e.MaxHealth
	}
	e.Health = health
}

// ApplyDamage reduces health and reports whether the enemy died.
func (e *Enemy) ApplyDamage(amount int) bool {
	if e == nil || amount <= 0 || e.Health == 0 {
		return false
	}
	e.SetHealth(e.Health - amount)
	return e.Health == 0
}

// Alive reports whether the enemy is still part of the live zone.
func (e *Enemy) Alive() bool {
	return e != nil && e.Health > 0
}

// TransitionTo applies an AI state change through the transition table.
func (e *Enemy) TransitionTo(next EnemyState) error {
	if e == nil {
		return fmt.Errorf("nil enemy")
	}
	if e.State == next {
		return nil
	}
	if !EnemyTransitionAllowed(e.State, next) {
		return fmt.Errorf("invalid enemy transition %s -> %s", e.State, next)
	}
	e.State = next
	return nil
}

// ClearTarget drops the current target and returns the enemy toward a
// neutral state. Call whenever the target invariant (live, in-zone) breaks.
func (e *Enemy) ClearTarget() {
	if e == nil {
		return
	}
	e.TargetID = ""
	switch e.State {
	case EnemyChasing, EnemyAttacking:
		e.State = EnemyIdle
	}
}
