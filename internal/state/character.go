package state

import "fmt"

// CharacterState is the discrete behavior label broadcast to clients.
type CharacterState string

const (
	CharacterIdle         CharacterState = "idle"
	CharacterMoving       CharacterState = "moving"
	CharacterAttacking    CharacterState = "attacking"
	CharacterDead         CharacterState = "dead"
	CharacterMovingToLoot CharacterState = "moving_to_loot"
	CharacterLootingArea  CharacterState = "looting_area"
)

// Character is the wire-visible record for a player-controlled entity.
type Character struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Level     int            `json:"level"`
	XP        int64          `json:"xp"`
	X         float64        `json:"x"`
	Y         float64        `json:"y"`
	Health    int            `json:"health"`
	MaxHealth int            `json:"maxHealth"`
	Attack    int            `json:"attack"`
	Defense   int            `json:"defense"`
	State     CharacterState `json:"state"`
}

// SetHealth clamps the new value to [0, MaxHealth] and keeps the dead state
// in sync with the zero-health invariant.
func (c *Character) SetHealth(health int) {
	if c == nil {
		return
	}
	if health < 0 {
		health = 0
	}
	if health > c.MaxHealth {
		health = c.MaxHealth
	}
	c.Health = health
	if c.Health == 0 && c.State != CharacterDead {
		c.State = CharacterDead
	}
}

// ApplyDamage reduces health by the given amount and reports whether the
// character died as a result.
func (c *Character) ApplyDamage(amount int) bool {
	if c == nil || amount <= 0 || c.Health == 0 {
		return false
	}
	c.SetHealth(c.Health - amount)
	return c.Health == 0
}

// Alive reports whether the character can act or be targeted.
func (c *Character) Alive() bool {
	return c != nil && c.Health > 0 && c.State != CharacterDead
}

// TransitionTo applies a state change through the transition table. Invalid
// transitions are rejected so state drift surfaces as an error instead of a
// corrupted broadcast.
func (c *Character) TransitionTo(next CharacterState) error {
	if c == nil {
		return fmt.Errorf("nil character")
	}
	if c.State == next {
		return nil
	}
	if !CharacterTransitionAllowed(c.State, next) {
		return fmt.Errorf("invalid character transition %s -> %s", c.State, next)
	}
	c.State = next
	return nil
}

// Respawn resets a dead character to idle at the given position with full
// health. It is the only legal exit from the dead state.
func (c *Character) Respawn(x, y float64) error {
	if c == nil {
		return fmt.Errorf("nil character")
	}
	if c.State != CharacterDead {
		return fmt.Errorf("respawn requires dead state, have %s", c.State)
	}
	c.X = x
	c.Y = y
	c.Health = c.MaxHealth
	c.State = CharacterIdle
	return nil
}
