// Package store persists character progression between sessions. The zone
// simulation never touches it on the hot path; records load on join and save
// on leave.
package store

import (
	"context"
	"errors"

	"emberwake/server/internal/state"
)

// ErrNotFound is returned when no record exists for the character id.
var ErrNotFound = errors.New("character_not_found")

// CharacterRecord is the persistent slice of a character.
type CharacterRecord struct {
	ID        string
	Name      string
	Level     int
	XP        int64
	Inventory state.Inventory
	Equipment state.Equipment
}

// CharacterRepository loads and saves character records.
type CharacterRepository interface {
	Load(ctx context.Context, id string) (CharacterRecord, error)
	Save(ctx context.Context, record CharacterRecord) error
	Close() error
}
