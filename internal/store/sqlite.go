package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"emberwake/server/internal/state"
)

const schema = `
CREATE TABLE IF NOT EXISTS characters (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	level      INTEGER NOT NULL,
	xp         INTEGER NOT NULL,
	inventory  TEXT NOT NULL,
	equipment  TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// SQLiteRepository persists characters in a single-file SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ CharacterRepository = (*SQLiteRepository)(nil)

// OpenSQLite opens (creating if needed) the character database at path.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Load fetches the record for the character id.
func (r *SQLiteRepository) Load(ctx context.Context, id string) (CharacterRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, level, xp, inventory, equipment FROM characters WHERE id = ?`, id)

	var record CharacterRecord
	var inventoryJSON, equipmentJSON []byte
	err := row.Scan(&record.ID, &record.Name, &record.Level, &record.XP, &inventoryJSON, &equipmentJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return CharacterRecord{}, ErrNotFound
	}
	if err != nil {
		return CharacterRecord{}, fmt.Errorf("load character %s: %w", id, err)
	}
	if err := json.Unmarshal(inventoryJSON, &record.Inventory); err != nil {
		return CharacterRecord{}, fmt.Errorf("decode inventory for %s: %w", id, err)
	}
	if err := json.Unmarshal(equipmentJSON, &record.Equipment); err != nil {
		return CharacterRecord{}, fmt.Errorf("decode equipment for %s: %w", id, err)
	}
	if len(record.Inventory.Slots) == 0 {
		record.Inventory = state.NewInventory(state.DefaultInventoryCapacity)
	}
	return record, nil
}

// Save upserts the record.
func (r *SQLiteRepository) Save(ctx context.Context, record CharacterRecord) error {
	if record.ID == "" {
		return fmt.Errorf("empty character id")
	}
	inventoryJSON, err := json.Marshal(record.Inventory)
	if err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	equipmentJSON, err := json.Marshal(record.Equipment)
	if err != nil {
		return fmt.Errorf("encode equipment: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO characters (id, name, level, xp, inventory, equipment, updated_at)
VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	level = excluded.level,
	xp = excluded.xp,
	inventory = excluded.inventory,
	equipment = excluded.equipment,
	updated_at = excluded.updated_at`,
		record.ID, record.Name, record.Level, record.XP, inventoryJSON, equipmentJSON)
	if err != nil {
		return fmt.Errorf("save character %s: %w", record.ID, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// MemoryRepository keeps records in a map. Used in tests and when no
// database path is configured.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]CharacterRecord
}

var _ CharacterRepository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]CharacterRecord)}
}

func (r *MemoryRepository) Load(_ context.Context, id string) (CharacterRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return CharacterRecord{}, ErrNotFound
	}
	record.Inventory = record.Inventory.Clone()
	record.Equipment = record.Equipment.Clone()
	return record, nil
}

func (r *MemoryRepository) Save(_ context.Context, record CharacterRecord) error {
	if record.ID == "" {
		return fmt.Errorf("empty character id")
	}
	record.Inventory = record.Inventory.Clone()
	record.Equipment = record.Equipment.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
