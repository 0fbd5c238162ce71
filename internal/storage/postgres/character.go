package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/actioncore/internal/game/character"
)

// SheetRepository persists character sheets across the character_sheets,
// sheet_pools, sheet_unlocked, and sheet_loadout tables.
type SheetRepository struct {
	db *pgxpool.Pool
}

// NewSheetRepository creates a SheetRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSheetRepository(db *pgxpool.Pool) *SheetRepository {
	return &SheetRepository{db: db}
}

// Save replaces everything stored for entityID with snap in one transaction.
//
// Precondition: entityID must be non-empty; snap.Level must be >= 1.
// Postcondition: A later Load returns a snapshot equal to snap, except that
// empty loadout slots after the last equipped one are not kept.
func (r *SheetRepository) Save(ctx context.Context, entityID string, snap character.SheetSnapshot) error {
	if entityID == "" {
		return errors.New("entity id must not be empty")
	}
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO character_sheets (entity_id, archetype_id, level, experience)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (entity_id) DO UPDATE
			SET archetype_id = EXCLUDED.archetype_id,
			    level        = EXCLUDED.level,
			    experience   = EXCLUDED.experience,
			    updated_at   = NOW()`,
			entityID, snap.ArchetypeID, snap.Level, snap.Experience,
		); err != nil {
			return fmt.Errorf("upserting sheet: %w", err)
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM sheet_pools WHERE entity_id = $1`, entityID)
		batch.Queue(`DELETE FROM sheet_unlocked WHERE entity_id = $1`, entityID)
		batch.Queue(`DELETE FROM sheet_loadout WHERE entity_id = $1`, entityID)
		for _, id := range sortedKeys(snap.Pools) {
			batch.Queue(`INSERT INTO sheet_pools (entity_id, pool_id, current) VALUES ($1, $2, $3)`,
				entityID, id, snap.Pools[id])
		}
		for _, id := range sortedKeys(snap.Unlocked) {
			batch.Queue(`INSERT INTO sheet_unlocked (entity_id, action_id, unlock_level) VALUES ($1, $2, $3)`,
				entityID, id, snap.Unlocked[id])
		}
		for slot, id := range snap.Loadout {
			if id == "" {
				continue
			}
			batch.Queue(`INSERT INTO sheet_loadout (entity_id, slot, action_id) VALUES ($1, $2, $3)`,
				entityID, slot, id)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("writing sheet rows: %w", err)
		}
		return nil
	})
}

// Load returns the snapshot saved for entityID.
//
// Postcondition: Returns (snapshot, true, nil) when a sheet exists,
// (zero, false, nil) when none does, or a non-nil error.
func (r *SheetRepository) Load(ctx context.Context, entityID string) (character.SheetSnapshot, bool, error) {
	snap := character.SheetSnapshot{
		Unlocked: make(map[string]int),
		Pools:    make(map[string]float64),
	}
	err := r.db.QueryRow(ctx, `
		SELECT archetype_id, level, experience
		FROM character_sheets WHERE entity_id = $1`,
		entityID,
	).Scan(&snap.ArchetypeID, &snap.Level, &snap.Experience)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return character.SheetSnapshot{}, false, nil
		}
		return character.SheetSnapshot{}, false, fmt.Errorf("querying sheet: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT pool_id, current FROM sheet_pools WHERE entity_id = $1`, entityID)
	if err != nil {
		return character.SheetSnapshot{}, false, fmt.Errorf("querying pools: %w", err)
	}
	var (
		id      string
		current float64
	)
	if _, err := pgx.ForEachRow(rows, []any{&id, &current}, func() error {
		snap.Pools[id] = current
		return nil
	}); err != nil {
		return character.SheetSnapshot{}, false, fmt.Errorf("scanning pools: %w", err)
	}

	rows, err = r.db.Query(ctx, `SELECT action_id, unlock_level FROM sheet_unlocked WHERE entity_id = $1`, entityID)
	if err != nil {
		return character.SheetSnapshot{}, false, fmt.Errorf("querying unlocked actions: %w", err)
	}
	var level int
	if _, err := pgx.ForEachRow(rows, []any{&id, &level}, func() error {
		snap.Unlocked[id] = level
		return nil
	}); err != nil {
		return character.SheetSnapshot{}, false, fmt.Errorf("scanning unlocked actions: %w", err)
	}

	rows, err = r.db.Query(ctx, `SELECT slot, action_id FROM sheet_loadout WHERE entity_id = $1 ORDER BY slot`, entityID)
	if err != nil {
		return character.SheetSnapshot{}, false, fmt.Errorf("querying loadout: %w", err)
	}
	var slot int
	if _, err := pgx.ForEachRow(rows, []any{&slot, &id}, func() error {
		for len(snap.Loadout) <= slot {
			snap.Loadout = append(snap.Loadout, "")
		}
		snap.Loadout[slot] = id
		return nil
	}); err != nil {
		return character.SheetSnapshot{}, false, fmt.Errorf("scanning loadout: %w", err)
	}
	return snap, true, nil
}

// Delete removes the sheet and its rows.
//
// Postcondition: Returns nil whether or not a sheet existed.
func (r *SheetRepository) Delete(ctx context.Context, entityID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM character_sheets WHERE entity_id = $1`, entityID); err != nil {
		return fmt.Errorf("deleting sheet: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
