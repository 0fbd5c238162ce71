package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Player binds a username to the entity its sheet is saved under.
type Player struct {
	Username  string
	EntityID  string
	CreatedAt time.Time
}

// ErrPlayerNotFound is returned when a player lookup yields no results.
var ErrPlayerNotFound = errors.New("player not found")

// PlayerRepository provides player identity persistence operations.
type PlayerRepository struct {
	db *pgxpool.Pool
}

// NewPlayerRepository creates a PlayerRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// GetByUsername retrieves a player by username.
//
// Postcondition: Returns the Player or ErrPlayerNotFound.
func (r *PlayerRepository) GetByUsername(ctx context.Context, username string) (Player, error) {
	var p Player
	err := r.db.QueryRow(ctx,
		`SELECT username, entity_id::text, created_at FROM players WHERE username = $1`,
		username,
	).Scan(&p.Username, &p.EntityID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Player{}, ErrPlayerNotFound
		}
		return Player{}, fmt.Errorf("querying player: %w", err)
	}
	return p, nil
}

// ResolveEntity returns the entity ID bound to username, binding a fresh one
// on first use.
//
// Precondition: username must be non-empty.
// Postcondition: Concurrent first calls for the same username agree on one ID.
func (r *PlayerRepository) ResolveEntity(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", errors.New("username must not be empty")
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO players (username, entity_id) VALUES ($1, $2)
		 ON CONFLICT (username) DO NOTHING`,
		username, uuid.NewString(),
	)
	if err != nil && !isDuplicateKeyError(err) {
		return "", fmt.Errorf("inserting player: %w", err)
	}
	p, err := r.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return p.EntityID, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
