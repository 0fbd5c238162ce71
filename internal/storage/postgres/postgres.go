// Package postgres stores character sheets and player identities in
// PostgreSQL through pgx v5.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/actioncore/internal/config"
)

// ApplicationName identifies the server's sessions in pg_stat_activity.
const ApplicationName = "actioncore"

// Pool owns the server's pgx connection pool.
type Pool struct {
	pool *pgxpool.Pool
}

// PoolStats is a point-in-time view of connection usage.
type PoolStats struct {
	Total    int32
	Idle     int32
	Acquired int32
}

// NewPool connects and pings the database.
//
// Precondition: cfg must pass config validation.
// Postcondition: Returns a Pool that answered a ping, or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// Health pings within timeout and reports pool usage either way.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) (PoolStats, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := p.pool.Ping(ctx)
	st := p.pool.Stat()
	return PoolStats{Total: st.TotalConns(), Idle: st.IdleConns(), Acquired: st.AcquiredConns()}, err
}

// Close waits for acquired connections to be released and closes the pool.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the pool for repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}

// inTx runs fn in a transaction, committing when fn returns nil.
func inTx(ctx context.Context, db *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
