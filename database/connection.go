package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// DefaultApplicationName tags ledger sessions in pg_stat_activity
const DefaultApplicationName = "runepoints"

// DB represents a database connection pool
type DB struct {
	*pgxpool.Pool
}

// PoolSettings tune the pool. Zero values keep the pgx defaults.
type PoolSettings struct {
	ApplicationName string
	MaxConns        int32
	MinConns        int32
}

// apply writes the settings onto a parsed pool config. Sessions always run
// in UTC; the service-day zone is applied in Go.
func (s PoolSettings) apply(config *pgxpool.Config) error {
	if s.MaxConns < 0 || s.MinConns < 0 {
		return fmt.Errorf("pool sizes must not be negative")
	}
	if s.MaxConns > 0 && s.MinConns > s.MaxConns {
		return fmt.Errorf("min conns %d exceeds max conns %d", s.MinConns, s.MaxConns)
	}

	params := config.ConnConfig.RuntimeParams
	params["timezone"] = "UTC"
	name := s.ApplicationName
	if name == "" {
		name = DefaultApplicationName
	}
	params["application_name"] = name

	if s.MaxConns > 0 {
		config.MaxConns = s.MaxConns
	}
	if s.MinConns > 0 {
		config.MinConns = s.MinConns
	}
	return nil
}

// NewConnection creates a pool with the given settings and checks it responds
func NewConnection(ctx context.Context, databaseURL string, settings PoolSettings) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if err := settings.apply(config); err != nil {
		return nil, fmt.Errorf("invalid pool settings: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(log.Fields{
		"application_name": config.ConnConfig.RuntimeParams["application_name"],
		"max_conns":        config.MaxConns,
		"min_conns":        config.MinConns,
	}).Debug("Database pool ready")
	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}
