package repository

import (
	"context"
	"fmt"
	"time"

	"portalrecruit/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var _ Store = (*Database)(nil)

// Database is the PostgreSQL store backed by a pgx connection pool
type Database struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDatabase creates a new database connection pool
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	// Build connection string
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	// Configure connection pool
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Ingestion is sequential; a small pool is plenty
	poolConfig.MaxConns = 8
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// Create connection pool
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Successfully connected to database")

	return &Database{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// PoolStats returns connection pool statistics for the worker's /status
func (db *Database) PoolStats() map[string]int64 {
	stat := db.Pool.Stat()
	return map[string]int64{
		"total_conns":    int64(stat.TotalConns()),
		"acquired_conns": int64(stat.AcquiredConns()),
		"idle_conns":     int64(stat.IdleConns()),
		"max_conns":      int64(stat.MaxConns()),
	}
}

// execBatch runs query once per argument row inside one transaction.
func (db *Database) execBatch(ctx context.Context, operation, table, query string, rows [][]any) (n int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	start := time.Now()
	defer func() { observe(operation, table, start, err) }()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin %s transaction: %w", table, err)
	}
	defer tx.Rollback(ctx)

	q := rebind(query)
	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(q, args...)
	}

	results := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("failed to %s %s: %w", operation, table, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s batch: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return len(rows), nil
}

// Counts returns row counts for the audit report
func (db *Database) Counts(ctx context.Context) (*models.StoreCounts, error) {
	var c models.StoreCounts
	err := db.Pool.QueryRow(ctx, countsSQL).Scan(
		&c.Games, &c.Plays, &c.PlaysWithPlayer, &c.Players, &c.PlayerTraits, &c.SeasonStats,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	return &c, nil
}

// Reset deletes every row from every table
func (db *Database) Reset(ctx context.Context) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range resetTables {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	log.Warn().Strs("tables", resetTables).Msg("Store reset")
	return nil
}
