package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"portalrecruit/ingestion/internal/config"
	"portalrecruit/ingestion/internal/metrics"
	"portalrecruit/ingestion/internal/models"
)

// Store is the relational store behind ingestion and derivation. Writes keyed
// on natural ids replace the existing row, and every batch commits in a
// single transaction.
type Store interface {
	EnsureSchema(ctx context.Context) error

	// SeasonGames returns game id -> status for every stored game of a season.
	SeasonGames(ctx context.Context, seasonID string) (map[string]string, error)
	UpsertGames(ctx context.Context, games []*models.Game) (int, error)

	TeamHasPlayers(ctx context.Context, teamID string) (bool, error)
	UpsertPlayers(ctx context.Context, players []*models.Player) (int, error)
	PlayerIDs(ctx context.Context) (map[string]struct{}, error)
	// PlayersByName returns lower-cased full name -> player id.
	PlayersByName(ctx context.Context) (map[string]string, error)

	UpsertPlays(ctx context.Context, plays []*models.Play) (int, error)
	// ResolvedPlays returns every play attributed to a player id.
	ResolvedPlays(ctx context.Context) ([]*models.Play, error)
	// UnresolvedPlays returns every play without a player name.
	UnresolvedPlays(ctx context.Context) ([]*models.Play, error)
	ResolvePlayNames(ctx context.Context, updates []models.PlayNameUpdate) (int, error)

	ReplaceSeasonStats(ctx context.Context, stats []*models.PlayerSeasonStats) (int, error)
	SeasonStats(ctx context.Context, seasonID string) ([]*models.PlayerSeasonStats, error)

	// ReplaceTraits swaps the whole traits table for the given rows.
	ReplaceTraits(ctx context.Context, traits []*models.PlayerTraits) error
	Traits(ctx context.Context) ([]*models.PlayerTraits, error)

	Counts(ctx context.Context) (*models.StoreCounts, error)
	Reset(ctx context.Context) error
	Health(ctx context.Context) error
	Close()
}

// Open connects the store selected by cfg.StoreDriver and ensures its schema.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store, err = NewDatabase(ctx, Config{
			Host:     cfg.DatabaseHost,
			Port:     strconv.Itoa(cfg.DatabasePort),
			User:     cfg.DatabaseUser,
			Password: cfg.DatabasePassword,
			Database: cfg.DatabaseName,
			SSLMode:  cfg.DatabaseSSLMode,
		})
	case config.DriverSQLite:
		store, err = NewSQLite(ctx, cfg.SQLiteDSN())
	default:
		return nil, &config.ConfigurationError{Field: "STORE_DRIVER", Reason: fmt.Sprintf("unsupported driver %q", cfg.StoreDriver)}
	}
	if err != nil {
		return nil, err
	}

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// observe records a store operation in the DB metrics.
func observe(operation, table string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDBQuery(operation, table, status, time.Since(start).Seconds())
}
