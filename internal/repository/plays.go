package repository

import (
	"context"
	"fmt"
	"time"

	"portalrecruit/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// UpsertPlays inserts or updates plays in one transaction
func (db *Database) UpsertPlays(ctx context.Context, plays []*models.Play) (int, error) {
	rows := make([][]any, 0, len(plays))
	for _, p := range plays {
		rows = append(rows, playArgs(p))
	}

	n, err := db.execBatch(ctx, "upsert", "plays", upsertPlaySQL, rows)
	if err != nil {
		return 0, err
	}

	log.Debug().Int("count", n).Msg("Plays upserted")
	return n, nil
}

// ResolvedPlays returns every play attributed to a player id
func (db *Database) ResolvedPlays(ctx context.Context) ([]*models.Play, error) {
	return db.queryPlays(ctx, selectResolvedPlaysSQL)
}

// UnresolvedPlays returns every play without a player name
func (db *Database) UnresolvedPlays(ctx context.Context) ([]*models.Play, error) {
	return db.queryPlays(ctx, selectUnresolvedPlaysSQL)
}

func (db *Database) queryPlays(ctx context.Context, query string) ([]*models.Play, error) {
	start := time.Now()
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		observe("select", "plays", start, err)
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []*models.Play
	for rows.Next() {
		p, err := scanPlay(rows)
		if err != nil {
			return nil, err
		}
		plays = append(plays, p)
	}
	err = rows.Err()
	observe("select", "plays", start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating plays: %w", err)
	}

	return plays, nil
}

// ResolvePlayNames writes backfilled player attribution in one transaction
func (db *Database) ResolvePlayNames(ctx context.Context, updates []models.PlayNameUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin backfill: %w", err)
	}
	defer tx.Rollback(ctx)

	q := rebind(updatePlayNameSQL)
	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(q, u.PlayerName, u.PlayerID, u.PlayID)
	}

	results := tx.SendBatch(ctx, batch)
	updated := 0
	for range updates {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("failed to update play name: %w", err)
		}
		updated += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("failed to close backfill batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit backfill: %w", err)
	}
	return updated, nil
}
