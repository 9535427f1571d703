package repository

import (
	"context"
	"fmt"
	"time"

	"portalrecruit/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// ReplaceTraits swaps the whole traits table in one transaction
func (db *Database) ReplaceTraits(ctx context.Context, traits []*models.PlayerTraits) (err error) {
	start := time.Now()
	defer func() { observe("replace", "player_traits", start, err) }()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin traits transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteTraitsSQL); err != nil {
		return fmt.Errorf("failed to clear traits: %w", err)
	}

	if len(traits) > 0 {
		q := rebind(insertTraitSQL)
		batch := &pgx.Batch{}
		for _, t := range traits {
			batch.Queue(q, traitArgs(t)...)
		}
		results := tx.SendBatch(ctx, batch)
		for range traits {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert traits: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close traits batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit traits: %w", err)
	}

	log.Debug().Int("count", len(traits)).Msg("Traits replaced")
	return nil
}

// Traits returns every stored traits row, highest dog index first
func (db *Database) Traits(ctx context.Context) ([]*models.PlayerTraits, error) {
	rows, err := db.Pool.Query(ctx, selectTraitsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query traits: %w", err)
	}
	defer rows.Close()

	var traits []*models.PlayerTraits
	for rows.Next() {
		t, err := scanTrait(rows)
		if err != nil {
			return nil, err
		}
		traits = append(traits, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating traits: %w", err)
	}

	return traits, nil
}
