package repository

import (
	"context"
	"fmt"

	"portalrecruit/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// ReplaceSeasonStats writes finalized season rows, replacing existing
// (player, season) rows
func (db *Database) ReplaceSeasonStats(ctx context.Context, stats []*models.PlayerSeasonStats) (int, error) {
	rows := make([][]any, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, seasonStatsArgs(s))
	}

	n, err := db.execBatch(ctx, "upsert", "player_season_stats", upsertSeasonStatsSQL, rows)
	if err != nil {
		return 0, err
	}

	log.Debug().Int("count", n).Msg("Season stats written")
	return n, nil
}

// SeasonStats returns every stored stat row of a season
func (db *Database) SeasonStats(ctx context.Context, seasonID string) ([]*models.PlayerSeasonStats, error) {
	rows, err := db.Pool.Query(ctx, rebind(selectSeasonStatsSQL), seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query season stats: %w", err)
	}
	defer rows.Close()

	var stats []*models.PlayerSeasonStats
	for rows.Next() {
		s, err := scanSeasonStats(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating season stats: %w", err)
	}

	return stats, nil
}
