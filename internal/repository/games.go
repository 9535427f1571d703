package repository

import (
	"context"
	"fmt"
	"time"

	"portalrecruit/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// SeasonGames returns game id -> status for every stored game of a season
func (db *Database) SeasonGames(ctx context.Context, seasonID string) (map[string]string, error) {
	start := time.Now()
	rows, err := db.Pool.Query(ctx, rebind(selectSeasonGamesSQL), seasonID)
	if err != nil {
		observe("select", "games", start, err)
		return nil, fmt.Errorf("failed to query season games: %w", err)
	}
	defer rows.Close()

	games := make(map[string]string)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games[id] = status
	}
	err = rows.Err()
	observe("select", "games", start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}

	return games, nil
}

// UpsertGames inserts or updates games in one transaction
func (db *Database) UpsertGames(ctx context.Context, games []*models.Game) (int, error) {
	rows := make([][]any, 0, len(games))
	for _, g := range games {
		rows = append(rows, gameArgs(g))
	}

	n, err := db.execBatch(ctx, "upsert", "games", upsertGameSQL, rows)
	if err != nil {
		return 0, err
	}

	log.Debug().Int("count", n).Msg("Games upserted")
	return n, nil
}
