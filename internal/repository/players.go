package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"portalrecruit/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// TeamHasPlayers reports whether any player of the team is stored
func (db *Database) TeamHasPlayers(ctx context.Context, teamID string) (bool, error) {
	start := time.Now()
	var exists bool
	err := db.Pool.QueryRow(ctx, rebind(teamHasPlayersSQL), teamID).Scan(&exists)
	observe("select", "players", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to check roster for team %s: %w", teamID, err)
	}
	return exists, nil
}

// UpsertPlayers inserts or updates players in one transaction
func (db *Database) UpsertPlayers(ctx context.Context, players []*models.Player) (int, error) {
	rows := make([][]any, 0, len(players))
	for _, p := range players {
		rows = append(rows, playerArgs(p))
	}

	n, err := db.execBatch(ctx, "upsert", "players", upsertPlayerSQL, rows)
	if err != nil {
		return 0, err
	}

	log.Debug().Int("count", n).Msg("Players upserted")
	return n, nil
}

// PlayerIDs returns the set of stored player ids
func (db *Database) PlayerIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.Pool.Query(ctx, selectPlayerIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query player ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan player id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player ids: %w", err)
	}

	return ids, nil
}

// PlayersByName returns lower-cased full name -> player id
func (db *Database) PlayersByName(ctx context.Context) (map[string]string, error) {
	rows, err := db.Pool.Query(ctx, selectPlayerNamesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query player names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan player name: %w", err)
		}
		names[strings.ToLower(strings.TrimSpace(name))] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player names: %w", err)
	}

	return names, nil
}
