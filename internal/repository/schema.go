package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS games (
	game_id    TEXT PRIMARY KEY,
	season_id  TEXT NOT NULL DEFAULT '',
	date       TEXT,
	home_team  TEXT,
	away_team  TEXT,
	home_score INTEGER,
	away_score INTEGER,
	status     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_games_season ON games (season_id);

CREATE TABLE IF NOT EXISTS players (
	player_id  TEXT PRIMARY KEY,
	team_id    TEXT,
	first_name TEXT,
	last_name  TEXT,
	full_name  TEXT NOT NULL DEFAULT '',
	position   TEXT,
	height_in  INTEGER,
	weight_lb  INTEGER,
	class_year TEXT
);
CREATE INDEX IF NOT EXISTS idx_players_team ON players (team_id);

CREATE TABLE IF NOT EXISTS plays (
	play_id       TEXT PRIMARY KEY,
	game_id       TEXT NOT NULL, -- games.game_id, not enforced
	period        INTEGER,
	clock_seconds INTEGER,
	clock_display TEXT,
	description   TEXT NOT NULL DEFAULT '',
	team_id       TEXT,
	player_id     TEXT,
	player_name   TEXT,
	x_loc         DOUBLE PRECISION,
	y_loc         DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_plays_game ON plays (game_id);
CREATE INDEX IF NOT EXISTS idx_plays_player ON plays (player_id);

CREATE TABLE IF NOT EXISTS player_traits (
	player_id    TEXT PRIMARY KEY,
	player_name  TEXT,
	dog_events   INTEGER NOT NULL DEFAULT 0,
	total_events INTEGER NOT NULL DEFAULT 0,
	dog_index    DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS player_season_stats (
	player_id            TEXT NOT NULL,
	season_id            TEXT NOT NULL,
	team_id              TEXT NOT NULL DEFAULT '',
	gp                   INTEGER NOT NULL DEFAULT 0,
	possessions          INTEGER NOT NULL DEFAULT 0,
	points               INTEGER NOT NULL DEFAULT 0,
	fg_made              INTEGER NOT NULL DEFAULT 0,
	fg_miss              INTEGER NOT NULL DEFAULT 0,
	fg_attempt           INTEGER NOT NULL DEFAULT 0,
	shot2_made           INTEGER NOT NULL DEFAULT 0,
	shot2_miss           INTEGER NOT NULL DEFAULT 0,
	shot2_attempt        INTEGER NOT NULL DEFAULT 0,
	shot3_made           INTEGER NOT NULL DEFAULT 0,
	shot3_miss           INTEGER NOT NULL DEFAULT 0,
	shot3_attempt        INTEGER NOT NULL DEFAULT 0,
	ft_made              INTEGER NOT NULL DEFAULT 0,
	ft_miss              INTEGER NOT NULL DEFAULT 0,
	ft_attempt           INTEGER NOT NULL DEFAULT 0,
	plus_one             INTEGER NOT NULL DEFAULT 0,
	shot_foul            INTEGER NOT NULL DEFAULT 0,
	score                INTEGER NOT NULL DEFAULT 0,
	turnover             INTEGER NOT NULL DEFAULT 0,
	fg_percent           DOUBLE PRECISION NOT NULL DEFAULT 0,
	fg_percent_effective DOUBLE PRECISION NOT NULL DEFAULT 0,
	shot2_percent        DOUBLE PRECISION NOT NULL DEFAULT 0,
	shot3_percent        DOUBLE PRECISION NOT NULL DEFAULT 0,
	ft_percent           DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (player_id, season_id)
);
`

const dropPlaysGameFKSQL = `ALTER TABLE plays DROP CONSTRAINT IF EXISTS plays_game_id_fkey`

// EnsureSchema creates missing tables and applies additive column migrations
func (db *Database) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	for _, col := range addedColumns {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", col.table, col.name, col.postgres)
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", col.table, col.name, err)
		}
	}

	// Older schemas enforced plays.game_id; plays may land before their game.
	if _, err := db.Pool.Exec(ctx, dropPlaysGameFKSQL); err != nil {
		return fmt.Errorf("failed to relax plays.game_id: %w", err)
	}

	log.Debug().Int("migrations", len(addedColumns)).Msg("Postgres schema ensured")
	return nil
}
