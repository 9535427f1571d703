package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"portalrecruit/ingestion/internal/models"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var _ Store = (*SQLite)(nil)

// SQLite is the single-file store used for local runs and tests
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `
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
	game_id       TEXT NOT NULL REFERENCES games (game_id),
	period        INTEGER,
	clock_seconds INTEGER,
	clock_display TEXT,
	description   TEXT NOT NULL DEFAULT '',
	team_id       TEXT,
	player_id     TEXT,
	player_name   TEXT,
	x_loc         REAL,
	y_loc         REAL
);
CREATE INDEX IF NOT EXISTS idx_plays_game ON plays (game_id);
CREATE INDEX IF NOT EXISTS idx_plays_player ON plays (player_id);

CREATE TABLE IF NOT EXISTS player_traits (
	player_id    TEXT PRIMARY KEY,
	player_name  TEXT,
	dog_events   INTEGER NOT NULL DEFAULT 0,
	total_events INTEGER NOT NULL DEFAULT 0,
	dog_index    REAL NOT NULL DEFAULT 0
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
	fg_percent           REAL NOT NULL DEFAULT 0,
	fg_percent_effective REAL NOT NULL DEFAULT 0,
	shot2_percent        REAL NOT NULL DEFAULT 0,
	shot3_percent        REAL NOT NULL DEFAULT 0,
	ft_percent           REAL NOT NULL DEFAULT 0,
	updated_at           TEXT NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (player_id, season_id)
);
`

// NewSQLite opens the database named by a sqlite:// DSN
func NewSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	driverDSN, err := parseSQLiteDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing sqlite DSN: %w", err)
	}

	if path := strings.SplitN(driverDSN, "?", 2)[0]; path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", driverDSN)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One writer keeps :memory: databases shared and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}

	// plays.game_id is declared against games but not enforced, matching
	// Postgres: plays may reference games the current run has not written yet.
	pragmas := []string{
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = OFF;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	log.Info().Str("path", driverDSN).Msg("Opened sqlite store")
	return &SQLite{db: db}, nil
}

func parseSQLiteDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "sqlite://") {
		return "", fmt.Errorf("invalid sqlite DSN scheme, expected sqlite://")
	}

	rest := strings.TrimPrefix(dsn, "sqlite://")
	if rest == "" {
		return "", fmt.Errorf("sqlite DSN has no path")
	}
	if rest == ":memory:" || strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, "./") {
		return rest, nil
	}

	path, query, hasQuery := strings.Cut(rest, "?")
	unescaped, err := url.PathUnescape(path)
	if err != nil {
		return "", fmt.Errorf("unescaping path: %w", err)
	}
	path = unescaped
	if !filepath.IsAbs(path) {
		path = "./" + path
	}
	if hasQuery {
		return path + "?" + query, nil
	}
	return path, nil
}

// Close closes the underlying database
func (s *SQLite) Close() {
	if err := s.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close sqlite store")
	}
}

// PoolStats reports database/sql connection counts in the same keys as
// Database.PoolStats
func (s *SQLite) PoolStats() map[string]int64 {
	stat := s.db.Stats()
	return map[string]int64{
		"total_conns":    int64(stat.OpenConnections),
		"acquired_conns": int64(stat.InUse),
		"idle_conns":     int64(stat.Idle),
		"max_conns":      int64(stat.MaxOpenConnections),
	}
}

// Health pings the database file
func (s *SQLite) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite health check failed: %w", err)
	}
	return nil
}

// EnsureSchema creates missing tables and adds columns introduced later.
// SQLite has no ADD COLUMN IF NOT EXISTS, so a duplicate column is ignored.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	for _, col := range addedColumns {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", col.table, col.name, col.sqlite)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "duplicate column name") {
				continue
			}
			return fmt.Errorf("failed to add %s.%s: %w", col.table, col.name, err)
		}
	}

	log.Debug().Int("migrations", len(addedColumns)).Msg("SQLite schema ensured")
	return nil
}

// execBatch runs query once per argument row inside one transaction.
func (s *SQLite) execBatch(ctx context.Context, operation, table, query string, rows [][]any) (n int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	start := time.Now()
	defer func() { observe(operation, table, start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin %s transaction: %w", table, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare %s %s: %w", operation, table, err)
	}
	defer stmt.Close()

	affected := 0
	for _, args := range rows {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to %s %s: %w", operation, table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", table, err)
	}
	if operation == "update" {
		return affected, nil
	}
	return len(rows), nil
}

// SeasonGames returns game id -> status for every stored game of a season
func (s *SQLite) SeasonGames(ctx context.Context, seasonID string) (map[string]string, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, selectSeasonGamesSQL, seasonID)
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
func (s *SQLite) UpsertGames(ctx context.Context, games []*models.Game) (int, error) {
	rows := make([][]any, 0, len(games))
	for _, g := range games {
		rows = append(rows, gameArgs(g))
	}
	return s.execBatch(ctx, "upsert", "games", upsertGameSQL, rows)
}

// TeamHasPlayers reports whether any player of the team is stored
func (s *SQLite) TeamHasPlayers(ctx context.Context, teamID string) (bool, error) {
	start := time.Now()
	var exists bool
	err := s.db.QueryRowContext(ctx, teamHasPlayersSQL, teamID).Scan(&exists)
	observe("select", "players", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to check roster for team %s: %w", teamID, err)
	}
	return exists, nil
}

// UpsertPlayers inserts or updates players in one transaction
func (s *SQLite) UpsertPlayers(ctx context.Context, players []*models.Player) (int, error) {
	rows := make([][]any, 0, len(players))
	for _, p := range players {
		rows = append(rows, playerArgs(p))
	}
	return s.execBatch(ctx, "upsert", "players", upsertPlayerSQL, rows)
}

// PlayerIDs returns the set of stored player ids
func (s *SQLite) PlayerIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, selectPlayerIDsSQL)
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
func (s *SQLite) PlayersByName(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, selectPlayerNamesSQL)
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

// UpsertPlays inserts or updates plays in one transaction
func (s *SQLite) UpsertPlays(ctx context.Context, plays []*models.Play) (int, error) {
	rows := make([][]any, 0, len(plays))
	for _, p := range plays {
		rows = append(rows, playArgs(p))
	}
	return s.execBatch(ctx, "upsert", "plays", upsertPlaySQL, rows)
}

// ResolvedPlays returns every play attributed to a player id
func (s *SQLite) ResolvedPlays(ctx context.Context) ([]*models.Play, error) {
	return s.queryPlays(ctx, selectResolvedPlaysSQL)
}

// UnresolvedPlays returns every play without a player name
func (s *SQLite) UnresolvedPlays(ctx context.Context) ([]*models.Play, error) {
	return s.queryPlays(ctx, selectUnresolvedPlaysSQL)
}

func (s *SQLite) queryPlays(ctx context.Context, query string) ([]*models.Play, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query)
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
func (s *SQLite) ResolvePlayNames(ctx context.Context, updates []models.PlayNameUpdate) (int, error) {
	rows := make([][]any, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, []any{u.PlayerName, u.PlayerID, u.PlayID})
	}
	return s.execBatch(ctx, "update", "plays", updatePlayNameSQL, rows)
}

// ReplaceSeasonStats writes finalized season rows, replacing existing
// (player, season) rows
func (s *SQLite) ReplaceSeasonStats(ctx context.Context, stats []*models.PlayerSeasonStats) (int, error) {
	rows := make([][]any, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, seasonStatsArgs(st))
	}
	return s.execBatch(ctx, "upsert", "player_season_stats", upsertSeasonStatsSQL, rows)
}

// SeasonStats returns every stored stat row of a season
func (s *SQLite) SeasonStats(ctx context.Context, seasonID string) ([]*models.PlayerSeasonStats, error) {
	rows, err := s.db.QueryContext(ctx, selectSeasonStatsSQL, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query season stats: %w", err)
	}
	defer rows.Close()

	var stats []*models.PlayerSeasonStats
	for rows.Next() {
		st, err := scanSeasonStats(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating season stats: %w", err)
	}
	return stats, nil
}

// ReplaceTraits swaps the whole traits table in one transaction
func (s *SQLite) ReplaceTraits(ctx context.Context, traits []*models.PlayerTraits) (err error) {
	start := time.Now()
	defer func() { observe("replace", "player_traits", start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin traits transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteTraitsSQL); err != nil {
		return fmt.Errorf("failed to clear traits: %w", err)
	}

	if len(traits) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertTraitSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare traits insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range traits {
			if _, err := stmt.ExecContext(ctx, traitArgs(t)...); err != nil {
				return fmt.Errorf("failed to insert traits for %s: %w", t.PlayerID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit traits: %w", err)
	}
	return nil
}

// Traits returns every stored traits row, highest dog index first
func (s *SQLite) Traits(ctx context.Context) ([]*models.PlayerTraits, error) {
	rows, err := s.db.QueryContext(ctx, selectTraitsSQL)
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

// Counts returns row counts for the audit report
func (s *SQLite) Counts(ctx context.Context) (*models.StoreCounts, error) {
	var c models.StoreCounts
	err := s.db.QueryRowContext(ctx, countsSQL).Scan(
		&c.Games, &c.Plays, &c.PlaysWithPlayer, &c.Players, &c.PlayerTraits, &c.SeasonStats,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	return &c, nil
}

// Reset deletes every row from every table
func (s *SQLite) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range resetTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	log.Warn().Strs("tables", resetTables).Msg("Store reset")
	return nil
}
