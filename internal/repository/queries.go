package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"portalrecruit/ingestion/internal/models"
)

// Statements are written with ? placeholders and rebound to $n for Postgres.
// Both dialects accept ON CONFLICT ... DO UPDATE with excluded.*.

const upsertGameSQL = `
	INSERT INTO games (
		game_id, season_id, date, home_team, away_team,
		home_score, away_score, status, video_path
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (game_id) DO UPDATE SET
		season_id = excluded.season_id,
		date = excluded.date,
		home_team = excluded.home_team,
		away_team = excluded.away_team,
		home_score = excluded.home_score,
		away_score = excluded.away_score,
		status = excluded.status,
		video_path = COALESCE(excluded.video_path, games.video_path)
`

const selectSeasonGamesSQL = `SELECT game_id, status FROM games WHERE season_id = ?`

const upsertPlayerSQL = `
	INSERT INTO players (
		player_id, team_id, first_name, last_name, full_name,
		position, height_in, weight_lb, class_year
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (player_id) DO UPDATE SET
		team_id = excluded.team_id,
		first_name = excluded.first_name,
		last_name = excluded.last_name,
		full_name = excluded.full_name,
		position = excluded.position,
		height_in = excluded.height_in,
		weight_lb = excluded.weight_lb,
		class_year = excluded.class_year
`

const teamHasPlayersSQL = `SELECT EXISTS (SELECT 1 FROM players WHERE team_id = ?)`

const selectPlayerIDsSQL = `SELECT player_id FROM players`

const selectPlayerNamesSQL = `SELECT player_id, full_name FROM players WHERE full_name <> ''`

// Backfilled player attribution survives a re-ingest that carries none.
const upsertPlaySQL = `
	INSERT INTO plays (
		play_id, game_id, period, clock_seconds, clock_display, description,
		team_id, player_id, player_name, x_loc, y_loc, tags
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (play_id) DO UPDATE SET
		game_id = excluded.game_id,
		period = excluded.period,
		clock_seconds = excluded.clock_seconds,
		clock_display = excluded.clock_display,
		description = excluded.description,
		team_id = excluded.team_id,
		player_id = COALESCE(excluded.player_id, plays.player_id),
		player_name = COALESCE(excluded.player_name, plays.player_name),
		x_loc = excluded.x_loc,
		y_loc = excluded.y_loc,
		tags = excluded.tags
`

const playColumns = `play_id, game_id, period, clock_seconds, clock_display, description,
		team_id, player_id, player_name, x_loc, y_loc, tags`

const selectResolvedPlaysSQL = `
	SELECT ` + playColumns + `
	FROM plays
	WHERE player_id IS NOT NULL AND player_id <> ''
	ORDER BY game_id, play_id
`

const selectUnresolvedPlaysSQL = `
	SELECT ` + playColumns + `
	FROM plays
	WHERE player_name IS NULL OR player_name = ''
	ORDER BY game_id, play_id
`

// updatePlayNameSQL never replaces a player id the upstream already set.
const updatePlayNameSQL = `
	UPDATE plays
	SET player_name = ?, player_id = COALESCE(NULLIF(player_id, ''), ?)
	WHERE play_id = ?`

const upsertSeasonStatsSQL = `
	INSERT INTO player_season_stats (
		player_id, season_id, team_id,
		gp, possessions, points,
		fg_made, fg_miss, fg_attempt,
		shot2_made, shot2_miss, shot2_attempt,
		shot3_made, shot3_miss, shot3_attempt,
		ft_made, ft_miss, ft_attempt,
		plus_one, shot_foul, score, turnover,
		fg_percent, fg_percent_effective, shot2_percent, shot3_percent, ft_percent,
		updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (player_id, season_id) DO UPDATE SET
		team_id = excluded.team_id,
		gp = excluded.gp,
		possessions = excluded.possessions,
		points = excluded.points,
		fg_made = excluded.fg_made,
		fg_miss = excluded.fg_miss,
		fg_attempt = excluded.fg_attempt,
		shot2_made = excluded.shot2_made,
		shot2_miss = excluded.shot2_miss,
		shot2_attempt = excluded.shot2_attempt,
		shot3_made = excluded.shot3_made,
		shot3_miss = excluded.shot3_miss,
		shot3_attempt = excluded.shot3_attempt,
		ft_made = excluded.ft_made,
		ft_miss = excluded.ft_miss,
		ft_attempt = excluded.ft_attempt,
		plus_one = excluded.plus_one,
		shot_foul = excluded.shot_foul,
		score = excluded.score,
		turnover = excluded.turnover,
		fg_percent = excluded.fg_percent,
		fg_percent_effective = excluded.fg_percent_effective,
		shot2_percent = excluded.shot2_percent,
		shot3_percent = excluded.shot3_percent,
		ft_percent = excluded.ft_percent,
		updated_at = excluded.updated_at
`

const selectSeasonStatsSQL = `
	SELECT player_id, season_id, team_id,
		gp, possessions, points,
		fg_made, fg_miss, fg_attempt,
		shot2_made, shot2_miss, shot2_attempt,
		shot3_made, shot3_miss, shot3_attempt,
		ft_made, ft_miss, ft_attempt,
		plus_one, shot_foul, score, turnover,
		fg_percent, fg_percent_effective, shot2_percent, shot3_percent, ft_percent,
		updated_at
	FROM player_season_stats
	WHERE season_id = ?
	ORDER BY player_id
`

const deleteTraitsSQL = `DELETE FROM player_traits`

const insertTraitSQL = `
	INSERT INTO player_traits (
		player_id, player_name, dog_events, total_events, dog_index,
		menace_index, unselfish_index, toughness_index,
		rim_pressure_index, shot_making_index, size_index
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectTraitsSQL = `
	SELECT player_id, player_name, dog_events, total_events, dog_index,
		menace_index, unselfish_index, toughness_index,
		rim_pressure_index, shot_making_index, size_index
	FROM player_traits
	ORDER BY dog_index DESC, player_id
`

const countsSQL = `
	SELECT
		(SELECT COUNT(*) FROM games),
		(SELECT COUNT(*) FROM plays),
		(SELECT COUNT(*) FROM plays WHERE player_id IS NOT NULL AND player_id <> ''),
		(SELECT COUNT(*) FROM players),
		(SELECT COUNT(*) FROM player_traits),
		(SELECT COUNT(*) FROM player_season_stats)
`

// resetTables lists tables in deletion order.
var resetTables = []string{"plays", "player_traits", "player_season_stats", "players", "games"}

// column is an additive migration applied after the base schema.
type column struct {
	table    string
	name     string
	postgres string
	sqlite   string
}

// addedColumns were introduced after the first schema shipped. Adding them
// is idempotent on both dialects.
var addedColumns = []column{
	{table: "games", name: "video_path", postgres: "TEXT", sqlite: "TEXT"},
	{table: "plays", name: "tags", postgres: "TEXT NOT NULL DEFAULT '[]'", sqlite: "TEXT NOT NULL DEFAULT '[]'"},
	{table: "player_traits", name: "menace_index", postgres: "DOUBLE PRECISION NOT NULL DEFAULT 0", sqlite: "REAL NOT NULL DEFAULT 0"},
	{table: "player_traits", name: "unselfish_index", postgres: "DOUBLE PRECISION NOT NULL DEFAULT 0", sqlite: "REAL NOT NULL DEFAULT 0"},
	{table: "player_traits", name: "toughness_index", postgres: "DOUBLE PRECISION NOT NULL DEFAULT 0", sqlite: "REAL NOT NULL DEFAULT 0"},
	{table: "player_traits", name: "rim_pressure_index", postgres: "DOUBLE PRECISION NOT NULL DEFAULT 0", sqlite: "REAL NOT NULL DEFAULT 0"},
	{table: "player_traits", name: "shot_making_index", postgres: "DOUBLE PRECISION NOT NULL DEFAULT 0", sqlite: "REAL NOT NULL DEFAULT 0"},
	{table: "player_traits", name: "size_index", postgres: "DOUBLE PRECISION", sqlite: "REAL"},
}

// rebind rewrites ? placeholders to $1..$n.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// rowScanner is satisfied by pgx.Row(s) and *sql.Row(s).
type rowScanner interface {
	Scan(dest ...any) error
}

func gameArgs(g *models.Game) []any {
	return []any{
		g.GameID, g.SeasonID, g.Date, g.HomeTeam, g.AwayTeam,
		g.HomeScore, g.AwayScore, g.Status, g.VideoPath,
	}
}

func playerArgs(p *models.Player) []any {
	return []any{
		p.PlayerID, p.TeamID, p.FirstName, p.LastName, p.FullName,
		p.Position, p.HeightIn, p.WeightLb, p.ClassYear,
	}
}

func playArgs(p *models.Play) []any {
	return []any{
		p.PlayID, p.GameID, p.Period, p.ClockSeconds, p.ClockDisplay, p.Description,
		p.TeamID, p.PlayerID, p.PlayerName, p.XLoc, p.YLoc, p.TagsJSON(),
	}
}

func seasonStatsArgs(s *models.PlayerSeasonStats) []any {
	return []any{
		s.PlayerID, s.SeasonID, s.TeamID,
		s.GP, s.Possessions, s.Points,
		s.FGMade, s.FGMiss, s.FGAttempt,
		s.Shot2Made, s.Shot2Miss, s.Shot2Attempt,
		s.Shot3Made, s.Shot3Miss, s.Shot3Attempt,
		s.FTMade, s.FTMiss, s.FTAttempt,
		s.PlusOne, s.ShotFoul, s.Score, s.Turnover,
		s.FGPercent, s.FGPercentEffective, s.Shot2Percent, s.Shot3Percent, s.FTPercent,
		s.UpdatedAt.UTC(),
	}
}

func traitArgs(t *models.PlayerTraits) []any {
	return []any{
		t.PlayerID, t.PlayerName, t.DogEvents, t.TotalEvents, t.DogIndex,
		t.MenaceIndex, t.UnselfishIndex, t.ToughnessIndex,
		t.RimPressureIndex, t.ShotMakingIndex, t.SizeIndex,
	}
}

func scanPlay(row rowScanner) (*models.Play, error) {
	var (
		p    models.Play
		tags string
	)
	err := row.Scan(
		&p.PlayID, &p.GameID, &p.Period, &p.ClockSeconds, &p.ClockDisplay, &p.Description,
		&p.TeamID, &p.PlayerID, &p.PlayerName, &p.XLoc, &p.YLoc, &tags,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan play: %w", err)
	}
	p.Tags = models.ParseTags(tags)
	return &p, nil
}

func scanSeasonStats(row rowScanner) (*models.PlayerSeasonStats, error) {
	var (
		s         models.PlayerSeasonStats
		updatedAt storedTime
	)
	err := row.Scan(
		&s.PlayerID, &s.SeasonID, &s.TeamID,
		&s.GP, &s.Possessions, &s.Points,
		&s.FGMade, &s.FGMiss, &s.FGAttempt,
		&s.Shot2Made, &s.Shot2Miss, &s.Shot2Attempt,
		&s.Shot3Made, &s.Shot3Miss, &s.Shot3Attempt,
		&s.FTMade, &s.FTMiss, &s.FTAttempt,
		&s.PlusOne, &s.ShotFoul, &s.Score, &s.Turnover,
		&s.FGPercent, &s.FGPercentEffective, &s.Shot2Percent, &s.Shot3Percent, &s.FTPercent,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan season stats: %w", err)
	}
	s.UpdatedAt = updatedAt.Time
	return &s, nil
}

func scanTrait(row rowScanner) (*models.PlayerTraits, error) {
	var t models.PlayerTraits
	err := row.Scan(
		&t.PlayerID, &t.PlayerName, &t.DogEvents, &t.TotalEvents, &t.DogIndex,
		&t.MenaceIndex, &t.UnselfishIndex, &t.ToughnessIndex,
		&t.RimPressureIndex, &t.ShotMakingIndex, &t.SizeIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan player traits: %w", err)
	}
	return &t, nil
}

// storedTime scans timestamps returned natively (Postgres) or as text
// (SQLite, which writes time.Time values in Time.String form).
type storedTime struct {
	time.Time
}

var storedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999 -0700 MST",
}

func (t *storedTime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into timestamp", value)
}

func (t *storedTime) parse(s string) error {
	for _, layout := range storedTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
