package models

import (
	"database/sql"
	"strings"
)

// Game represents a single basketball game as persisted
type Game struct {
	GameID    string         `db:"game_id"`
	SeasonID  string         `db:"season_id"`
	Date      sql.NullString `db:"date"`
	HomeTeam  sql.NullString `db:"home_team"`
	AwayTeam  sql.NullString `db:"away_team"`
	HomeScore sql.NullInt32  `db:"home_score"`
	AwayScore sql.NullInt32  `db:"away_score"`
	Status    string         `db:"status"`
	VideoPath sql.NullString `db:"video_path"`
}

// GameInput is a game record as returned by the games endpoint
type GameInput struct {
	ID                 FlexString `json:"id"`
	SeasonID           FlexString `json:"seasonId"`
	Date               FlexString `json:"date"`
	ScheduledStartTime FlexString `json:"scheduledStartTime"`
	HomeTeam           *Ref       `json:"homeTeam"`
	AwayTeam           *Ref       `json:"awayTeam"`
	HomeTeamName       FlexString `json:"homeTeamName"`
	AwayTeamName       FlexString `json:"awayTeamName"`
	HomeScore          FlexInt    `json:"homeScore"`
	AwayScore          FlexInt    `json:"awayScore"`
	Status             FlexString `json:"status"`
	PlaylistURL        FlexString `json:"playlistUrl"`
}

// ToGame converts GameInput (from API) to Game model. The season id of the
// request wins over the one embedded in the record.
func (gi *GameInput) ToGame(seasonID string) (*Game, error) {
	if gi.ID == "" {
		return nil, ErrMissingID
	}

	game := &Game{
		GameID:   gi.ID.String(),
		SeasonID: seasonID,
		Status:   gi.Status.String(),
	}
	if game.SeasonID == "" {
		game.SeasonID = gi.SeasonID.String()
	}

	if date := firstNonEmpty(gi.Date, gi.ScheduledStartTime); date != "" {
		game.Date = sql.NullString{String: date, Valid: true}
	}

	if home := teamLabel(gi.HomeTeam, gi.HomeTeamName); home != "" {
		game.HomeTeam = sql.NullString{String: home, Valid: true}
	}
	if away := teamLabel(gi.AwayTeam, gi.AwayTeamName); away != "" {
		game.AwayTeam = sql.NullString{String: away, Valid: true}
	}

	// Scores
	if gi.HomeScore.Valid {
		game.HomeScore = sql.NullInt32{Int32: int32(gi.HomeScore.Value), Valid: true}
	}
	if gi.AwayScore.Valid {
		game.AwayScore = sql.NullInt32{Int32: int32(gi.AwayScore.Value), Valid: true}
	}

	if gi.PlaylistURL != "" {
		game.VideoPath = sql.NullString{String: gi.PlaylistURL.String(), Valid: true}
	}

	return game, nil
}

func teamLabel(ref *Ref, name FlexString) string {
	if label := ref.Label(); label != "" {
		return label
	}
	return name.String()
}

// StatusChanged reports whether an upstream status differs from the stored one.
func StatusChanged(stored, upstream string) bool {
	return !strings.EqualFold(strings.TrimSpace(stored), strings.TrimSpace(upstream))
}
