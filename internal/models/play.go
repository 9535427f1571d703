package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Play represents one play-by-play event of a game
type Play struct {
	PlayID       string          `db:"play_id"`
	GameID       string          `db:"game_id"`
	Period       sql.NullInt32   `db:"period"`
	ClockSeconds sql.NullInt32   `db:"clock_seconds"`
	ClockDisplay sql.NullString  `db:"clock_display"`
	Description  string          `db:"description"`
	TeamID       sql.NullString  `db:"team_id"`
	PlayerID     sql.NullString  `db:"player_id"`
	PlayerName   sql.NullString  `db:"player_name"`
	XLoc         sql.NullFloat64 `db:"x_loc"`
	YLoc         sql.NullFloat64 `db:"y_loc"`
	Tags         []string        `db:"tags"`
}

// EventInput is an event record as returned by the game events endpoint
type EventInput struct {
	ID            FlexString `json:"id"`
	Period        FlexInt    `json:"period"`
	Clock         FlexString `json:"clock"`
	GameClock     FlexString `json:"gameClock"`
	Description   FlexString `json:"description"`
	Text          FlexString `json:"text"`
	OffensiveTeam *Ref       `json:"offensiveTeam"`
	Team          *Ref       `json:"team"`
	TeamID        FlexString `json:"teamId"`
	Player        *Ref       `json:"player"`
	PlayerID      FlexString `json:"playerId"`
	PlayerName    FlexString `json:"playerName"`
	X             FlexFloat  `json:"x"`
	Y             FlexFloat  `json:"y"`
	ShotX         FlexFloat  `json:"shotX"`
	ShotY         FlexFloat  `json:"shotY"`
}

// ToPlay converts EventInput (from API) to Play model. sequence is the
// position of the event in the upstream list and only feeds the synthesized
// play id when the event carries none. Tags are left to the caller.
func (ei *EventInput) ToPlay(gameID string, sequence int) (*Play, error) {
	if gameID == "" {
		return nil, ErrMissingID
	}

	clock := firstNonEmpty(ei.Clock, ei.GameClock)
	play := &Play{
		PlayID:      ei.ID.String(),
		GameID:      gameID,
		Description: firstNonEmpty(ei.Description, ei.Text),
	}
	if play.PlayID == "" {
		play.PlayID = SyntheticPlayID(gameID, clock, sequence)
	}

	if ei.Period.Valid {
		play.Period = sql.NullInt32{Int32: int32(ei.Period.Value), Valid: true}
	}
	if clock != "" {
		play.ClockDisplay = sql.NullString{String: clock, Valid: true}
		if secs, ok := ParseClock(clock); ok {
			play.ClockSeconds = sql.NullInt32{Int32: int32(secs), Valid: true}
		}
	}

	if team := firstNonEmpty(FlexString(ei.OffensiveTeam.RefID()), FlexString(ei.Team.RefID()), ei.TeamID); team != "" {
		play.TeamID = sql.NullString{String: team, Valid: true}
	}
	if pid := firstNonEmpty(FlexString(ei.Player.RefID()), ei.PlayerID); pid != "" {
		play.PlayerID = sql.NullString{String: pid, Valid: true}
	}
	if name := firstNonEmpty(FlexString(playerLabel(ei.Player)), ei.PlayerName); name != "" {
		play.PlayerName = sql.NullString{String: name, Valid: true}
	}

	if x := firstValid(ei.X, ei.ShotX); x.Valid {
		play.XLoc = sql.NullFloat64{Float64: x.Value, Valid: true}
	}
	if y := firstValid(ei.Y, ei.ShotY); y.Valid {
		play.YLoc = sql.NullFloat64{Float64: y.Value, Valid: true}
	}

	return play, nil
}

// playerLabel returns the player's name, never the bare id.
func playerLabel(ref *Ref) string {
	if ref == nil {
		return ""
	}
	return firstNonEmpty(ref.FullName, ref.Name)
}

func firstValid(values ...FlexFloat) FlexFloat {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return FlexFloat{}
}

// SyntheticPlayID builds <game_id>_<clock digits>_<sequence> for events
// without an upstream id.
func SyntheticPlayID(gameID, clock string, sequence int) string {
	var digits strings.Builder
	for _, r := range clock {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return fmt.Sprintf("%s_%s_%d", gameID, digits.String(), sequence)
}

// ParseClock converts "mm:ss" (optionally with fractional seconds) or a plain
// number of seconds into whole seconds remaining.
func ParseClock(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	if minutes, seconds, found := strings.Cut(raw, ":"); found {
		m, err := strconv.Atoi(strings.TrimSpace(minutes))
		if err != nil || m < 0 {
			return 0, false
		}
		s, err := strconv.ParseFloat(strings.TrimSpace(seconds), 64)
		if err != nil || s < 0 {
			return 0, false
		}
		return m*60 + int(s), true
	}

	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	return 0, false
}

// TagsJSON encodes the tag list the way it is stored, as a JSON text array.
func (p *Play) TagsJSON() string {
	if len(p.Tags) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(p.Tags)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// ParseTags decodes a stored tag column. Malformed values yield no tags.
func ParseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

// HasTag reports whether the play carries tag.
func (p *Play) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PlayNameUpdate assigns a backfilled player to a play.
type PlayNameUpdate struct {
	PlayID     string
	PlayerID   string
	PlayerName string
}
