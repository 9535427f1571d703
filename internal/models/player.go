package models

import (
	"database/sql"
	"regexp"
	"strconv"
	"strings"
)

// Player represents a rostered player
type Player struct {
	PlayerID  string         `db:"player_id"`
	TeamID    sql.NullString `db:"team_id"`
	FirstName sql.NullString `db:"first_name"`
	LastName  sql.NullString `db:"last_name"`
	FullName  string         `db:"full_name"`
	Position  sql.NullString `db:"position"`
	HeightIn  sql.NullInt32  `db:"height_in"`
	WeightLb  sql.NullInt32  `db:"weight_lb"`
	ClassYear sql.NullString `db:"class_year"`
}

// PlayerInput is a roster record as returned by the team players endpoint
type PlayerInput struct {
	ID        FlexString `json:"id"`
	FirstName FlexString `json:"firstName"`
	LastName  FlexString `json:"lastName"`
	FullName  FlexString `json:"fullName"`
	Name      FlexString `json:"name"`
	Position  FlexString `json:"position"`
	Height    FlexString `json:"height"`
	Weight    FlexInt    `json:"weight"`
	ClassYear FlexString `json:"classYear"`
	Class     FlexString `json:"class"`
	Team      *Ref       `json:"team"`
	TeamID    FlexString `json:"teamId"`
}

// ToPlayer converts PlayerInput (from API) to Player model. teamID is the
// team the roster was requested for.
func (pi *PlayerInput) ToPlayer(teamID string) (*Player, error) {
	if pi.ID == "" {
		return nil, ErrMissingID
	}

	player := &Player{PlayerID: pi.ID.String()}

	if team := firstNonEmpty(FlexString(teamID), FlexString(pi.Team.RefID()), pi.TeamID); team != "" {
		player.TeamID = sql.NullString{String: team, Valid: true}
	}
	if pi.FirstName != "" {
		player.FirstName = sql.NullString{String: pi.FirstName.String(), Valid: true}
	}
	if pi.LastName != "" {
		player.LastName = sql.NullString{String: pi.LastName.String(), Valid: true}
	}

	player.FullName = firstNonEmpty(pi.FullName, pi.Name)
	if player.FullName == "" {
		player.FullName = strings.TrimSpace(pi.FirstName.String() + " " + pi.LastName.String())
	}

	if pi.Position != "" {
		player.Position = sql.NullString{String: pi.Position.String(), Valid: true}
	}
	if inches, ok := ParseHeight(pi.Height.String()); ok {
		player.HeightIn = sql.NullInt32{Int32: int32(inches), Valid: true}
	}
	if pi.Weight.Valid && pi.Weight.Value > 0 {
		player.WeightLb = sql.NullInt32{Int32: int32(pi.Weight.Value), Valid: true}
	}
	if class := firstNonEmpty(pi.ClassYear, pi.Class); class != "" {
		player.ClassYear = sql.NullString{String: class, Valid: true}
	}

	return player, nil
}

var heightFeetInches = regexp.MustCompile(`^(\d)\s*['\-]\s*(\d{1,2})`)

// ParseHeight parses 6'5", 6-5 or a plain number of inches.
func ParseHeight(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if m := heightFeetInches.FindStringSubmatch(raw); m != nil {
		feet, _ := strconv.Atoi(m[1])
		inches, _ := strconv.Atoi(m[2])
		return feet*12 + inches, true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f > 0 {
		return int(f), true
	}
	return 0, false
}
