package models

import (
	"time"
)

// PlayerSeasonStats represents a player's season totals across play types
type PlayerSeasonStats struct {
	PlayerID string `db:"player_id"`
	SeasonID string `db:"season_id"`
	TeamID   string `db:"team_id"`

	// Counters
	GP           int `db:"gp"`
	Possessions  int `db:"possessions"`
	Points       int `db:"points"`
	FGMade       int `db:"fg_made"`
	FGMiss       int `db:"fg_miss"`
	FGAttempt    int `db:"fg_attempt"`
	Shot2Made    int `db:"shot2_made"`
	Shot2Miss    int `db:"shot2_miss"`
	Shot2Attempt int `db:"shot2_attempt"`
	Shot3Made    int `db:"shot3_made"`
	Shot3Miss    int `db:"shot3_miss"`
	Shot3Attempt int `db:"shot3_attempt"`
	FTMade       int `db:"ft_made"`
	FTMiss       int `db:"ft_miss"`
	FTAttempt    int `db:"ft_attempt"`
	PlusOne      int `db:"plus_one"`
	ShotFoul     int `db:"shot_foul"`
	Score        int `db:"score"`
	Turnover     int `db:"turnover"`

	// Ratios, computed by Finalize
	FGPercent          float64 `db:"fg_percent"`
	FGPercentEffective float64 `db:"fg_percent_effective"`
	Shot2Percent       float64 `db:"shot2_percent"`
	Shot3Percent       float64 `db:"shot3_percent"`
	FTPercent          float64 `db:"ft_percent"`

	UpdatedAt time.Time `db:"updated_at"`
}

// StatLineInput is one row of the player play-type stats report
type StatLineInput struct {
	Player *Ref         `json:"player"`
	Team   *Ref         `json:"team"`
	Stats  StatCounters `json:"stats"`
}

// StatCounters holds the additive counters of a report row
type StatCounters struct {
	GP           FlexInt `json:"gp"`
	Possessions  FlexInt `json:"possessions"`
	Points       FlexInt `json:"points"`
	FGMade       FlexInt `json:"fgMade"`
	FGMiss       FlexInt `json:"fgMiss"`
	FGAttempt    FlexInt `json:"fgAttempt"`
	Shot2Made    FlexInt `json:"shot2Made"`
	Shot2Miss    FlexInt `json:"shot2Miss"`
	Shot2Attempt FlexInt `json:"shot2Attempt"`
	Shot3Made    FlexInt `json:"shot3Made"`
	Shot3Miss    FlexInt `json:"shot3Miss"`
	Shot3Attempt FlexInt `json:"shot3Attempt"`
	FTMade       FlexInt `json:"ftMade"`
	FTMiss       FlexInt `json:"ftMiss"`
	FTAttempt    FlexInt `json:"ftAttempt"`
	PlusOne      FlexInt `json:"plusOne"`
	ShotFoul     FlexInt `json:"shotFoul"`
	Score        FlexInt `json:"score"`
	Turnover     FlexInt `json:"turnover"`
}

// PlayerID returns the player id of the report row.
func (sl *StatLineInput) PlayerID() string {
	return sl.Player.RefID()
}

// Add accumulates a report row into the season totals. Missing counters
// count as zero.
func (s *PlayerSeasonStats) Add(c StatCounters) {
	s.GP += c.GP.Or(0)
	s.Possessions += c.Possessions.Or(0)
	s.Points += c.Points.Or(0)
	s.FGMade += c.FGMade.Or(0)
	s.FGMiss += c.FGMiss.Or(0)
	s.FGAttempt += c.FGAttempt.Or(0)
	s.Shot2Made += c.Shot2Made.Or(0)
	s.Shot2Miss += c.Shot2Miss.Or(0)
	s.Shot2Attempt += c.Shot2Attempt.Or(0)
	s.Shot3Made += c.Shot3Made.Or(0)
	s.Shot3Miss += c.Shot3Miss.Or(0)
	s.Shot3Attempt += c.Shot3Attempt.Or(0)
	s.FTMade += c.FTMade.Or(0)
	s.FTMiss += c.FTMiss.Or(0)
	s.FTAttempt += c.FTAttempt.Or(0)
	s.PlusOne += c.PlusOne.Or(0)
	s.ShotFoul += c.ShotFoul.Or(0)
	s.Score += c.Score.Or(0)
	s.Turnover += c.Turnover.Or(0)
}

// Finalize computes the ratio columns from the accumulated counters.
// Denominators are floored at one so empty totals yield zero.
func (s *PlayerSeasonStats) Finalize(now time.Time) {
	s.FGPercent = ratio(s.FGMade, s.FGAttempt)
	s.FGPercentEffective = (float64(s.FGMade) + 0.5*float64(s.Shot3Made)) / float64(max(1, s.FGAttempt))
	s.Shot2Percent = ratio(s.Shot2Made, s.Shot2Attempt)
	s.Shot3Percent = ratio(s.Shot3Made, s.Shot3Attempt)
	s.FTPercent = ratio(s.FTMade, s.FTAttempt)
	s.UpdatedAt = now
}

func ratio(made, attempts int) float64 {
	return float64(made) / float64(max(1, attempts))
}
