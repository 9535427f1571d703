package models

import (
	"database/sql"
)

// PlayerTraits holds per-player indices derived from play text. Indices are
// percentages in [0, 100].
type PlayerTraits struct {
	PlayerID         string          `db:"player_id"`
	PlayerName       sql.NullString  `db:"player_name"`
	DogEvents        int             `db:"dog_events"`
	TotalEvents      int             `db:"total_events"`
	DogIndex         float64         `db:"dog_index"`
	MenaceIndex      float64         `db:"menace_index"`
	UnselfishIndex   float64         `db:"unselfish_index"`
	ToughnessIndex   float64         `db:"toughness_index"`
	RimPressureIndex float64         `db:"rim_pressure_index"`
	ShotMakingIndex  float64         `db:"shot_making_index"`
	SizeIndex        sql.NullFloat64 `db:"size_index"`
}

// StoreCounts summarizes table sizes for the audit command
type StoreCounts struct {
	Games           int64 `json:"games"`
	Plays           int64 `json:"plays"`
	PlaysWithPlayer int64 `json:"plays_with_player"`
	Players         int64 `json:"players"`
	PlayerTraits    int64 `json:"player_traits"`
	SeasonStats     int64 `json:"player_season_stats"`
}

// PlayerCoverage returns the share of plays attributed to a player, in percent.
func (c *StoreCounts) PlayerCoverage() float64 {
	if c.Plays == 0 {
		return 0
	}
	return 100 * float64(c.PlaysWithPlayer) / float64(c.Plays)
}
