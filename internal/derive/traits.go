package derive

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"portalrecruit/ingestion/internal/metrics"
	"portalrecruit/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// TraitStore is the part of the store trait derivation reads and writes
type TraitStore interface {
	ResolvedPlays(ctx context.Context) ([]*models.Play, error)
	ReplaceTraits(ctx context.Context, traits []*models.PlayerTraits) error
}

var (
	menaceKeywords    = []string{"steal", "block", "deflection", "charge"}
	unselfishKeywords = []string{"assist"}
	toughnessKeywords = []string{"charge", "loose ball", "and-one", "and one", "offensive rebound", "foul drawn"}
)

// traitCounter accumulates per-play matches for one player. Each play counts
// at most once per index.
type traitCounter struct {
	name        string
	total       int
	dog         int
	menace      int
	unselfish   int
	toughness   int
	rimPressure int
	made        int
	missed      int
}

// BuildTraits recomputes every player's trait indices from the full set of
// attributed plays and replaces the stored traits. hustle is the keyword set
// behind the dog index.
func BuildTraits(ctx context.Context, store TraitStore, hustle []string) ([]*models.PlayerTraits, error) {
	start := time.Now()

	plays, err := store.ResolvedPlays(ctx)
	if err != nil {
		metrics.RecordSync("traits", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("loading attributed plays: %w", err)
	}

	hustle = lowerAll(hustle)
	counters := make(map[string]*traitCounter)
	for _, p := range plays {
		if !p.PlayerID.Valid || p.PlayerID.String == "" {
			continue
		}
		c, ok := counters[p.PlayerID.String]
		if !ok {
			c = &traitCounter{}
			counters[p.PlayerID.String] = c
		}
		if c.name == "" && p.PlayerName.Valid {
			c.name = p.PlayerName.String
		}
		c.observe(p, hustle)
	}

	traits := make([]*models.PlayerTraits, 0, len(counters))
	for id, c := range counters {
		traits = append(traits, c.traits(id))
	}
	sort.Slice(traits, func(i, j int) bool { return traits[i].PlayerID < traits[j].PlayerID })

	if err := store.ReplaceTraits(ctx, traits); err != nil {
		metrics.RecordSync("traits", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("replacing traits: %w", err)
	}

	metrics.RecordSync("traits", "success", time.Since(start).Seconds())
	log.Info().
		Int("players", len(traits)).
		Int("plays", len(plays)).
		Dur("duration", time.Since(start)).
		Msg("Player traits rebuilt")

	return traits, nil
}

func (c *traitCounter) observe(p *models.Play, hustle []string) {
	desc := strings.ToLower(p.Description)
	tags := p.Tags
	if len(tags) == 0 {
		tags = TagPlay(p)
	}
	has := func(tag string) bool {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
		return false
	}

	c.total++
	if containsAny(desc, hustle...) {
		c.dog++
	}
	if containsAny(desc, menaceKeywords...) {
		c.menace++
	}
	if containsAny(desc, unselfishKeywords...) {
		c.unselfish++
	}
	if containsAny(desc, toughnessKeywords...) {
		c.toughness++
	}
	if has(TagRimFinish) || has(TagDrive) {
		c.rimPressure++
	}
	if has(TagMade) {
		c.made++
	} else if has(TagMissed) {
		c.missed++
	}
}

func (c *traitCounter) traits(playerID string) *models.PlayerTraits {
	t := &models.PlayerTraits{
		PlayerID:         playerID,
		DogEvents:        c.dog,
		TotalEvents:      c.total,
		DogIndex:         rate(c.dog, c.total),
		MenaceIndex:      rate(c.menace, c.total),
		UnselfishIndex:   rate(c.unselfish, c.total),
		ToughnessIndex:   rate(c.toughness, c.total),
		RimPressureIndex: rate(c.rimPressure, c.total),
		ShotMakingIndex:  rate(c.made, c.made+c.missed),
	}
	if c.name != "" {
		t.PlayerName = sql.NullString{String: c.name, Valid: true}
	}
	return t
}

// rate is 100*n/max(1, total) rounded to three decimals.
func rate(n, total int) float64 {
	return round3(100 * float64(n) / float64(max(1, total)))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
