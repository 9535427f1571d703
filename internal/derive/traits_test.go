package derive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"portalrecruit/ingestion/internal/config"
	"portalrecruit/ingestion/internal/models"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory TraitStore and NameStore
type memoryStore struct {
	plays   []*models.Play
	players map[string]string
	traits  []*models.PlayerTraits
	updates []models.PlayNameUpdate

	resolvedErr error
}

func (m *memoryStore) ResolvedPlays(ctx context.Context) ([]*models.Play, error) {
	if m.resolvedErr != nil {
		return nil, m.resolvedErr
	}
	var out []*models.Play
	for _, p := range m.plays {
		if p.PlayerID.Valid && p.PlayerID.String != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) ReplaceTraits(ctx context.Context, traits []*models.PlayerTraits) error {
	m.traits = traits
	return nil
}

func (m *memoryStore) UnresolvedPlays(ctx context.Context) ([]*models.Play, error) {
	var out []*models.Play
	for _, p := range m.plays {
		if !p.PlayerName.Valid || p.PlayerName.String == "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) PlayersByName(ctx context.Context) (map[string]string, error) {
	return m.players, nil
}

func (m *memoryStore) ResolvePlayNames(ctx context.Context, updates []models.PlayNameUpdate) (int, error) {
	m.updates = append(m.updates, updates...)
	return len(updates), nil
}

func play(id, playerID, desc string) *models.Play {
	p := &models.Play{PlayID: id, GameID: "G1", Description: desc}
	if playerID != "" {
		p.PlayerID = sql.NullString{String: playerID, Valid: true}
		p.PlayerName = sql.NullString{String: "Player " + playerID, Valid: true}
	}
	return p
}

func TestBuildTraits(t *testing.T) {
	store := &memoryStore{plays: []*models.Play{
		play("1", "P1", "Offensive rebound and putback layup made"),
		play("2", "P1", "Steal and block on the same trip"),
		play("3", "P1", "Jumper missed"),
		play("4", "P1", "Assist to the corner"),
		play("5", "P2", "Jumper made"),
		play("6", "", "Loose ball recovered"),
	}}

	traits, err := BuildTraits(context.Background(), store, config.DefaultCatalog().HustleKeywords)
	require.NoError(t, err)
	require.Len(t, traits, 2)
	assert.Equal(t, traits, store.traits)

	p1 := traits[0]
	assert.Equal(t, "P1", p1.PlayerID)
	assert.Equal(t, "Player P1", p1.PlayerName.String)
	assert.Equal(t, 4, p1.TotalEvents)
	// Play 2 matches two hustle keywords but counts once.
	assert.Equal(t, 2, p1.DogEvents)
	assert.Equal(t, 50.0, p1.DogIndex)
	assert.Equal(t, 25.0, p1.MenaceIndex)
	assert.Equal(t, 25.0, p1.UnselfishIndex)
	assert.Equal(t, 25.0, p1.ToughnessIndex)
	assert.Equal(t, 25.0, p1.RimPressureIndex)
	assert.Equal(t, 50.0, p1.ShotMakingIndex)
	assert.False(t, p1.SizeIndex.Valid)

	p2 := traits[1]
	assert.Equal(t, "P2", p2.PlayerID)
	assert.Zero(t, p2.DogEvents)
	assert.Zero(t, p2.DogIndex)
	assert.Equal(t, 100.0, p2.ShotMakingIndex)
}

func TestBuildTraitsRoundsToThreeDecimals(t *testing.T) {
	store := &memoryStore{plays: []*models.Play{
		play("1", "P1", "steal"),
		play("2", "P1", "jumper"),
		play("3", "P1", "jumper"),
	}}

	traits, err := BuildTraits(context.Background(), store, []string{"STEAL "})
	require.NoError(t, err)
	require.Len(t, traits, 1)
	assert.Equal(t, 33.333, traits[0].DogIndex)
}

func TestBuildTraitsUsesStoredTags(t *testing.T) {
	p := play("1", "P1", "and he goes up")
	p.Tags = []string{TagDrive, TagMade}
	store := &memoryStore{plays: []*models.Play{p}}

	traits, err := BuildTraits(context.Background(), store, nil)
	require.NoError(t, err)
	require.Len(t, traits, 1)
	assert.Equal(t, 100.0, traits[0].RimPressureIndex)
	assert.Equal(t, 100.0, traits[0].ShotMakingIndex)
}

func TestBuildTraitsPropagatesStoreErrors(t *testing.T) {
	store := &memoryStore{resolvedErr: errors.New("disk on fire")}
	_, err := BuildTraits(context.Background(), store, nil)
	assert.ErrorContains(t, err, "disk on fire")
}

func TestDogIndexBounds(t *testing.T) {
	faker := gofakeit.New(42)
	hustle := config.DefaultCatalog().HustleKeywords
	fragments := append([]string{"jumper made", "layup missed", "dunk", "timeout"}, hustle...)

	for run := 0; run < 50; run++ {
		var plays []*models.Play
		n := faker.Number(1, 40)
		for i := 0; i < n; i++ {
			desc := faker.Sentence(faker.Number(1, 8))
			if faker.Bool() {
				desc += " " + faker.RandomString(fragments)
			}
			plays = append(plays, play(fmt.Sprintf("%d_%d", run, i), fmt.Sprintf("P%d", faker.Number(1, 5)), desc))
		}

		store := &memoryStore{plays: plays}
		traits, err := BuildTraits(context.Background(), store, hustle)
		require.NoError(t, err)

		for _, tr := range traits {
			assert.GreaterOrEqual(t, tr.DogIndex, 0.0)
			assert.LessOrEqual(t, tr.DogIndex, 100.0)
			assert.LessOrEqual(t, tr.DogEvents, tr.TotalEvents)
			assert.Equal(t, tr.DogEvents == 0, tr.DogIndex == 0, "dog index is zero iff no hustle play: %+v", tr)
		}
	}
}
