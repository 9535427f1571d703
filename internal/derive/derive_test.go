package derive

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"portalrecruit/ingestion/internal/models"
	"portalrecruit/ingestion/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBackfillsBeforeTraits(t *testing.T) {
	ctx := context.Background()
	store, err := repository.NewSQLite(ctx, "sqlite://"+filepath.Join(t.TempDir(), "derive.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.EnsureSchema(ctx))

	_, err = store.UpsertPlayers(ctx, []*models.Player{{
		PlayerID: "P1",
		TeamID:   sql.NullString{String: "T1", Valid: true},
		FullName: "Yuri Covington",
	}})
	require.NoError(t, err)

	plays := []*models.Play{
		{PlayID: "A", GameID: "G1", Description: "5 Yuri Covington > Steal"},
		{PlayID: "B", GameID: "G1", Description: "12 Dan Ortiz > Jumper Made"},
		{PlayID: "C", GameID: "G1", Description: "Timeout"},
	}
	for _, p := range plays {
		p.Tags = TagPlay(p)
	}
	_, err = store.UpsertPlays(ctx, plays)
	require.NoError(t, err)

	result, err := Run(ctx, store, Options{HustleKeywords: []string{"Steal"}})
	require.NoError(t, err)
	require.NotNil(t, result.Backfill)
	assert.Equal(t, 3, result.Backfill.Scanned)
	assert.Equal(t, 2, result.Backfill.Updated)
	assert.Equal(t, 1, result.Backfill.Matched)
	assert.Equal(t, 2, result.Traits)

	traits, err := store.Traits(ctx)
	require.NoError(t, err)
	byID := map[string]*models.PlayerTraits{}
	for _, tr := range traits {
		byID[tr.PlayerID] = tr
	}
	require.Contains(t, byID, "P1")
	require.Contains(t, byID, SyntheticPlayerID("Dan Ortiz"))
	assert.Equal(t, 100.0, byID["P1"].DogIndex)
	assert.Equal(t, 100.0, byID[SyntheticPlayerID("Dan Ortiz")].ShotMakingIndex)

	// A second pass finds nothing left to attribute.
	again, err := Run(ctx, store, Options{HustleKeywords: []string{"steal"}})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Backfill.Scanned)
	assert.Zero(t, again.Backfill.Updated)
}

func TestRunSkipBackfill(t *testing.T) {
	store := &memoryStore{plays: []*models.Play{
		play("1", "P1", "steal"),
		play("2", "", "9 Someone > block"),
	}}

	result, err := Run(context.Background(), store, Options{SkipBackfill: true, HustleKeywords: []string{"steal"}})
	require.NoError(t, err)
	assert.Nil(t, result.Backfill)
	assert.Empty(t, store.updates)
	assert.Equal(t, 1, result.Traits)
}

func TestRunStopsOnTraitFailure(t *testing.T) {
	store := &memoryStore{resolvedErr: errors.New("disk full")}

	_, err := Run(context.Background(), store, Options{})
	assert.ErrorContains(t, err, "disk full")
}
