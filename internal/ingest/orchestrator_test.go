package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"portalrecruit/ingestion/internal/config"
	"portalrecruit/ingestion/internal/envelope"
	"portalrecruit/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *config.Catalog {
	c := config.DefaultCatalog()
	c.PlayTypes = []string{"Iso", "Cut"}
	return c
}

// scenarioAPI lists G1 for both teams, G2 for T1 and G3 for T2.
func scenarioAPI() *fakeAPI {
	api := newFakeAPI()
	api.seasons = seasonRecs("2024")
	api.teams["2024"] = []envelope.Record{rec("id", "T1", "name", "Home U"), rec("id", "T2", "name", "Away State")}
	api.games["T1"] = []envelope.Record{gameRec("G1", "final"), gameRec("G2", "closed")}
	api.games["T2"] = []envelope.Record{gameRec("G1", "final"), gameRec("G3", "Complete")}
	api.events["G2"] = []envelope.Record{
		eventRec("E1", "Made Layup at the rim off a drive in transition"),
		eventRec("E2", "Offensive rebound"),
	}
	api.events["G3"] = []envelope.Record{eventRec("E3", "Jumper missed")}
	api.rosters["T1"] = []envelope.Record{rec("id", "P1", "firstName", "Jalen", "lastName", "Brooks", "height", "6'5\"")}
	api.rosters["T2"] = []envelope.Record{rec("id", "P2", "name", "Marcus Hill"), rec("name", "no id")}
	api.stats["T1/Iso"] = []envelope.Record{
		statRec("P1", map[string]any{"fgMade": 2.0, "fgAttempt": 4.0, "shot3Made": 1.0, "points": 5.0}),
		statRec("P9", map[string]any{"fgMade": 9.0, "fgAttempt": 9.0}),
	}
	api.stats["T1/Cut"] = []envelope.Record{
		statRec("P1", map[string]any{"fgMade": 1.0, "fgAttempt": 6.0, "points": 2.0}),
	}
	return api
}

func seedGame(t *testing.T, store interface {
	UpsertGames(context.Context, []*models.Game) (int, error)
}, id, status string) {
	t.Helper()
	_, err := store.UpsertGames(context.Background(), []*models.Game{{
		GameID:   id,
		SeasonID: "2024",
		Status:   status,
		HomeTeam: sql.NullString{String: "Home U", Valid: true},
	}})
	require.NoError(t, err)
}

func TestRun_InsertsOnlyUnseenGames(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedGame(t, store, "G1", "final")

	api := scenarioAPI()
	o := NewOrchestrator(api, store, testCatalog())

	summary, err := o.Run(ctx, Request{League: "ncaamb"})
	require.NoError(t, err)
	assert.True(t, summary.Viable())
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, []string{"2024"}, summary.Seasons)

	assert.Equal(t, 2, summary.GamesAdded)
	assert.Zero(t, summary.GamesRefreshed)
	games, err := store.SeasonGames(ctx, "2024")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"G1": "final", "G2": "closed", "G3": "Complete"}, games)

	// Events only for the inserted games.
	assert.Zero(t, api.count("events:G1"))
	assert.Equal(t, 1, api.count("events:G2"))
	assert.Equal(t, 1, api.count("events:G3"))
	assert.Equal(t, 3, summary.PlaysAdded)

	assert.Equal(t, 2, summary.PlayersTouched)
	assert.Equal(t, 1, summary.Dropped, "roster entry without id")
	assert.Equal(t, 1, summary.StatRows)
	assert.Empty(t, summary.Warnings)
}

func TestRun_TagsPlaysAtIngestion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	api := scenarioAPI()

	_, err := NewOrchestrator(api, store, testCatalog()).Run(ctx, Request{League: "ncaamb", SkipStats: true})
	require.NoError(t, err)

	plays, err := store.UnresolvedPlays(ctx)
	require.NoError(t, err)
	byID := map[string]*models.Play{}
	for _, p := range plays {
		byID[p.PlayID] = p
	}
	require.Contains(t, byID, "E1")
	assert.Equal(t, []string{"drive", "late_clock", "layup", "made", "rim_finish", "score", "transition"}, byID["E1"].Tags)
	assert.Equal(t, "G2", byID["E1"].GameID)
	assert.Equal(t, int32(4), byID["E1"].ClockSeconds.Int32)
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	api := scenarioAPI()
	o := NewOrchestrator(api, store, testCatalog())

	first, err := o.Run(ctx, Request{League: "ncaamb"})
	require.NoError(t, err)
	require.Equal(t, 3, first.GamesAdded)

	before, err := store.Counts(ctx)
	require.NoError(t, err)

	second, err := o.Run(ctx, Request{League: "ncaamb"})
	require.NoError(t, err)
	assert.Zero(t, second.GamesAdded)
	assert.Zero(t, second.GamesRefreshed)
	assert.Zero(t, second.PlaysAdded)
	assert.Zero(t, second.PlayersTouched)
	assert.Equal(t, first.StatRows, second.StatRows, "stats are a full replace")

	assert.Equal(t, 1, api.count("roster:T1"), "rostered teams are skipped")
	assert.Equal(t, 1, api.count("events:G2"))

	after, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_RefreshRosters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	api := scenarioAPI()
	o := NewOrchestrator(api, store, testCatalog())

	_, err := o.Run(ctx, Request{League: "ncaamb", SkipStats: true})
	require.NoError(t, err)

	summary, err := o.Run(ctx, Request{League: "ncaamb", SkipStats: true, RefreshRosters: true})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PlayersTouched)
	assert.Equal(t, 2, api.count("roster:T1"))
}

func TestRun_RefreshesGamesThatTurnTerminal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedGame(t, store, "G1", "final")
	seedGame(t, store, "G2", "scheduled")
	seedGame(t, store, "G3", "closed")

	api := scenarioAPI()
	api.games["T2"] = []envelope.Record{gameRec("G1", "final"), gameRec("G3", "final")}

	summary, err := NewOrchestrator(api, store, testCatalog()).Run(ctx, Request{League: "ncaamb", SkipStats: true})
	require.NoError(t, err)

	assert.Zero(t, summary.GamesAdded)
	assert.Equal(t, 1, summary.GamesRefreshed)
	assert.Equal(t, 1, api.count("events:G2"))
	assert.Zero(t, api.count("events:G3"), "terminal games are never refreshed")
	assert.Equal(t, 2, summary.PlaysAdded)

	games, err := store.SeasonGames(ctx, "2024")
	require.NoError(t, err)
	assert.Equal(t, "closed", games["G2"])
}

func TestRun_SkipsEventsOfUnfinishedGames(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	api := scenarioAPI()
	api.games["T1"] = []envelope.Record{gameRec("G5", "scheduled")}
	api.games["T2"] = nil

	summary, err := NewOrchestrator(api, store, testCatalog()).Run(ctx, Request{League: "ncaamb", SkipStats: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.GamesAdded)
	assert.Zero(t, api.count("events:G5"))
	assert.Zero(t, summary.PlaysAdded)
}

func TestRun_PagesGames(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	api := scenarioAPI()

	var many []envelope.Record
	for i := 0; i < 150; i++ {
		many = append(many, gameRec(fmt.Sprintf("X%03d", i), "scheduled"))
	}
	api.games["T1"] = many
	api.games["T2"] = many[:10]

	summary, err := NewOrchestrator(api, store, testCatalog()).Run(ctx, Request{League: "ncaamb", SkipStats: true})
	require.NoError(t, err)
	assert.Equal(t, 150, summary.GamesAdded)
	assert.Equal(t, 2, api.count("games:T1"))
	assert.Equal(t, 1, api.count("games:T2"))
}

func TestRun_PagesPastMalformedEntries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	api := scenarioAPI()

	var many []envelope.Record
	for i := 0; i < 150; i++ {
		many = append(many, gameRec(fmt.Sprintf("X%03d", i), "scheduled"))
	}
	many[5] = nil
	api.games["T1"] = many
	api.games["T2"] = nil

	summary, err := NewOrchestrator(api, store, testCatalog()).Run(ctx, Request{League: "ncaamb", SkipStats: true})
	require.NoError(t, err)
	assert.Equal(t, 149, summary.GamesAdded, "a full page with a dropped entry is still full")
	assert.Equal(t, 2, api.count("games:T1"))
}

func TestRun_StopsWhenUpstreamIgnoresSkip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store := newTestStore(t)
	api := scenarioAPI()
	api.ignoreSkip = true

	var full []envelope.Record
	for i := 0; i < 100; i++ {
		full = append(full, gameRec(fmt.Sprintf("R%03d", i), "scheduled"))
	}
	api.games["T1"] = full

	summary, err := NewOrchestrator(api, store, testCatalog()).Run(ctx, Request{League: "ncaamb"})
	require.NoError(t, err)
	assert.Equal(t, 102, summary.GamesAdded, "T1 page once plus G1 and G3 from T2")
	assert.Equal(t, 2, api.count("games:T1"), "second identical page ends the walk")
	require.NotEmpty(t, summary.Warnings)
	assert.Contains(t, summary.Warnings[0], "team T1: games unavailable: page repeated earlier entries at skip=100")
}

func TestRun_AggregatesSeasonStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	api := scenarioAPI()
	o := NewOrchestrator(api, store, testCatalog())
	fixed := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return fixed }

	summary, err := o.Run(ctx, Request{League: "ncaamb"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StatRows, "unknown P9 is discarded")

	stats, err := store.SeasonStats(ctx, "2024")
	require.NoError(t, err)
	require.Len(t, stats, 1)

	s := stats[0]
	assert.Equal(t, "P1", s.PlayerID)
	assert.Equal(t, "T1", s.TeamID)
	assert.Equal(t, 3, s.FGMade)
	assert.Equal(t, 10, s.FGAttempt)
	assert.Equal(t, 7, s.Points)
	assert.Equal(t, 0.3, s.FGPercent)
	assert.InDelta(t, 0.35, s.FGPercentEffective, 1e-12)
	assert.Zero(t, s.FTPercent)
	assert.True(t, fixed.Equal(s.UpdatedAt))

	// Every team and play type is asked once; T2 has no rows.
	assert.Equal(t, 1, api.count("stats:T1/Iso"))
	assert.Equal(t, 1, api.count("stats:T2/Cut"))
}

func TestRun_NoSeasons(t *testing.T) {
	api := newFakeAPI()
	api.fail["seasons"] = errors.New("status 401")
	api.lastStatus = 401

	summary, err := NewOrchestrator(api, newTestStore(t), nil).Run(context.Background(), Request{League: "ncaamb"})
	require.ErrorIs(t, err, ErrNoSeasons)
	assert.Contains(t, err.Error(), "status=401")
	assert.Contains(t, err.Error(), "status 401")
	assert.False(t, summary.Viable())
}

func TestRun_ResetWaitsForSeasons(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedGame(t, store, "OLD", "closed")

	api := scenarioAPI()
	api.fail["seasons"] = errors.New("status 401")
	_, err := NewOrchestrator(api, store, testCatalog()).Run(ctx, Request{League: "ncaamb", Reset: true})
	require.ErrorIs(t, err, ErrNoSeasons)

	games, err := store.SeasonGames(ctx, "2024")
	require.NoError(t, err)
	assert.Contains(t, games, "OLD", "rejected run keeps stored games")

	delete(api.fail, "seasons")
	summary, err := NewOrchestrator(api, store, testCatalog()).Run(ctx, Request{League: "ncaamb", Reset: true, SkipStats: true})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.GamesAdded)

	games, err = store.SeasonGames(ctx, "2024")
	require.NoError(t, err)
	assert.NotContains(t, games, "OLD")
	assert.Len(t, games, 3)
}

func TestRun_NoTargetSeason(t *testing.T) {
	api := newFakeAPI()
	api.seasons = []envelope.Record{rec("name", "mystery")}

	_, err := NewOrchestrator(api, newTestStore(t), nil).Run(context.Background(), Request{League: "ncaamb"})
	assert.ErrorIs(t, err, ErrNoTargetSeason)
}

func TestRun_SeasonWithoutTeamsIsSkipped(t *testing.T) {
	ctx := context.Background()
	api := scenarioAPI()
	api.seasons = seasonRecs("2024", "2023")
	api.fail["teams:2023"] = errors.New("status 403")

	summary, err := NewOrchestrator(api, newTestStore(t), testCatalog()).Run(ctx, Request{League: "ncaamb", AllSeasons: true, SkipStats: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024"}, summary.Seasons)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "season 2023")
}

func TestRun_NoViableSeason(t *testing.T) {
	api := scenarioAPI()
	api.teams["2024"] = nil

	summary, err := NewOrchestrator(api, newTestStore(t), testCatalog()).Run(context.Background(), Request{League: "ncaamb"})
	require.ErrorIs(t, err, ErrNoViableSeason)
	assert.False(t, summary.Viable())
	assert.Len(t, summary.Warnings, 1)
}

func TestRun_TeamFailuresBecomeWarnings(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	api := scenarioAPI()
	api.fail["games:T2"] = errors.New("retries exhausted")
	api.fail["roster:T2"] = errors.New("status 404")

	summary, err := NewOrchestrator(api, store, testCatalog()).Run(ctx, Request{League: "ncaamb", SkipStats: true})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.GamesAdded)
	assert.Equal(t, 1, summary.PlayersTouched)

	sort.Strings(summary.Warnings)
	assert.Len(t, summary.Warnings, 2)
	assert.Contains(t, summary.Warnings[0], "team T2")
}

func TestRun_ExplicitSeason(t *testing.T) {
	api := scenarioAPI()
	api.seasons = seasonRecs("2024", "2023")
	api.teams["2023"] = api.teams["2024"]

	summary, err := NewOrchestrator(api, newTestStore(t), testCatalog()).Run(context.Background(), Request{League: "ncaamb", SeasonID: "2023", SkipStats: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"2023"}, summary.Seasons)
	assert.Zero(t, api.count("teams:2024"))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOrchestrator(scenarioAPI(), newTestStore(t), testCatalog()).Run(ctx, Request{League: "ncaamb"})
	assert.ErrorIs(t, err, context.Canceled)
}
