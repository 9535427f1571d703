package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"portalrecruit/ingestion/internal/envelope"
	"portalrecruit/ingestion/internal/repository"

	"github.com/stretchr/testify/require"
)

// fakeAPI serves canned records keyed by season, team, game or play type.
// In paged lists a nil record stands for an entry the client dropped as
// malformed.
type fakeAPI struct {
	mu sync.Mutex

	// ignoreSkip serves the first page of a paged list whatever skip is.
	ignoreSkip bool

	seasons []envelope.Record
	teams   map[string][]envelope.Record // season id
	games   map[string][]envelope.Record // team id
	events  map[string][]envelope.Record // game id
	rosters map[string][]envelope.Record // team id
	stats   map[string][]envelope.Record // team id + "/" + play type
	fail    map[string]error             // call key

	calls      map[string]int
	lastStatus int
	lastError  string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		teams:   map[string][]envelope.Record{},
		games:   map[string][]envelope.Record{},
		events:  map[string][]envelope.Record{},
		rosters: map[string][]envelope.Record{},
		stats:   map[string][]envelope.Record{},
		fail:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeAPI) record(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if err := f.fail[key]; err != nil {
		f.lastError = err.Error()
		return err
	}
	f.lastStatus = 200
	return nil
}

func (f *fakeAPI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeAPI) page(recs []envelope.Record, take, skip int) envelope.Page {
	if f.ignoreSkip {
		skip = 0
	}
	if skip >= len(recs) {
		return envelope.Page{}
	}
	end := min(skip+take, len(recs))

	p := envelope.Page{Entries: end - skip}
	for _, r := range recs[skip:end] {
		if r != nil {
			p.Records = append(p.Records, r)
		}
	}
	return p
}

func (f *fakeAPI) Seasons(ctx context.Context, league string) ([]envelope.Record, error) {
	if err := f.record("seasons"); err != nil {
		return nil, err
	}
	return f.seasons, nil
}

func (f *fakeAPI) Teams(ctx context.Context, league, seasonID string) ([]envelope.Record, error) {
	if err := f.record("teams:" + seasonID); err != nil {
		return nil, err
	}
	return f.teams[seasonID], nil
}

func (f *fakeAPI) Games(ctx context.Context, league, seasonID, teamID string, take, skip int) (envelope.Page, error) {
	if err := f.record("games:" + teamID); err != nil {
		return envelope.Page{}, err
	}
	return f.page(f.games[teamID], take, skip), nil
}

func (f *fakeAPI) GameEvents(ctx context.Context, league, gameID string) ([]envelope.Record, error) {
	if err := f.record("events:" + gameID); err != nil {
		return nil, err
	}
	return f.events[gameID], nil
}

func (f *fakeAPI) TeamPlayers(ctx context.Context, league, teamID string) ([]envelope.Record, error) {
	if err := f.record("roster:" + teamID); err != nil {
		return nil, err
	}
	return f.rosters[teamID], nil
}

func (f *fakeAPI) PlayerPlayTypeStats(ctx context.Context, league, seasonID, playType, teamID string, take, skip int) (envelope.Page, error) {
	if err := f.record("stats:" + teamID + "/" + playType); err != nil {
		return envelope.Page{}, err
	}
	return f.page(f.stats[teamID+"/"+playType], take, skip), nil
}

func (f *fakeAPI) LastStatus() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastStatus
}

func (f *fakeAPI) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	ctx := context.Background()

	store, err := repository.NewSQLite(ctx, "sqlite://"+filepath.Join(t.TempDir(), "skout.db"))
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))
	t.Cleanup(store.Close)
	return store
}

func rec(kv ...any) envelope.Record {
	r := envelope.Record{}
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1]
	}
	return r
}

func gameRec(id, status string) envelope.Record {
	return rec("id", id, "status", status, "date", "2024-12-01",
		"homeTeam", map[string]any{"id": "T1", "name": "Home U"},
		"awayTeam", map[string]any{"id": "T2", "name": "Away State"},
		"homeScore", 70.0, "awayScore", 65.0)
}

func eventRec(id, desc string) envelope.Record {
	return rec("id", id, "period", 1.0, "clock", "0:04", "description", desc,
		"offensiveTeam", map[string]any{"id": "T1"})
}

func statRec(playerID string, stats map[string]any) envelope.Record {
	return rec("player", map[string]any{"id": playerID, "name": "Player " + playerID},
		"team", map[string]any{"id": "T1"}, "stats", stats)
}

func seasonRecs(ids ...string) []envelope.Record {
	out := make([]envelope.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, rec("id", id, "name", fmt.Sprintf("%s Season", id)))
	}
	return out
}
