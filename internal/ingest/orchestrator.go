// Package ingest brings the local store up to date with the upstream API.
// A run touches only what is missing: games not yet stored, rosters of teams
// without players, and events of games first seen in the run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portalrecruit/ingestion/internal/client"
	"portalrecruit/ingestion/internal/config"
	"portalrecruit/ingestion/internal/derive"
	"portalrecruit/ingestion/internal/envelope"
	"portalrecruit/ingestion/internal/metrics"
	"portalrecruit/ingestion/internal/models"
	"portalrecruit/ingestion/internal/repository"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoSeasons means the API returned no accessible season.
	ErrNoSeasons = errors.New("no seasons available")
	// ErrNoTargetSeason means no season id could be resolved from the seasons list.
	ErrNoTargetSeason = errors.New("unable to determine a season id")
	// ErrNoViableSeason means no target season had an accessible team.
	ErrNoViableSeason = errors.New("no season with accessible teams")
)

// Fetcher is the upstream API as used by a run. *client.Client satisfies it.
type Fetcher interface {
	Seasons(ctx context.Context, league string) ([]envelope.Record, error)
	Teams(ctx context.Context, league, seasonID string) ([]envelope.Record, error)
	Games(ctx context.Context, league, seasonID, teamID string, take, skip int) (envelope.Page, error)
	GameEvents(ctx context.Context, league, gameID string) ([]envelope.Record, error)
	TeamPlayers(ctx context.Context, league, teamID string) ([]envelope.Record, error)
	PlayerPlayTypeStats(ctx context.Context, league, seasonID, playType, teamID string, take, skip int) (envelope.Page, error)
	LastStatus() int
	LastError() string
}

var _ Fetcher = (*client.Client)(nil)

// Request selects what a run ingests
type Request struct {
	League   string
	SeasonID string
	// AllSeasons ingests every accessible season instead of the latest one.
	AllSeasons bool
	// RefreshRosters refetches rosters of teams that already have players.
	RefreshRosters bool
	SkipStats      bool
	// Reset empties the store once the upstream has listed a target season,
	// so a rejected key or an unreachable API leaves stored rows alone.
	Reset bool
}

// Summary reports what a run changed
type Summary struct {
	RunID          string        `json:"run_id"`
	Seasons        []string      `json:"seasons"`
	GamesAdded     int           `json:"games_added"`
	GamesRefreshed int           `json:"games_refreshed"`
	PlaysAdded     int           `json:"plays_added"`
	PlayersTouched int           `json:"players_touched"`
	StatRows       int           `json:"stat_rows"`
	Dropped        int           `json:"dropped"`
	Warnings       []string      `json:"warnings,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Viable reports whether at least one season had at least one team.
func (s *Summary) Viable() bool {
	return len(s.Seasons) > 0
}

func (s *Summary) warn(logger zerolog.Logger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.Warnings = append(s.Warnings, msg)
	logger.Warn().Msg(msg)
}

// Orchestrator runs ingestion against one upstream and one store
type Orchestrator struct {
	api     Fetcher
	store   repository.Store
	catalog *config.Catalog
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator. A nil catalog uses the defaults.
func NewOrchestrator(api Fetcher, store repository.Store, catalog *config.Catalog) *Orchestrator {
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	return &Orchestrator{
		api:     api,
		store:   store,
		catalog: catalog,
		now:     time.Now,
	}
}

// Run performs one ingestion pass. Upstream gaps for a team or season become
// warnings; store failures and cancellation abort the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	logger := log.With().Str("run_id", summary.RunID).Str("league", req.League).Logger()

	err := o.run(ctx, req, summary, logger)
	summary.Duration = time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		metrics.RecordError("ingest", errorType(err))
	}
	metrics.RecordSync("ingest", status, summary.Duration.Seconds())
	metrics.RecordIngested("games", summary.GamesAdded)
	metrics.RecordIngested("plays", summary.PlaysAdded)
	metrics.RecordIngested("players", summary.PlayersTouched)
	metrics.RecordIngested("season_stats", summary.StatRows)

	logger.Info().
		Strs("seasons", summary.Seasons).
		Int("games_added", summary.GamesAdded).
		Int("games_refreshed", summary.GamesRefreshed).
		Int("plays_added", summary.PlaysAdded).
		Int("players_touched", summary.PlayersTouched).
		Int("stat_rows", summary.StatRows).
		Int("warnings", len(summary.Warnings)).
		Dur("duration", summary.Duration).
		Msg("Ingestion finished")

	return summary, err
}

func (o *Orchestrator) run(ctx context.Context, req Request, summary *Summary, logger zerolog.Logger) error {
	seasons, err := o.api.Seasons(ctx, req.League)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil || len(seasons) == 0 {
		return fmt.Errorf("%w (status=%d, err=%q)", ErrNoSeasons, o.api.LastStatus(), o.api.LastError())
	}

	targets := targetSeasons(req, seasons)
	if len(targets) == 0 {
		return ErrNoTargetSeason
	}
	logger.Info().Strs("targets", targets).Int("accessible", len(seasons)).Msg("Resolved target seasons")

	if req.Reset {
		if err := o.store.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		logger.Warn().Msg("Store reset")
	}

	for _, seasonID := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.ingestSeason(ctx, req, seasonID, summary, logger.With().Str("season", seasonID).Logger()); err != nil {
			return fmt.Errorf("season %s: %w", seasonID, err)
		}
	}

	if !summary.Viable() {
		return ErrNoViableSeason
	}
	return nil
}

func (o *Orchestrator) ingestSeason(ctx context.Context, req Request, seasonID string, summary *Summary, logger zerolog.Logger) error {
	teams, err := o.fetchTeams(ctx, req.League, seasonID, summary)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		summary.warn(logger, "season %s: teams unavailable: %v", seasonID, err)
		return nil
	}
	if len(teams) == 0 {
		summary.warn(logger, "season %s: no accessible teams", seasonID)
		return nil
	}
	summary.Seasons = append(summary.Seasons, seasonID)

	stored, err := o.store.SeasonGames(ctx, seasonID)
	if err != nil {
		return err
	}
	logger.Info().Int("teams", len(teams)).Int("stored_games", len(stored)).Msg("Scanning season")

	fresh, refreshed, err := o.collectGames(ctx, req.League, seasonID, teams, stored, summary, logger)
	if err != nil {
		return err
	}
	if len(fresh)+len(refreshed) > 0 {
		batch := append(append([]*models.Game{}, fresh...), refreshed...)
		if _, err := o.store.UpsertGames(ctx, batch); err != nil {
			return err
		}
	} else {
		logger.Info().Msg("No new games")
	}
	summary.GamesAdded += len(fresh)
	summary.GamesRefreshed += len(refreshed)

	if err := o.syncRosters(ctx, req, teams, summary, logger); err != nil {
		return err
	}

	// Refreshed games only get events once they turned terminal.
	if err := o.syncPlays(ctx, req.League, append(fresh, refreshed...), summary, logger); err != nil {
		return err
	}

	if req.SkipStats {
		return nil
	}
	return o.syncSeasonStats(ctx, req.League, seasonID, teams, summary, logger)
}

func (o *Orchestrator) fetchTeams(ctx context.Context, league, seasonID string, summary *Summary) ([]*models.Team, error) {
	recs, err := o.api.Teams(ctx, league, seasonID)
	if err != nil {
		return nil, err
	}

	teams := make([]*models.Team, 0, len(recs))
	for _, rec := range recs {
		var in models.TeamInput
		if err := models.Decode(rec, &in); err != nil {
			summary.Dropped++
			continue
		}
		team, err := in.ToTeam()
		if err != nil {
			summary.Dropped++
			continue
		}
		teams = append(teams, team)
	}
	return teams, nil
}

// collectGames pages every team's games and splits them into games never
// stored and stored non-terminal games whose status moved. A game listed by
// both of its teams is kept once.
func (o *Orchestrator) collectGames(ctx context.Context, league, seasonID string, teams []*models.Team, stored map[string]string, summary *Summary, logger zerolog.Logger) ([]*models.Game, []*models.Game, error) {
	seen := bloom.NewWithEstimates(uint(len(stored)+len(teams)*client.GamesPageSize+1), 0.001)
	collected := make(map[string]struct{})

	var fresh, refreshed []*models.Game
	for _, team := range teams {
		fetch := func(ctx context.Context, take, skip int) (envelope.Page, error) {
			return o.api.Games(ctx, league, seasonID, team.TeamID, take, skip)
		}
		listed := make(map[string]struct{})
		visit := func(recs []envelope.Record) int {
			added := 0
			for _, rec := range recs {
				var in models.GameInput
				if err := models.Decode(rec, &in); err != nil {
					summary.Dropped++
					continue
				}
				game, err := in.ToGame(seasonID)
				if err != nil {
					summary.Dropped++
					continue
				}
				if _, dup := listed[game.GameID]; dup {
					continue
				}
				listed[game.GameID] = struct{}{}
				added++

				if seen.TestString(game.GameID) {
					if _, dup := collected[game.GameID]; dup {
						continue
					}
				}
				seen.AddString(game.GameID)
				collected[game.GameID] = struct{}{}

				status, known := stored[game.GameID]
				switch {
				case !known:
					fresh = append(fresh, game)
				case !o.catalog.IsTerminal(status) && models.StatusChanged(status, game.Status):
					refreshed = append(refreshed, game)
				}
			}
			return added
		}

		if err := walkPages(ctx, client.GamesPageSize, fetch, visit); err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			summary.warn(logger, "team %s: games unavailable: %v", team.TeamID, err)
		}
	}

	return fresh, refreshed, nil
}

// syncRosters fetches rosters of teams with no stored player, or of every
// team when the request asks for a refresh.
func (o *Orchestrator) syncRosters(ctx context.Context, req Request, teams []*models.Team, summary *Summary, logger zerolog.Logger) error {
	for _, team := range teams {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !req.RefreshRosters {
			has, err := o.store.TeamHasPlayers(ctx, team.TeamID)
			if err != nil {
				return err
			}
			if has {
				continue
			}
		}

		recs, err := o.api.TeamPlayers(ctx, req.League, team.TeamID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			summary.warn(logger, "team %s: roster unavailable: %v", team.TeamID, err)
			continue
		}

		players := make([]*models.Player, 0, len(recs))
		for _, rec := range recs {
			var in models.PlayerInput
			if err := models.Decode(rec, &in); err != nil {
				summary.Dropped++
				continue
			}
			player, err := in.ToPlayer(team.TeamID)
			if err != nil {
				summary.Dropped++
				continue
			}
			players = append(players, player)
		}

		n, err := o.store.UpsertPlayers(ctx, players)
		if err != nil {
			return err
		}
		summary.PlayersTouched += n
	}
	return nil
}

// syncPlays fetches events for terminal games and stores them as tagged
// plays, one transaction per game.
func (o *Orchestrator) syncPlays(ctx context.Context, league string, games []*models.Game, summary *Summary, logger zerolog.Logger) error {
	for i, game := range games {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !o.catalog.IsTerminal(game.Status) {
			continue
		}
		if i%10 == 0 {
			logger.Debug().Int("done", i).Int("total", len(games)).Msg("Fetching events")
		}

		recs, err := o.api.GameEvents(ctx, league, game.GameID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			summary.warn(logger, "game %s: events unavailable: %v", game.GameID, err)
			continue
		}

		plays := make([]*models.Play, 0, len(recs))
		for seq, rec := range recs {
			var in models.EventInput
			if err := models.Decode(rec, &in); err != nil {
				summary.Dropped++
				continue
			}
			play, err := in.ToPlay(game.GameID, seq)
			if err != nil {
				summary.Dropped++
				continue
			}
			play.Tags = derive.TagPlay(play)
			plays = append(plays, play)
		}

		n, err := o.store.UpsertPlays(ctx, plays)
		if err != nil {
			return err
		}
		summary.PlaysAdded += n
	}
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrNoSeasons), errors.Is(err, ErrNoTargetSeason), errors.Is(err, ErrNoViableSeason):
		return "no_data"
	}
	return "store"
}
