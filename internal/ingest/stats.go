package ingest

import (
	"context"
	"sort"

	"portalrecruit/ingestion/internal/client"
	"portalrecruit/ingestion/internal/envelope"
	"portalrecruit/ingestion/internal/models"

	"github.com/rs/zerolog"
)

// syncSeasonStats pages the play-type report for every team and play type,
// sums the counters of known players and writes one finalized row per
// player. Ratios are computed once from the summed counters.
func (o *Orchestrator) syncSeasonStats(ctx context.Context, league, seasonID string, teams []*models.Team, summary *Summary, logger zerolog.Logger) error {
	known, err := o.store.PlayerIDs(ctx)
	if err != nil {
		return err
	}

	totals := make(map[string]*models.PlayerSeasonStats)
	unknown := 0
	for _, team := range teams {
		for _, playType := range o.catalog.PlayTypes {
			fetch := func(ctx context.Context, take, skip int) (envelope.Page, error) {
				return o.api.PlayerPlayTypeStats(ctx, league, seasonID, playType, team.TeamID, take, skip)
			}
			// The report has one row per player; a repeated row is a repeated page.
			listed := make(map[string]struct{})
			visit := func(recs []envelope.Record) int {
				added := 0
				for _, rec := range recs {
					var line models.StatLineInput
					if err := models.Decode(rec, &line); err != nil {
						summary.Dropped++
						continue
					}
					pid := line.PlayerID()
					if pid == "" {
						unknown++
						continue
					}
					if _, dup := listed[pid]; dup {
						continue
					}
					listed[pid] = struct{}{}
					added++

					if _, ok := known[pid]; !ok {
						unknown++
						continue
					}

					row, ok := totals[pid]
					if !ok {
						row = &models.PlayerSeasonStats{PlayerID: pid, SeasonID: seasonID}
						totals[pid] = row
					}
					row.TeamID = team.TeamID
					row.Add(line.Stats)
				}
				return added
			}

			if err := walkPages(ctx, client.StatsPageSize, fetch, visit); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				summary.warn(logger, "team %s: %s stats unavailable: %v", team.TeamID, playType, err)
			}
		}
	}

	now := o.now().UTC()
	rows := make([]*models.PlayerSeasonStats, 0, len(totals))
	for _, row := range totals {
		row.Finalize(now)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PlayerID < rows[j].PlayerID })

	n, err := o.store.ReplaceSeasonStats(ctx, rows)
	if err != nil {
		return err
	}
	summary.StatRows += n

	logger.Info().
		Int("players", n).
		Int("unknown_players", unknown).
		Msg("Season stats aggregated")
	return nil
}
