package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"portalrecruit/ingestion/internal/derive"
	"portalrecruit/ingestion/internal/ingest"

	"github.com/spf13/cobra"
)

type ingestOptions struct {
	league         string
	season         string
	allSeasons     bool
	reset          bool
	refreshRosters bool
	skipStats      bool
	skipDerive     bool
}

func ingestCmd() *cobra.Command {
	opts := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch new games, plays, rosters and season stats into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.league, "league", "", "League code (defaults to SYNERGY_LEAGUE)")
	cmd.Flags().StringVar(&opts.season, "season", "", "Season id (defaults to the latest accessible season)")
	cmd.Flags().BoolVar(&opts.allSeasons, "all-seasons", false, "Ingest every accessible season")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Empty every table once the API has listed a season")
	cmd.Flags().BoolVar(&opts.refreshRosters, "refresh-rosters", false, "Refetch rosters of teams that already have players")
	cmd.Flags().BoolVar(&opts.skipStats, "skip-stats", false, "Skip the season stats aggregation")
	cmd.Flags().BoolVar(&opts.skipDerive, "skip-derive", false, "Skip name backfill and trait derivation")
	return cmd
}

func runIngest(cmd *cobra.Command, opts *ingestOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	api, closeCache, err := newClient(ctx, cfg, opts.reset)
	if err != nil {
		return err
	}
	defer closeCache()

	req := ingest.Request{
		League:         cfg.League,
		SeasonID:       cfg.SeasonID,
		AllSeasons:     opts.allSeasons || cfg.AllSeasons,
		RefreshRosters: opts.refreshRosters,
		SkipStats:      opts.skipStats || cfg.SkipStats,
		Reset:          opts.reset,
	}
	if opts.league != "" {
		req.League = opts.league
	}
	if opts.season != "" {
		req.SeasonID = opts.season
	}

	summary, err := ingest.NewOrchestrator(api, store, cfg.Catalog).Run(ctx, req)
	printSummary(cmd, summary)
	if err != nil {
		return err
	}

	if opts.skipDerive {
		return nil
	}
	return runDerivePass(ctx, cmd, store, derive.Options{HustleKeywords: cfg.Catalog.HustleKeywords})
}

func printSummary(cmd *cobra.Command, s *ingest.Summary) {
	if s == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Ingestion complete.")
	fmt.Fprintf(out, "  Run:             %s\n", s.RunID)
	fmt.Fprintf(out, "  Seasons:         %v\n", s.Seasons)
	fmt.Fprintf(out, "  Games added:     %d\n", s.GamesAdded)
	fmt.Fprintf(out, "  Games refreshed: %d\n", s.GamesRefreshed)
	fmt.Fprintf(out, "  Plays added:     %d\n", s.PlaysAdded)
	fmt.Fprintf(out, "  Players:         %d\n", s.PlayersTouched)
	fmt.Fprintf(out, "  Stat rows:       %d\n", s.StatRows)
	fmt.Fprintf(out, "  Dropped:         %d\n", s.Dropped)
	fmt.Fprintf(out, "  Duration:        %s\n", s.Duration.Round(time.Millisecond))

	if len(s.Warnings) > 0 {
		fmt.Fprintf(out, "\nWarnings (%d):\n", len(s.Warnings))
		for _, w := range s.Warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
}

// runDerivePass is shared by ingest and derive.
func runDerivePass(ctx context.Context, cmd *cobra.Command, store derive.Store, opts derive.Options) error {
	result, err := derive.Run(ctx, store, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Derivation complete.")
	if b := result.Backfill; b != nil {
		fmt.Fprintf(out, "  Plays scanned:   %d\n", b.Scanned)
		fmt.Fprintf(out, "  Names backfilled: %d (%d rostered, %d synthesized, %d kept id)\n", b.Updated, b.Matched, b.Synthesized, b.Kept)
	}
	fmt.Fprintf(out, "  Players scored:  %d\n", result.Traits)
	return nil
}
