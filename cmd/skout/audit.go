package main

import (
	"encoding/json"
	"fmt"

	"portalrecruit/ingestion/internal/models"

	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report table sizes and player attribution coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			counts, err := store.Counts(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					*models.StoreCounts
					Coverage float64 `json:"player_coverage"`
				}{counts, counts.PlayerCoverage()})
			}

			fmt.Fprintf(out, "games:               %d\n", counts.Games)
			fmt.Fprintf(out, "plays:               %d\n", counts.Plays)
			fmt.Fprintf(out, "plays with player:   %d (%.1f%%)\n", counts.PlaysWithPlayer, counts.PlayerCoverage())
			fmt.Fprintf(out, "players:             %d\n", counts.Players)
			fmt.Fprintf(out, "player_traits:       %d\n", counts.PlayerTraits)
			fmt.Fprintf(out, "player_season_stats: %d\n", counts.SeasonStats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
