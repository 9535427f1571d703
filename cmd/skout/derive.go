package main

import (
	"portalrecruit/ingestion/internal/derive"

	"github.com/spf13/cobra"
)

func deriveCmd() *cobra.Command {
	var skipBackfill bool
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Backfill play attribution and rebuild player traits",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			return runDerivePass(ctx, cmd, store, derive.Options{
				SkipBackfill:   skipBackfill,
				HustleKeywords: cfg.Catalog.HustleKeywords,
			})
		},
	}
	cmd.Flags().BoolVar(&skipBackfill, "skip-backfill", false, "Do not attribute plays from their description")
	return cmd
}
