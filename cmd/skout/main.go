// Command skout runs the ingestion and derivation pipeline by hand.
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"portalrecruit/ingestion/internal/cache"
	"portalrecruit/ingestion/internal/client"
	"portalrecruit/ingestion/internal/config"
	"portalrecruit/ingestion/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "skout",
		Short:        "Ingest Synergy play-by-play data and derive player features",
		SilenceUsage: true,
	}
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setupLogger()
	}
	root.AddCommand(ingestCmd())
	root.AddCommand(deriveCmd())
	root.AddCommand(auditCmd())
	return root
}

// setupLogger writes human-readable logs to stderr so command output on
// stdout stays clean.
func setupLogger() {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.TimeOnly,
	})

	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zerolog.ParseLevel(lvl); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
}

// openStore loads configuration and opens the configured store.
func openStore(ctx context.Context) (*config.Config, repository.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// newClient builds the API client, cached through Redis when enabled and
// reachable. flush drops previously cached responses.
func newClient(ctx context.Context, cfg *config.Config, flush bool) (*client.Client, func(), error) {
	var responseCache client.ResponseCache
	closeCache := func() {}

	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(cache.Config{
			Host:     cfg.RedisHost,
			Port:     strconv.Itoa(cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		} else {
			responseCache = redisCache
			closeCache = func() { _ = redisCache.Close() }

			if flush {
				n, err := redisCache.Invalidate(ctx, "synergy:")
				if err != nil {
					log.Warn().Err(err).Msg("Failed to flush cached responses")
				} else {
					log.Info().Int("keys", n).Msg("Cached responses flushed")
				}
			}
		}
	}

	api, err := client.NewClientFromConfig(cfg, responseCache)
	if err != nil {
		closeCache()
		return nil, nil, err
	}
	return api, closeCache, nil
}
