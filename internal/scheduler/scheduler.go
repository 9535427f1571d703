package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"portalrecruit/ingestion/internal/config"
	"portalrecruit/ingestion/internal/derive"
	"portalrecruit/ingestion/internal/ingest"
	"portalrecruit/ingestion/internal/metrics"
	"portalrecruit/ingestion/internal/repository"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// ErrRunInProgress is returned when a run is triggered while another one is
// still going.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Status describes the most recent pipeline run
type Status struct {
	Running    bool            `json:"running"`
	StartedAt  time.Time       `json:"started_at,omitempty"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
	Ingest     *ingest.Summary `json:"ingest,omitempty"`
	Derive     *derive.Result  `json:"derive,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Scheduler runs ingestion followed by derivation on a cron schedule.
// Runs never overlap: a tick that fires during a run is skipped.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *ingest.Orchestrator
	store        repository.Store
	cron         *cron.Cron

	running sync.Mutex

	mu     sync.RWMutex
	status Status
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *config.Config, orchestrator *ingest.Orchestrator, store repository.Store) *Scheduler {
	if cfg.Catalog == nil {
		cfg.Catalog = config.DefaultCatalog()
	}
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		cron:         cron.New(),
	}
}

// Start schedules the pipeline and, when enabled, kicks off an initial run.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.cfg.IngestCron, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled run failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule ingestion: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.cfg.IngestCron).
		Msg("Ingestion scheduled")

	if s.cfg.InitialSyncEnabled {
		go func() {
			log.Info().Msg("Running initial sync...")
			if _, err := s.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("Initial sync failed")
			}
		}()
	}

	return nil
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")
	<-s.cron.Stop().Done()

	// Wait out a run started outside of cron, e.g. the initial sync.
	s.running.Lock()
	defer s.running.Unlock()
	log.Info().Msg("Scheduler stopped")
}

// RunOnce ingests and then derives. Derivation is skipped when no season was
// viable.
func (s *Scheduler) RunOnce(ctx context.Context) (*Status, error) {
	if !s.running.TryLock() {
		log.Warn().Msg("Skipping run, previous run still in progress")
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	start := time.Now()
	s.setStatus(Status{Running: true, StartedAt: start})

	status := Status{StartedAt: start}
	err := s.run(ctx, &status)
	status.FinishedAt = time.Now()
	if err != nil {
		status.Error = err.Error()
	}
	s.setStatus(status)

	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.RecordSync("pipeline", result, time.Since(start).Seconds())

	return &status, err
}

func (s *Scheduler) run(ctx context.Context, status *Status) error {
	summary, err := s.orchestrator.Run(ctx, ingest.Request{
		League:     s.cfg.League,
		SeasonID:   s.cfg.SeasonID,
		AllSeasons: s.cfg.AllSeasons,
		SkipStats:  s.cfg.SkipStats,
	})
	status.Ingest = summary
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	result, err := derive.Run(ctx, s.store, derive.Options{HustleKeywords: s.cfg.Catalog.HustleKeywords})
	if err != nil {
		return fmt.Errorf("derive: %w", err)
	}
	status.Derive = result

	s.publishCounts(ctx)
	return nil
}

// publishCounts refreshes the stored-row gauges.
func (s *Scheduler) publishCounts(ctx context.Context) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read table counts")
		return
	}
	metrics.UpdateStoredRows(counts.Games, counts.Plays, counts.Players, counts.PlayerTraits, counts.SeasonStats)
}

// Status returns the state of the current or last run.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Scheduler) setStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}
