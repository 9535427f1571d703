package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"portalrecruit/ingestion/internal/models"
	"portalrecruit/ingestion/internal/scheduler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type storeChecker interface {
	Health(ctx context.Context) error
	Counts(ctx context.Context) (*models.StoreCounts, error)
}

// poolReporter is implemented by both store backends.
type poolReporter interface {
	PoolStats() map[string]int64
}

type statusSource interface {
	Status() scheduler.Status
}

// newRouter serves /health, /metrics and /status.
func newRouter(store storeChecker, sched statusSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := store.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		counts, err := store.Counts(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		body := map[string]any{
			"run":             sched.Status(),
			"counts":          counts,
			"player_coverage": counts.PlayerCoverage(),
		}
		if p, ok := store.(poolReporter); ok {
			body["pool"] = p.PoolStats()
		}
		writeJSON(w, http.StatusOK, body)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
