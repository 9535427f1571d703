package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"portalrecruit/ingestion/internal/models"
	"portalrecruit/ingestion/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	healthErr error
	counts    *models.StoreCounts
}

func (s *stubStore) Health(ctx context.Context) error { return s.healthErr }

func (s *stubStore) Counts(ctx context.Context) (*models.StoreCounts, error) {
	return s.counts, nil
}

type pooledStore struct {
	stubStore
}

func (s *pooledStore) PoolStats() map[string]int64 {
	return map[string]int64{"total_conns": 3, "max_conns": 10}
}

type stubStatus struct{ status scheduler.Status }

func (s stubStatus) Status() scheduler.Status { return s.status }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		status string
	}{
		{name: "healthy", code: http.StatusOK, status: "healthy"},
		{name: "store down", err: errors.New("connection refused"), code: http.StatusServiceUnavailable, status: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&stubStore{healthErr: tt.err}, stubStatus{})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
		})
	}
}

func TestStatus(t *testing.T) {
	store := &stubStore{counts: &models.StoreCounts{Games: 4, Plays: 10, PlaysWithPlayer: 5}}
	router := newRouter(store, stubStatus{status: scheduler.Status{Running: true}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Run      scheduler.Status   `json:"run"`
		Counts   models.StoreCounts `json:"counts"`
		Coverage float64            `json:"player_coverage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Run.Running)
	assert.Equal(t, int64(4), body.Counts.Games)
	assert.Equal(t, 50.0, body.Coverage)
}

func TestStatusReportsPool(t *testing.T) {
	tests := []struct {
		name  string
		store storeChecker
		pool  map[string]int64
	}{
		{name: "pooled store", store: &pooledStore{stubStore{counts: &models.StoreCounts{}}}, pool: map[string]int64{"total_conns": 3, "max_conns": 10}},
		{name: "no pool", store: &stubStore{counts: &models.StoreCounts{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(tt.store, stubStatus{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var body struct {
				Pool map[string]int64 `json:"pool"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.pool, body.Pool)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newRouter(&stubStore{}, stubStatus{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skout_")
}
