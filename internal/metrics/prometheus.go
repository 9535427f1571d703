package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the ingestion service

var (
	// API Call metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skout_api_calls_total",
			Help: "Total number of Synergy API calls",
		},
		[]string{"endpoint", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skout_api_call_duration_seconds",
			Help:    "Duration of API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skout_api_retries_total",
			Help: "Total number of API retries by failure kind",
		},
		[]string{"kind"},
	)

	RateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skout_rate_limit_hits_total",
			Help: "Total number of 429 responses",
		},
	)

	ThrottleInterval = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skout_throttle_interval_seconds",
			Help: "Current minimum spacing between API requests",
		},
	)

	DroppedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skout_dropped_records_total",
			Help: "Upstream entries dropped for not matching the expected shape",
		},
		[]string{"endpoint"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skout_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skout_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skout_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skout_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skout_cache_operation_duration_seconds",
			Help:    "Duration of cache operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Sync metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skout_sync_operations_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"type", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skout_sync_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"type"},
	)

	IngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skout_ingested_total",
			Help: "Rows written by ingestion, by entity",
		},
		[]string{"entity"},
	)

	StoredRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skout_stored_rows",
			Help: "Rows currently in the store, by table",
		},
		[]string{"table"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skout_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skout_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skout_last_successful_sync_timestamp",
			Help: "Timestamp of last successful pipeline run",
		},
	)
)

// RecordAPICall records an API call metric
func RecordAPICall(endpoint, status string, duration float64) {
	APICallsTotal.WithLabelValues(endpoint, status).Inc()
	APICallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordRetry records a retried API attempt
func RecordRetry(kind string) {
	APIRetriesTotal.WithLabelValues(kind).Inc()
}

// RecordRateLimit records a 429 response
func RecordRateLimit() {
	RateLimitHitsTotal.Inc()
}

// SetThrottleInterval publishes the current throttle spacing
func SetThrottleInterval(seconds float64) {
	ThrottleInterval.Set(seconds)
}

// RecordDropped records upstream entries dropped during unwrapping
func RecordDropped(endpoint string, n int) {
	DroppedRecordsTotal.WithLabelValues(endpoint).Add(float64(n))
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordCacheOperation records a cache operation duration
func RecordCacheOperation(operation string, duration float64) {
	CacheOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordSync records a sync operation
func RecordSync(syncType, status string, duration float64) {
	SyncOperationsTotal.WithLabelValues(syncType, status).Inc()
	SyncDuration.WithLabelValues(syncType).Observe(duration)

	if status == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// RecordIngested records rows written for an entity
func RecordIngested(entity string, n int) {
	if n <= 0 {
		return
	}
	IngestedTotal.WithLabelValues(entity).Add(float64(n))
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateStoredRows updates the per-table row gauges
func UpdateStoredRows(games, plays, players, traits, seasonStats int64) {
	StoredRows.WithLabelValues("games").Set(float64(games))
	StoredRows.WithLabelValues("plays").Set(float64(plays))
	StoredRows.WithLabelValues("players").Set(float64(players))
	StoredRows.WithLabelValues("player_traits").Set(float64(traits))
	StoredRows.WithLabelValues("player_season_stats").Set(float64(seasonStats))
}
