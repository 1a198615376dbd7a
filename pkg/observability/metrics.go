package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access decision metrics
	AccessChecksTotal    *prometheus.CounterVec // outcome: allow/deny, level
	AccessCheckDuration  *prometheus.HistogramVec
	AccessBatchSizes     prometheus.Histogram
	DecisionCacheHits    prometheus.Counter
	DecisionCacheMisses  prometheus.Counter

	// Grant metrics
	GrantsTotal          *prometheus.CounterVec // role
	GrantCleanupsTotal   *prometheus.CounterVec // kind: direct_grant/registered_role
	RevokesTotal         *prometheus.CounterVec

	// Quota metrics
	QuotaChecksTotal     *prometheus.CounterVec // tier, outcome
	QuotaDenialsTotal    *prometheus.CounterVec // tier
	ReconcilerRunsTotal  prometheus.Counter
	ReconcilerDeactivationsTotal prometheus.Counter

	// Search metrics
	SearchRequestsTotal  *prometheus.CounterVec // mode
	SearchDuration       *prometheus.HistogramVec
	SearchCandidateCount prometheus.Histogram

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Redis metrics
	RedisConnectionsActive prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hivedocs_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hivedocs_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AccessChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hivedocs_access_checks_total",
				Help: "Access decisions by document access level and outcome",
			},
			[]string{"level", "outcome"},
		),
		AccessCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hivedocs_access_check_duration_seconds",
				Help:    "Access decision evaluation time",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"kind"}, // single or batch
		),
		AccessBatchSizes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hivedocs_access_batch_size",
				Help:    "Number of documents per batch access check",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		DecisionCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hivedocs_decision_cache_hits_total",
				Help: "Access decision cache hits",
			},
		),
		DecisionCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hivedocs_decision_cache_misses_total",
				Help: "Access decision cache misses",
			},
		),

		GrantsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hivedocs_role_grants_total",
				Help: "Role assignments granted, by role",
			},
			[]string{"role"},
		),
		GrantCleanupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hivedocs_grant_cleanups_total",
				Help: "Redundant rows removed by grant-time cleanup, by kind",
			},
			[]string{"kind"},
		),
		RevokesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hivedocs_role_revokes_total",
				Help: "Role assignments revoked, by role",
			},
			[]string{"role"},
		),

		QuotaChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hivedocs_quota_checks_total",
				Help: "Document quota checks by plan tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		QuotaDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hivedocs_quota_denials_total",
				Help: "Document creations denied by plan quota, by tier",
			},
			[]string{"tier"},
		),
		ReconcilerRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hivedocs_quota_reconciler_runs_total",
				Help: "Completed quota reconciler sweeps",
			},
		),
		ReconcilerDeactivationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hivedocs_quota_reconciler_deactivations_total",
				Help: "Documents deactivated by the quota reconciler",
			},
		),

		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hivedocs_search_requests_total",
				Help: "Hybrid search requests by score mode",
			},
			[]string{"mode"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hivedocs_search_duration_seconds",
				Help:    "Hybrid search end-to-end duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		SearchCandidateCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hivedocs_search_candidates",
				Help:    "Candidate chunks fetched per search",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hivedocs_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hivedocs_db_connections_idle",
				Help: "Idle database connections",
			},
		),
		RedisConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hivedocs_redis_connections_active",
				Help: "Active Redis connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessChecksTotal,
		m.AccessCheckDuration,
		m.AccessBatchSizes,
		m.DecisionCacheHits,
		m.DecisionCacheMisses,
		m.GrantsTotal,
		m.GrantCleanupsTotal,
		m.RevokesTotal,
		m.QuotaChecksTotal,
		m.QuotaDenialsTotal,
		m.ReconcilerRunsTotal,
		m.ReconcilerDeactivationsTotal,
		m.SearchRequestsTotal,
		m.SearchDuration,
		m.SearchCandidateCount,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.RedisConnectionsActive,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware instruments HTTP handlers with request metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// CollectDBStats copies sql.DB pool stats into the database gauges.
// Call periodically from the main loop.
func (m *Metrics) CollectDBStats(db *sql.DB) {
	stats := db.Stats()
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// statusRecorder captures the response status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
