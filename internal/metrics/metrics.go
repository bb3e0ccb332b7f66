// Package metrics exposes Prometheus metrics and a health endpoint for
// the trendfilter services.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds all Prometheus metrics for the filter pipeline.
type Metrics struct {
	BarsProcessed  prometheus.Counter
	RunsTotal      *prometheus.CounterVec // labels: outcome=completed|failed
	RunDuration    prometheus.Histogram
	FilterChanges  prometheus.Counter
	TrendReversals prometheus.Counter

	// Storage
	SQLiteCommitDur  prometheus.Histogram
	RedisPublishDur  prometheus.Histogram
	RecordsPublished prometheus.Counter

	// Redis circuit breaker
	BreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter

	// Gateway
	WSClients       prometheus.Gauge
	RecordsStreamed prometheus.Counter
	ReplayDrops     prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendfilter_bars_processed_total",
			Help: "Total OHLC bars fed through filter engines",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendfilter_runs_total",
			Help: "Filter runs by outcome",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trendfilter_run_duration_seconds",
			Help:    "Wall time of a full filter run",
			Buckets: prometheus.DefBuckets,
		}),
		FilterChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendfilter_filter_changes_total",
			Help: "Bars where the filter line moved",
		}),
		TrendReversals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendfilter_trend_reversals_total",
			Help: "Up/down flips of the emitted trend direction",
		}),

		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trendfilter_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trendfilter_redis_publish_duration_seconds",
			Help:    "Redis run publish latency",
			Buckets: prometheus.DefBuckets,
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendfilter_records_published_total",
			Help: "Filter records pushed to the Redis stream",
		}),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trendfilter_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendfilter_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trendfilter_ws_clients",
			Help: "Connected WebSocket replay clients",
		}),
		RecordsStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendfilter_ws_records_streamed_total",
			Help: "Filter records streamed to WebSocket clients",
		}),
		ReplayDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendfilter_ws_replay_drops_total",
			Help: "Replay frames dropped on slow WebSocket clients",
		}),
	}

	prometheus.MustRegister(
		m.BarsProcessed,
		m.RunsTotal,
		m.RunDuration,
		m.FilterChanges,
		m.TrendReversals,
		m.SQLiteCommitDur,
		m.RedisPublishDur,
		m.RecordsPublished,
		m.BreakerState,
		m.BreakerTrips,
		m.WSClients,
		m.RecordsStreamed,
		m.ReplayDrops,
	)

	return m
}

// HealthStatus represents service health.
type HealthStatus struct {
	mu sync.RWMutex

	SQLiteOK       bool
	RedisEnabled   bool
	RedisConnected bool
	LastRunAt      time.Time

	SQLiteLatencyMs float64
	RedisLatencyMs  float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(redisEnabled bool) *HealthStatus {
	return &HealthStatus{
		RedisEnabled: redisEnabled,
		StartedAt:    time.Now(),
	}
}

func (h *HealthStatus) SetLastRunAt(t time.Time) {
	h.mu.Lock()
	h.LastRunAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK || (h.RedisEnabled && !h.RedisConnected) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.SQLiteOK && h.RedisEnabled && !h.RedisConnected {
		overallStatus = "unhealthy"
	}

	lastRun := ""
	if !h.LastRunAt.IsZero() {
		lastRun = h.LastRunAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		LastRunAt       string  `json:"last_run_at"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		LastRunAt:       lastRun,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("metrics server listening")
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server")
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
