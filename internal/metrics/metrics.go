// Package metrics provides Prometheus instrumentation for the StayZen escrow core.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stayzen",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stayzen",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// EscrowEventsTotal counts ledger events appended by type and outcome.
	EscrowEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stayzen",
			Name:      "escrow_events_total",
			Help:      "Total escrow ledger events appended by event type and outcome.",
		},
		[]string{"event_type", "outcome"},
	)

	// ProviderCallsTotal counts payment provider calls by operation and result.
	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stayzen",
			Name:      "provider_calls_total",
			Help:      "Total payment provider calls by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// RetryAttemptsTotal counts retry attempts by operation label and decision.
	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stayzen",
			Name:      "retry_attempts_total",
			Help:      "Retry attempts by operation label and decision (retried, exhausted, permanent).",
		},
		[]string{"label", "decision"},
	)

	// SchedulerTicksTotal counts release scheduler sweeps.
	SchedulerTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stayzen",
		Name:      "scheduler_ticks_total",
		Help:      "Total release scheduler sweeps executed.",
	})

	// SchedulerCandidates observes how many bookings each sweep found due.
	SchedulerCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stayzen",
		Name:      "scheduler_candidates",
		Help:      "Bookings found due for release per sweep.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	// JobLocksTotal counts lock manager outcomes.
	JobLocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stayzen",
			Name:      "job_locks_total",
			Help:      "Job lock outcomes (acquired, contended, released, force_released, expired).",
		},
		[]string{"outcome"},
	)

	// WebhookCallbacksTotal counts inbound provider callbacks by outcome.
	WebhookCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stayzen",
			Name:      "webhook_callbacks_total",
			Help:      "Inbound provider callbacks by outcome (confirmed, duplicate, unmatched, rejected, skipped).",
		},
		[]string{"outcome"},
	)

	// ReversedTransfersTotal counts reversed transfer alerts surfaced to operators.
	ReversedTransfersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stayzen",
		Name:      "reversed_transfers_total",
		Help:      "Reversed transfer events requiring operator action.",
	})

	// NotificationsTotal counts state-transition notices by result.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stayzen",
			Name:      "notifications_total",
			Help:      "Outbound state-transition notices by result.",
		},
		[]string{"result"},
	)

	// ActiveWebSocketClients tracks connected operator feed clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stayzen",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected operator feed clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stayzen", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stayzen", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stayzen", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		EscrowEventsTotal,
		ProviderCallsTotal,
		RetryAttemptsTotal,
		SchedulerTicksTotal,
		SchedulerCandidates,
		JobLocksTotal,
		WebhookCallbacksTotal,
		ReversedTransfersTotal,
		NotificationsTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware recording request counts and latency.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := statusClass(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
