// Package metrics holds the Prometheus collectors shared by the file
// tracking packages and the gin middleware that records HTTP traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsense_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsense_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var (
	// TransitionsTotal status transitions by source, target and result
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsense_transitions_total",
			Help: "Lifecycle status transitions",
		},
		[]string{"from", "to", "result"},
	)

	// DuplicateArtifactsTotal moves that found the destination already present
	DuplicateArtifactsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docsense_duplicate_artifacts_total",
			Help: "Moves recovered by keeping an existing destination",
		},
	)

	// FilesTotal tracked records per status
	FilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docsense_files_total",
			Help: "Tracked records per status",
		},
		[]string{"status"},
	)

	// CleanupTotal archived records handled by cleanup
	CleanupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsense_cleanup_total",
			Help: "Archived records deleted or skipped by cleanup",
		},
		[]string{"result"},
	)

	// ReconcileIssuesTotal issues found by the reconciliation scan
	ReconcileIssuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsense_reconcile_issues_total",
			Help: "Reconciliation issues by kind",
		},
		[]string{"kind"},
	)

	// ReconcileDuration reconciliation scan duration
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docsense_reconcile_duration_seconds",
			Help:    "Reconciliation scan duration",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	// HashCacheTotal content hash memo lookups
	HashCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsense_hash_cache_total",
			Help: "Content hash cache lookups by result",
		},
		[]string{"result"},
	)

	// AnalysisDuration LLM analysis latency by provider and result
	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsense_analysis_duration_seconds",
			Help:    "Analysis call latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "result"},
	)
)

// Result label helper
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// GinMiddleware records request counts and latency per route template
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
