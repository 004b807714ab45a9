// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestSize measures HTTP request body size in bytes
	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Pipeline metrics track the fetch/enrich/brief scheduler+queue+worker
// pipelines. Every metric here is labeled by pipeline ("fetch", "enrich",
// "brief") so the three pipelines can be graphed side by side.
var (
	// PipelineQueueDepth tracks how many ids currently sit in a pipeline's queue.
	PipelineQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_depth",
			Help: "Number of ids currently enqueued for a pipeline",
		},
		[]string{"pipeline"},
	)

	// PipelineQueueCapacity tracks the configured bound of a pipeline's queue.
	PipelineQueueCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_capacity",
			Help: "Configured capacity of a pipeline's bounded queue",
		},
		[]string{"pipeline"},
	)

	// PipelineWorkerBusy tracks how many of a pipeline's workers are
	// currently processing an item.
	PipelineWorkerBusy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_worker_busy",
			Help: "Number of workers currently processing an item",
		},
		[]string{"pipeline"},
	)

	// SchedulerCycleDuration measures how long a pipeline's scheduler tick
	// took to select and enqueue eligible ids.
	SchedulerCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_scheduler_cycle_duration_seconds",
			Help:    "Duration of a scheduler's selection-and-enqueue cycle",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"pipeline"},
	)

	// ItemsProcessedTotal counts items a worker finished, by pipeline and result.
	ItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_items_processed_total",
			Help: "Total number of items processed by a pipeline, by result",
		},
		[]string{"pipeline", "result"}, // result: done, error, skipped
	)

	// RecoverySweepResetTotal counts stuck items a recovery sweep reset
	// back to a retryable status.
	RecoverySweepResetTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_recovery_sweep_reset_total",
			Help: "Total number of stuck ids a recovery sweep reset",
		},
		[]string{"pipeline"},
	)

	// CreditWithdrawalsTotal counts credit gate withdrawals by outcome.
	CreditWithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_withdrawals_total",
			Help: "Total number of credit withdrawal attempts, by outcome",
		},
		[]string{"result"}, // result: success, insufficient_balance
	)

	// ContentFetchAttemptsTotal counts content fetch attempts by result
	ContentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_fetch_attempts_total",
			Help: "Total number of content fetch attempts",
		},
		[]string{"result"}, // result: success, failure, skipped
	)

	// ContentFetchDuration measures time to fetch an item's web body
	ContentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_duration_seconds",
			Help:    "Time taken to fetch an item's web body",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// ContentFetchSize measures fetched content size in bytes
	ContentFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "content_fetch_size_bytes",
			Help: "Fetched content size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600, 819200,
				1638400, 3276800, 6553600, 10485760, // up to 10MB
			},
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
