package enricher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusUsageRecorder implements UsageRecorder by exporting Prometheus
// counters/histograms and a structured log line per call. Token-usage rows
// are a logging/metrics concern, not part of the CreditLedger invariants
// (P2) the store enforces, so this recorder has no persistence dependency.
type PrometheusUsageRecorder struct {
	tokensTotal  *prometheus.CounterVec
	callsTotal   *prometheus.CounterVec
	durationSecs *prometheus.HistogramVec
}

var (
	usageMetricsOnce sync.Once
	usageMetrics     *PrometheusUsageRecorder
)

// NewPrometheusUsageRecorder builds a recorder, registering its Prometheus
// collectors once per process.
func NewPrometheusUsageRecorder() *PrometheusUsageRecorder {
	usageMetricsOnce.Do(func() {
		usageMetrics = &PrometheusUsageRecorder{
			tokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "enricher_tokens_total",
				Help: "Total prompt+completion tokens consumed by the enricher, by feature and model.",
			}, []string{"feature", "model"}),
			callsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "enricher_calls_total",
				Help: "Total enricher provider calls, by feature and outcome.",
			}, []string{"feature", "outcome"}),
			durationSecs: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "enricher_call_duration_seconds",
				Help:    "Provider call duration in seconds, by feature.",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
			}, []string{"feature"}),
		}
	})
	return usageMetrics
}

// RecordUsage implements UsageRecorder.
func (r *PrometheusUsageRecorder) RecordUsage(ctx context.Context, userID, feature, model string, promptTokens, completionTokens, totalTokens int, success bool, errorMessage string, durationMs int64) {
	r.tokensTotal.WithLabelValues(feature, model).Add(float64(totalTokens))
	outcome := "success"
	if !success {
		outcome = "error"
	}
	r.callsTotal.WithLabelValues(feature, outcome).Inc()
	r.durationSecs.WithLabelValues(feature).Observe(time.Duration(durationMs*int64(time.Millisecond)).Seconds())

	attrs := []any{
		slog.String("user_id", userID),
		slog.String("feature", feature),
		slog.String("model", model),
		slog.Int("prompt_tokens", promptTokens),
		slog.Int("completion_tokens", completionTokens),
		slog.Int("total_tokens", totalTokens),
		slog.Int64("duration_ms", durationMs),
	}
	if success {
		slog.Info("enricher call completed", attrs...)
	} else {
		attrs = append(attrs, slog.String("error", errorMessage))
		slog.Warn("enricher call failed", attrs...)
	}
}
