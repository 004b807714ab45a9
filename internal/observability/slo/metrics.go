// Package slo tracks service level objectives for the background
// pipeline core: scheduler-cycle latency and per-pipeline item error
// rate (spec.md §6's observability needs). This core exposes no REST
// surface, so these SLOs are cycle/queue-shaped rather than
// request/5xx-shaped.
package slo

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets. Exceeding these doesn't fail anything by itself; they're
// the thresholds an alert would key off in front of CycleLatencySeconds /
// ItemErrorRate.
const (
	// CycleLatencyP95SLOSeconds is the target p95 scheduler-cycle duration.
	CycleLatencyP95SLOSeconds = 5.0

	// CycleLatencyP99SLOSeconds is the target p99 scheduler-cycle duration.
	CycleLatencyP99SLOSeconds = 15.0

	// ItemErrorRateSLO is the maximum acceptable share of processed items
	// that end in ERROR rather than DONE, per pipeline.
	ItemErrorRateSLO = 0.05
)

var (
	// CycleLatencySeconds holds each pipeline's most recent scheduler
	// cycle duration, compared against CycleLatencyP95/P99SLOSeconds.
	CycleLatencySeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_slo_cycle_latency_seconds",
			Help: "Most recent scheduler cycle duration per pipeline (fetch/enrich/brief).",
		},
		[]string{"pipeline"},
	)

	// ItemErrorRate holds each pipeline's running share of processed
	// items that ended in ERROR, target <= ItemErrorRateSLO.
	ItemErrorRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_slo_item_error_rate",
			Help: "Running share of processed items ending in ERROR, per pipeline.",
		},
		[]string{"pipeline"},
	)
)

// RecordCycleLatency records a scheduler's most recent cycle duration.
func RecordCycleLatency(pipeline string, seconds float64) {
	CycleLatencySeconds.WithLabelValues(pipeline).Set(seconds)
}

type counters struct {
	total atomic.Int64
	errs  atomic.Int64
}

var pipelineCounters = map[string]*counters{
	"fetch":  {},
	"enrich": {},
	"brief":  {},
}

// RecordItemResult folds a single processed item's outcome into its
// pipeline's running item error rate. pipeline must be one of
// "fetch"/"enrich"/"brief"; any other value is a no-op.
func RecordItemResult(pipeline string, success bool) {
	c, ok := pipelineCounters[pipeline]
	if !ok {
		return
	}
	c.total.Add(1)
	if !success {
		c.errs.Add(1)
	}
	total := c.total.Load()
	if total == 0 {
		return
	}
	ItemErrorRate.WithLabelValues(pipeline).Set(float64(c.errs.Load()) / float64(total))
}
