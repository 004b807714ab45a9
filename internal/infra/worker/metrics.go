package worker

import (
	"briefingcore/internal/pkg/config"
)

// SchedulerConfigMetrics tracks configuration load/validation/fallback
// metrics for a single pipeline's scheduler. Each of the fetch, enrich,
// and brief pipelines gets its own instance so their config health can be
// graphed independently; cycle duration, queue depth, and items-processed
// metrics live in internal/observability/metrics instead, already labeled
// by pipeline there.
type SchedulerConfigMetrics struct {
	*config.ConfigMetrics
}

// NewSchedulerConfigMetrics creates config-health metrics for the named
// pipeline ("fetch", "enrich", or "brief").
func NewSchedulerConfigMetrics(pipeline string) *SchedulerConfigMetrics {
	return &SchedulerConfigMetrics{
		ConfigMetrics: config.NewConfigMetrics(pipeline + "_scheduler"),
	}
}
