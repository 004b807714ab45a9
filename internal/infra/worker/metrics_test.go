package worker

import (
	"testing"
)

func TestNewSchedulerConfigMetrics(t *testing.T) {
	metrics := NewSchedulerConfigMetrics("test_fetch")

	if metrics == nil {
		t.Fatal("NewSchedulerConfigMetrics returned nil")
	}
	if metrics.ConfigMetrics == nil {
		t.Fatal("embedded ConfigMetrics is nil")
	}
}

func TestSchedulerConfigMetrics_RecordLoadTimestamp(t *testing.T) {
	metrics := NewSchedulerConfigMetrics("test_enrich")

	metrics.RecordLoadTimestamp()
	metrics.RecordValidationError("queue_capacity")
	metrics.RecordFallback("queue_capacity", "default")
	metrics.SetFallbackActive("queue_capacity", true)
	metrics.SetFallbackActive("queue_capacity", false)
}

func TestSchedulerConfigMetrics_DistinctPipelines(t *testing.T) {
	fetch := NewSchedulerConfigMetrics("test_distinct_fetch")
	brief := NewSchedulerConfigMetrics("test_distinct_brief")

	fetch.RecordValidationError("worker_count")
	brief.RecordValidationError("worker_count")

	if fetch.ConfigMetrics == brief.ConfigMetrics {
		t.Fatal("expected each pipeline to get its own ConfigMetrics instance")
	}
}
