package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordQueueDepth(t *testing.T) {
	for _, pipeline := range []string{"fetch", "enrich", "brief"} {
		t.Run(pipeline, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordQueueDepth(pipeline, 42)
			})
		})
	}
}

func TestRecordQueueCapacity(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordQueueCapacity("fetch", 1000)
	})
}

func TestRecordWorkerBusy(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordWorkerBusy("enrich", 2)
	})
}

func TestRecordSchedulerCycle(t *testing.T) {
	tests := []struct {
		name     string
		pipeline string
		duration time.Duration
	}{
		{"fast cycle", "fetch", 10 * time.Millisecond},
		{"slow cycle", "brief", 5 * time.Second},
		{"zero duration", "enrich", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordSchedulerCycle(tt.pipeline, tt.duration)
			})
		})
	}
}

func TestRecordItemProcessed(t *testing.T) {
	tests := []struct {
		name     string
		pipeline string
		result   string
	}{
		{"fetch done", "fetch", "done"},
		{"enrich error", "enrich", "error"},
		{"brief skipped", "brief", "skipped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordItemProcessed(tt.pipeline, tt.result)
			})
		})
	}
}

func TestRecordRecoveryReset(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordRecoveryReset("fetch", 3)
	})
	assert.NotPanics(t, func() {
		RecordRecoveryReset("fetch", 0)
	})
}

func TestRecordCreditWithdrawal(t *testing.T) {
	tests := []struct {
		name    string
		success bool
	}{
		{"success", true},
		{"insufficient balance", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordCreditWithdrawal(tt.success)
			})
		})
	}
}

func TestRecordContentFetchSuccess(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordContentFetchSuccess(200*time.Millisecond, 4096)
	})
}

func TestRecordContentFetchFailed(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordContentFetchFailed(100 * time.Millisecond)
	})
}

func TestRecordContentFetchSkipped(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordContentFetchSkipped()
	})
}

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		duration  time.Duration
	}{
		{"select query", "select_items", 10 * time.Millisecond},
		{"insert query", "insert_item", 5 * time.Millisecond},
		{"slow query", "complex_join", 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordDBQuery(tt.operation, tt.duration)
			})
		})
	}
}

func TestUpdateDBConnectionStats(t *testing.T) {
	tests := []struct {
		name   string
		active int
		idle   int
	}{
		{"no connections", 0, 0},
		{"some active", 5, 10},
		{"all active", 25, 0},
		{"all idle", 0, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateDBConnectionStats(tt.active, tt.idle)
			})
		})
	}
}

func TestMetricsFunctions_AllCallable(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordQueueDepth("fetch", 5)
		RecordQueueCapacity("fetch", 1000)
		RecordWorkerBusy("fetch", 1)
		RecordSchedulerCycle("fetch", time.Second)
		RecordItemProcessed("fetch", "done")
		RecordRecoveryReset("fetch", 1)
		RecordCreditWithdrawal(true)
		RecordContentFetchSuccess(time.Second, 1024)
		RecordContentFetchFailed(time.Second)
		RecordContentFetchSkipped()
		RecordDBQuery("select_items", 10*time.Millisecond)
		UpdateDBConnectionStats(5, 10)
	})
}
