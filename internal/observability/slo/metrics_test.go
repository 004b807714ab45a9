package slo

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func TestSLOConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"CycleLatencyP95SLOSeconds", CycleLatencyP95SLOSeconds, 5.0},
		{"CycleLatencyP99SLOSeconds", CycleLatencyP99SLOSeconds, 15.0},
		{"ItemErrorRateSLO", ItemErrorRateSLO, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.value, tt.expected)
			}
		})
	}
}

func TestRecordCycleLatency(t *testing.T) {
	RecordCycleLatency("fetch", 1.25)

	metric := &io_prometheus_client.Metric{}
	if err := CycleLatencySeconds.WithLabelValues("fetch").Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if got := metric.GetGauge().GetValue(); got != 1.25 {
		t.Errorf("CycleLatencySeconds[fetch] = %v, want 1.25", got)
	}
}

func TestRecordItemResult_TracksRunningErrorRate(t *testing.T) {
	pipelineCounters["enrich"] = &counters{}

	RecordItemResult("enrich", true)
	RecordItemResult("enrich", true)
	RecordItemResult("enrich", false)

	metric := &io_prometheus_client.Metric{}
	if err := ItemErrorRate.WithLabelValues("enrich").Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	got := metric.GetGauge().GetValue()
	want := 1.0 / 3.0
	if got != want {
		t.Errorf("ItemErrorRate[enrich] = %v, want %v", got, want)
	}
}

func TestRecordItemResult_UnknownPipelineIsNoop(t *testing.T) {
	RecordItemResult("unknown-pipeline", false)
	// No panic and no registered series: nothing further to assert.
}

func TestMetricsAreRegistered(t *testing.T) {
	metrics := []prometheus.Collector{
		CycleLatencySeconds,
		ItemErrorRate,
	}

	for _, metric := range metrics {
		desc := make(chan *prometheus.Desc, 1)
		metric.Describe(desc)
		select {
		case d := <-desc:
			if d == nil {
				t.Error("metric descriptor is nil")
			}
		default:
			t.Error("no descriptor received")
		}
	}
}
