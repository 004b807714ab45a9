// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Pipeline metrics (queue depth/capacity, worker busy count, scheduler
//     cycle duration, items processed, recovery-sweep resets)
//   - Credit gate withdrawal outcomes
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "briefingcore/internal/observability/metrics"
//
//	func runFetchCycle() {
//	    start := time.Now()
//	    // ... select and enqueue eligible sources ...
//	    metrics.RecordSchedulerCycle("fetch", time.Since(start))
//	    metrics.RecordQueueDepth("fetch", queue.Len())
//	}
package metrics
