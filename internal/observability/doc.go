// Package observability provides production-grade observability infrastructure
// including structured logging and Prometheus metrics. It has no
// distributed-tracing integration.
//
// This package centralizes observability concerns to enable:
//   - Request-ID propagation into log records
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - Performance profiling and debugging
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//
// Example usage:
//
//	import (
//	    "briefingcore/internal/observability/logging"
//	    "briefingcore/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started")
//
//	    metrics.RecordQueueDepth("fetch", 0)
//	}
package observability
