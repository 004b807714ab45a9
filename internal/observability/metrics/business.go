package metrics

import "time"

// RecordQueueDepth records how many ids currently sit in a pipeline's queue.
func RecordQueueDepth(pipeline string, depth int) {
	PipelineQueueDepth.WithLabelValues(pipeline).Set(float64(depth))
}

// RecordQueueCapacity records the configured bound of a pipeline's queue.
func RecordQueueCapacity(pipeline string, capacity int) {
	PipelineQueueCapacity.WithLabelValues(pipeline).Set(float64(capacity))
}

// RecordWorkerBusy records how many of a pipeline's workers are currently
// processing an item.
func RecordWorkerBusy(pipeline string, busy int) {
	PipelineWorkerBusy.WithLabelValues(pipeline).Set(float64(busy))
}

// RecordSchedulerCycle records the duration of one scheduler tick: selecting
// eligible ids and enqueuing them.
func RecordSchedulerCycle(pipeline string, duration time.Duration) {
	SchedulerCycleDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}

// RecordItemProcessed records the outcome of a worker finishing one item.
// Result should be "done", "error", or "skipped".
func RecordItemProcessed(pipeline, result string) {
	ItemsProcessedTotal.WithLabelValues(pipeline, result).Inc()
}

// RecordRecoveryReset records the number of stuck ids a recovery sweep reset
// back to a retryable status.
func RecordRecoveryReset(pipeline string, count int) {
	if count <= 0 {
		return
	}
	RecoverySweepResetTotal.WithLabelValues(pipeline).Add(float64(count))
}

// RecordCreditWithdrawal records the outcome of a credit gate withdrawal.
func RecordCreditWithdrawal(success bool) {
	result := "success"
	if !success {
		result = "insufficient_balance"
	}
	CreditWithdrawalsTotal.WithLabelValues(result).Inc()
}

// RecordContentFetchSuccess records a successful web-body fetch operation.
// This tracks both the duration and size of fetched content.
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed web-body fetch operation.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records a skipped web-body fetch operation.
// This occurs when the RSS/API content already meets the length threshold
// and the web-body fetcher is not invoked.
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_sources", "insert_item").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
