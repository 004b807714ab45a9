// Package fetch implements the fetch pipeline's scheduler and worker pool
// (spec.md §4.1): the scheduler selects Sources due for refresh and CASes
// them into QUEUED; workers invoke a type-specific Fetcher and persist new
// Items.
package fetch

import (
	"context"
	"log/slog"
	"time"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/observability/metrics"
	"briefingcore/internal/observability/slo"
	"briefingcore/internal/repository"
)

// Scheduler runs the fetch-pipeline selection cycle on a fixed interval.
type Scheduler struct {
	store     repository.Store
	queue     OfferQueue
	batchSize int
	logger    *slog.Logger

	// OnTick, if set, is invoked at the start of every cycle, live or idle.
	// main.go wires this to the health server's ReportTick so a wedged
	// scheduler (one that stops ticking) shows up as a liveness failure.
	OnTick func()
}

// OfferQueue is the subset of *queue.Queue[string] the scheduler needs,
// kept narrow so tests can fake it without a generic type parameter.
type OfferQueue interface {
	Offer(id string) bool
	FreeCapacity() int
	Capacity() int
}

// NewScheduler builds a fetch Scheduler.
func NewScheduler(store repository.Store, q OfferQueue, batchSize int, logger *slog.Logger) *Scheduler {
	return &Scheduler{store: store, queue: q, batchSize: batchSize, logger: logger}
}

// Run ticks every interval until ctx is canceled, which also stops new
// offers immediately per the shutdown contract in spec.md §5.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if s.OnTick != nil {
		s.OnTick()
	}
	start := time.Now()
	defer func() {
		d := time.Since(start)
		metrics.RecordSchedulerCycle("fetch", d)
		slo.RecordCycleLatency("fetch", d.Seconds())
	}()

	metrics.RecordQueueCapacity("fetch", s.queue.Capacity())
	defer func() { metrics.RecordQueueDepth("fetch", s.queue.Capacity()-s.queue.FreeCapacity()) }()

	free := s.queue.FreeCapacity()
	if free == 0 {
		s.logger.InfoContext(ctx, "fetch scheduler skipping cycle: queue full")
		return
	}

	userIDs, err := s.store.Credits().UsersWithBalance(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "fetch scheduler: listing users with balance failed", slog.Any("error", err))
		return
	}
	ids := make([]string, 0, len(userIDs))
	for id := range userIDs {
		ids = append(ids, id)
	}

	limit := s.batchSize
	if free < limit {
		limit = free
	}
	if limit <= 0 {
		return
	}

	sources, err := s.store.Sources().ListEligibleForFetch(ctx, ids, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "fetch scheduler: listing eligible sources failed", slog.Any("error", err))
		return
	}

	now := time.Now()
	for _, src := range sources {
		ok, err := s.store.Sources().CASFetchStatus(ctx, src.ID, entity.FetchStatusIdle, entity.FetchStatusQueued, &now, nil)
		if err != nil {
			s.logger.ErrorContext(ctx, "fetch scheduler: CAS failed", slog.String("source_id", src.ID), slog.Any("error", err))
			continue
		}
		if !ok {
			continue // lost the race to another actor; skip
		}

		if !s.queue.Offer(src.ID) {
			// Offer lost a capacity race after the precheck: revert the
			// CAS so the source isn't stranded in QUEUED.
			if _, revertErr := s.store.Sources().CASFetchStatus(ctx, src.ID, entity.FetchStatusQueued, entity.FetchStatusIdle, nil, nil); revertErr != nil {
				s.logger.ErrorContext(ctx, "fetch scheduler: reverting CAS after failed offer failed",
					slog.String("source_id", src.ID), slog.Any("error", revertErr))
			}
			s.logger.WarnContext(ctx, "fetch scheduler: queue full mid-cycle, stopping")
			return
		}
	}
}
