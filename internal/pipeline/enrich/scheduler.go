// Package enrich implements the enrich pipeline's scheduler and worker
// pool (spec.md §4.2): the scheduler selects NEW items owned by users with
// credit balance and CASes them into PENDING; workers invoke the enricher,
// write the result, and withdraw one credit in the same transaction.
package enrich

import (
	"context"
	"log/slog"
	"time"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/observability/metrics"
	"briefingcore/internal/observability/slo"
	"briefingcore/internal/repository"
)

// OfferQueue is the subset of *queue.Queue[string] the scheduler needs.
type OfferQueue interface {
	Offer(id string) bool
	FreeCapacity() int
	Capacity() int
}

// Scheduler runs the enrich-pipeline selection cycle on a fixed interval.
type Scheduler struct {
	store     repository.Store
	queue     OfferQueue
	batchSize int
	logger    *slog.Logger

	// OnTick, if set, is invoked at the start of every cycle; wired to the
	// health server's ReportTick by main.go.
	OnTick func()
}

// NewScheduler builds an enrich Scheduler.
func NewScheduler(store repository.Store, q OfferQueue, batchSize int, logger *slog.Logger) *Scheduler {
	return &Scheduler{store: store, queue: q, batchSize: batchSize, logger: logger}
}

// Run ticks every interval until ctx is canceled.
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
		metrics.RecordSchedulerCycle("enrich", d)
		slo.RecordCycleLatency("enrich", d.Seconds())
	}()

	metrics.RecordQueueCapacity("enrich", s.queue.Capacity())
	defer func() { metrics.RecordQueueDepth("enrich", s.queue.Capacity()-s.queue.FreeCapacity()) }()

	free := s.queue.FreeCapacity()
	if free == 0 {
		s.logger.InfoContext(ctx, "enrich scheduler skipping cycle: queue full")
		return
	}

	userIDs, err := s.store.Credits().UsersWithBalance(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "enrich scheduler: listing users with balance failed", slog.Any("error", err))
		return
	}

	candidates, err := s.store.Items().ListForEnrich(ctx, 2*s.batchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "enrich scheduler: listing items for enrich failed", slog.Any("error", err))
		return
	}

	limit := s.batchSize
	if free < limit {
		limit = free
	}

	enqueued := 0
	for _, c := range candidates {
		if enqueued >= limit {
			break
		}
		if !userIDs[c.UserID] {
			continue
		}

		ok, err := s.store.Items().CASStatus(ctx, c.Item.ID, entity.ItemStatusNew, entity.ItemStatusPending)
		if err != nil {
			s.logger.ErrorContext(ctx, "enrich scheduler: CAS failed", slog.String("item_id", c.Item.ID), slog.Any("error", err))
			continue
		}
		if !ok {
			continue
		}

		if !s.queue.Offer(c.Item.ID) {
			if _, revertErr := s.store.Items().CASStatus(ctx, c.Item.ID, entity.ItemStatusPending, entity.ItemStatusNew); revertErr != nil {
				s.logger.ErrorContext(ctx, "enrich scheduler: reverting CAS after failed offer failed",
					slog.String("item_id", c.Item.ID), slog.Any("error", revertErr))
			}
			s.logger.WarnContext(ctx, "enrich scheduler: queue full mid-cycle, stopping")
			return
		}
		enqueued++
	}
}
