// Package brief implements the brief pipeline's scheduler and worker pool
// (spec.md §4.3): the scheduler selects ACTIVE briefings whose local
// scheduled time has passed today and CASes them into QUEUED; workers
// materialize a Report of the top-scored items since the briefing's last
// run.
package brief

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

// Scheduler runs the brief-pipeline selection cycle on a fixed interval.
type Scheduler struct {
	store  repository.Store
	queue  OfferQueue
	logger *slog.Logger

	// OnTick, if set, is invoked at the start of every cycle; wired to the
	// health server's ReportTick by main.go.
	OnTick func()
}

// NewScheduler builds a brief Scheduler.
func NewScheduler(store repository.Store, q OfferQueue, logger *slog.Logger) *Scheduler {
	return &Scheduler{store: store, queue: q, logger: logger}
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
		metrics.RecordSchedulerCycle("brief", d)
		slo.RecordCycleLatency("brief", d.Seconds())
	}()

	metrics.RecordQueueCapacity("brief", s.queue.Capacity())
	defer func() { metrics.RecordQueueDepth("brief", s.queue.Capacity()-s.queue.FreeCapacity()) }()

	if s.queue.FreeCapacity() == 0 {
		s.logger.InfoContext(ctx, "brief scheduler skipping cycle: queue full")
		return
	}

	userIDs, err := s.store.Credits().UsersWithBalance(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "brief scheduler: listing users with balance failed", slog.Any("error", err))
		return
	}

	briefings, err := s.store.Briefings().ListActive(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "brief scheduler: listing active briefings failed", slog.Any("error", err))
		return
	}

	now := time.Now()
	for _, b := range briefings {
		if !userIDs[b.UserID] {
			continue
		}

		due, err := DueToday(b, now)
		if err != nil {
			s.logger.WarnContext(ctx, "brief scheduler: due-today check failed", slog.String("briefing_id", b.ID), slog.Any("error", err))
			continue
		}
		if !due {
			continue
		}

		ok, err := s.store.Briefings().CASStatus(ctx, b.ID, entity.BriefingStatusActive, entity.BriefingStatusQueued)
		if err != nil {
			s.logger.ErrorContext(ctx, "brief scheduler: CAS failed", slog.String("briefing_id", b.ID), slog.Any("error", err))
			continue
		}
		if !ok {
			continue
		}

		if !s.queue.Offer(b.ID) {
			if _, revertErr := s.store.Briefings().CASStatus(ctx, b.ID, entity.BriefingStatusQueued, entity.BriefingStatusActive); revertErr != nil {
				s.logger.ErrorContext(ctx, "brief scheduler: reverting CAS after failed offer failed",
					slog.String("briefing_id", b.ID), slog.Any("error", revertErr))
			}
			s.logger.WarnContext(ctx, "brief scheduler: queue full mid-cycle, stopping")
			return
		}
	}
}
