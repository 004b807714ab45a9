package brief

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/observability/metrics"
	"briefingcore/internal/observability/slo"
	"briefingcore/internal/repository"
	"briefingcore/internal/usecase/mailer"
)

// TakeQueue is the subset of *queue.Queue[string] a worker pool needs.
type TakeQueue interface {
	Take(ctx context.Context) (string, bool)
}

// WorkerPool runs workerCount concurrent brief-worker loops (spec.md §4.3).
type WorkerPool struct {
	store          repository.Store
	queue          TakeQueue
	mailer         mailer.ReportMailer
	maxReportItems int
	logger         *slog.Logger
	busy           atomic.Int64
}

// NewWorkerPool builds a brief WorkerPool. mailer may be nil: email
// delivery is checked per-briefing (EmailDeliveryEnabled) and per-wiring
// (spec.md §9's "conditional component presence by config").
func NewWorkerPool(store repository.Store, q TakeQueue, m mailer.ReportMailer, maxReportItems int, logger *slog.Logger) *WorkerPool {
	return &WorkerPool{store: store, queue: q, mailer: m, maxReportItems: maxReportItems, logger: logger}
}

// Run starts workerCount loops and blocks until ctx is canceled and every
// loop has returned from its current item.
func (p *WorkerPool) Run(ctx context.Context, workerCount int) {
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.loop(ctx)
		}()
	}
	wg.Wait()
}

func (p *WorkerPool) loop(ctx context.Context) {
	for {
		id, ok := p.queue.Take(ctx)
		if !ok {
			return
		}
		p.busy.Add(1)
		p.processOne(ctx, id)
		p.busy.Add(-1)
		metrics.RecordWorkerBusy("brief", int(p.busy.Load()))
	}
}

func (p *WorkerPool) processOne(ctx context.Context, briefingID string) {
	briefing, err := p.store.Briefings().Get(ctx, briefingID)
	if err != nil {
		p.logger.ErrorContext(ctx, "brief worker: loading briefing failed", slog.String("briefing_id", briefingID), slog.Any("error", err))
		return
	}
	if briefing.Status != entity.BriefingStatusQueued {
		p.logger.InfoContext(ctx, "brief worker: briefing not queued, dropping", slog.String("briefing_id", briefingID))
		metrics.RecordItemProcessed("brief", "skipped")
		return
	}

	ok, err := p.store.Briefings().CASStatus(ctx, briefingID, entity.BriefingStatusQueued, entity.BriefingStatusProcessing)
	if err != nil {
		p.logger.ErrorContext(ctx, "brief worker: CAS to PROCESSING failed", slog.String("briefing_id", briefingID), slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	now := time.Now()
	since, err := SinceWindow(briefing, now)
	if err != nil {
		p.fail(ctx, briefing, fmt.Errorf("computing since window: %w", err))
		return
	}

	items, err := p.store.Items().TopScoredSince(ctx, briefingID, since, p.maxReportItems)
	if err != nil {
		p.fail(ctx, briefing, fmt.Errorf("loading top scored items: %w", err))
		return
	}

	if len(items) == 0 {
		// No scored items since the window: the report-size invariant
		// (1..N) forbids an empty Report, so skip materializing one.
		// lastExecutedAt is intentionally left untouched so the next
		// cycle reconsiders the same window rather than silently
		// advancing past unscored content (O2).
		p.logger.InfoContext(ctx, "brief worker: no scored items, skipping report", slog.String("briefing_id", briefingID))
		if _, err := p.store.Briefings().CASStatus(ctx, briefingID, entity.BriefingStatusProcessing, entity.BriefingStatusActive); err != nil {
			p.logger.ErrorContext(ctx, "brief worker: reverting to ACTIVE after empty window failed",
				slog.String("briefing_id", briefingID), slog.Any("error", err))
		}
		metrics.RecordItemProcessed("brief", "skipped")
		return
	}

	report := &entity.Report{
		BriefingID:  briefingID,
		GeneratedAt: now,
		Items:       make([]entity.ReportItem, len(items)),
	}
	for i, it := range items {
		score := 0
		if it.Score != nil {
			score = *it.Score
		}
		report.Items[i] = entity.ReportItem{ItemID: it.ID, Score: score, Position: i + 1}
	}
	if err := report.Validate(p.maxReportItems); err != nil {
		p.fail(ctx, briefing, fmt.Errorf("validating report: %w", err))
		return
	}

	txErr := p.store.WithTx(ctx, func(txCtx context.Context) error {
		if err := p.store.Reports().Create(txCtx, report); err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		return p.store.Briefings().CompleteRun(txCtx, briefingID, now)
	})
	if txErr != nil {
		p.fail(ctx, briefing, txErr)
		return
	}

	metrics.RecordItemProcessed("brief", "done")
	slo.RecordItemResult("brief", true)

	if briefing.EmailDeliveryEnabled && p.mailer != nil {
		if err := p.mailer.Deliver(ctx, briefing, report); err != nil {
			p.logger.WarnContext(ctx, "brief worker: report delivery failed", slog.String("briefing_id", briefingID), slog.Any("error", err))
		}
	}
}

func (p *WorkerPool) fail(ctx context.Context, briefing *entity.Briefing, cause error) {
	p.logger.ErrorContext(ctx, "brief worker: run failed", slog.String("briefing_id", briefing.ID), slog.Any("error", cause))
	if err := p.store.Briefings().MarkError(ctx, briefing.ID, cause.Error()); err != nil {
		p.logger.ErrorContext(ctx, "brief worker: marking briefing error failed", slog.String("briefing_id", briefing.ID), slog.Any("error", err))
	}
	metrics.RecordItemProcessed("brief", "error")
	slo.RecordItemResult("brief", false)
}
