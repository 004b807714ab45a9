package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/infra/enricher"
	"briefingcore/internal/observability/metrics"
	"briefingcore/internal/observability/slo"
	"briefingcore/internal/repository"
	"briefingcore/internal/usecase/credit"
	"briefingcore/internal/usecase/searchsync"
)

// TakeQueue is the subset of *queue.Queue[string] a worker pool needs.
type TakeQueue interface {
	Take(ctx context.Context) (string, bool)
}

// WebBodyFetcher is the narrow interface the enrich worker needs from
// internal/infra/webbody.Fetcher, so tests can fake it.
type WebBodyFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// WorkerPool runs workerCount concurrent enrich-worker loops (spec.md §4.2).
type WorkerPool struct {
	store               repository.Store
	queue               TakeQueue
	provider            enricher.Provider
	webBody             WebBodyFetcher
	credits             *credit.Gate
	search              searchsync.SearchSync
	contentLenThreshold int
	logger              *slog.Logger
	busy                atomic.Int64
}

// NewWorkerPool builds an enrich WorkerPool. search may be nil (spec.md
// §9's "conditional component presence by config").
func NewWorkerPool(store repository.Store, q TakeQueue, provider enricher.Provider, webBody WebBodyFetcher, credits *credit.Gate, search searchsync.SearchSync, contentLenThreshold int, logger *slog.Logger) *WorkerPool {
	return &WorkerPool{
		store:               store,
		queue:               q,
		provider:            provider,
		webBody:             webBody,
		credits:             credits,
		search:              search,
		contentLenThreshold: contentLenThreshold,
		logger:              logger,
	}
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
		metrics.RecordWorkerBusy("enrich", int(p.busy.Load()))
	}
}

func (p *WorkerPool) processOne(ctx context.Context, itemID string) {
	item, err := p.store.Items().Get(ctx, itemID)
	if err != nil {
		p.logger.ErrorContext(ctx, "enrich worker: loading item failed", slog.String("item_id", itemID), slog.Any("error", err))
		return
	}
	if item.Status != entity.ItemStatusPending {
		p.logger.InfoContext(ctx, "enrich worker: item not pending, dropping", slog.String("item_id", itemID))
		metrics.RecordItemProcessed("enrich", "skipped")
		return
	}

	ok, err := p.store.Items().CASStatus(ctx, itemID, entity.ItemStatusPending, entity.ItemStatusProcessing)
	if err != nil {
		p.logger.ErrorContext(ctx, "enrich worker: CAS to PROCESSING failed", slog.String("item_id", itemID), slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	source, err := p.store.Sources().Get(ctx, item.SourceID)
	if err != nil {
		p.fail(ctx, itemID, fmt.Errorf("loading owning source: %w", err))
		return
	}
	briefing, err := p.store.Briefings().Get(ctx, source.BriefingID)
	if err != nil {
		p.fail(ctx, itemID, fmt.Errorf("loading owning briefing: %w", err))
		return
	}
	cc := entity.NewCallContext(briefing.UserID)

	effectiveContent := item.EffectiveContent()
	var webContent string
	if p.webBody != nil && isHTTPLink(item.Link) && len(effectiveContent) < p.contentLenThreshold {
		if wc, err := p.webBody.Fetch(ctx, item.Link); err != nil {
			p.logger.WarnContext(ctx, "enrich worker: web body fetch failed, proceeding without it",
				slog.String("item_id", itemID), slog.Any("error", err))
		} else {
			webContent = wc
		}
	}

	result, _, err := p.provider.EnrichAndScore(ctx, cc, item.Title, effectiveContent, webContent, briefing.BriefingCriteria)
	if err != nil {
		p.fail(ctx, itemID, fmt.Errorf("enrichAndScore: %w", err))
		return
	}

	enrichRes := repository.EnrichmentResult{
		Summary: result.Summary,
		Tags: &entity.Tags{
			Topics:       result.Topics,
			People:       result.Entities.People,
			Companies:    result.Entities.Companies,
			Technologies: result.Entities.Technologies,
			Sentiment:    entity.Sentiment(result.Sentiment),
		},
		Score:          result.Score,
		ScoreReasoning: result.ScoreReasoning,
		WebContent:     webContent,
	}

	txErr := p.store.WithTx(ctx, func(txCtx context.Context) error {
		withdrawn, err := p.credits.Withdraw(txCtx, briefing.UserID, 1)
		if err != nil {
			return fmt.Errorf("withdrawing credit: %w", err)
		}
		if !withdrawn {
			return entity.ErrInsufficientCredits
		}
		return p.store.Items().ApplyEnrichmentDone(txCtx, itemID, enrichRes)
	})
	metrics.RecordCreditWithdrawal(txErr == nil)
	if txErr != nil {
		p.fail(ctx, itemID, txErr)
		return
	}
	metrics.RecordItemProcessed("enrich", "done")
	slo.RecordItemResult("enrich", true)

	if p.search != nil {
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := p.search.Index(bgCtx, itemID); err != nil {
				p.logger.WarnContext(bgCtx, "enrich worker: search sync index failed", slog.String("item_id", itemID), slog.Any("error", err))
			}
		}()
	}
}

func (p *WorkerPool) fail(ctx context.Context, itemID string, cause error) {
	msg := entity.TruncateErrorMessage(cause.Error(), entity.MaxErrorMessageLen())
	p.logger.ErrorContext(ctx, "enrich worker: enrichment failed", slog.String("item_id", itemID), slog.Any("error", cause))
	if err := p.store.Items().MarkError(ctx, itemID, msg); err != nil {
		p.logger.ErrorContext(ctx, "enrich worker: marking item error failed", slog.String("item_id", itemID), slog.Any("error", err))
	}
	metrics.RecordItemProcessed("enrich", "error")
	slo.RecordItemResult("enrich", false)
}

func isHTTPLink(link string) bool {
	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}
