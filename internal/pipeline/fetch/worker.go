package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/infra/fetcher"
	"briefingcore/internal/observability/metrics"
	"briefingcore/internal/observability/slo"
	"briefingcore/internal/repository"
)

// persistItemsParallelism bounds concurrent dedup-check+insert calls
// within a single source's persistItems batch, mirroring the teacher's
// per-item errgroup fan-out for I/O-bound per-item work.
const persistItemsParallelism = 5

// TakeQueue is the subset of *queue.Queue[string] a worker pool needs.
type TakeQueue interface {
	Take(ctx context.Context) (string, bool)
}

// WorkerPool runs workerCount concurrent fetch-worker loops over a shared
// queue (spec.md §4.1).
type WorkerPool struct {
	store    repository.Store
	queue    TakeQueue
	registry *fetcher.Registry
	logger   *slog.Logger
	busy     atomic.Int64
}

// NewWorkerPool builds a fetch WorkerPool.
func NewWorkerPool(store repository.Store, q TakeQueue, registry *fetcher.Registry, logger *slog.Logger) *WorkerPool {
	return &WorkerPool{store: store, queue: q, registry: registry, logger: logger}
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
			return // ctx canceled
		}
		p.busy.Add(1)
		p.processOne(ctx, id)
		p.busy.Add(-1)
		metrics.RecordWorkerBusy("fetch", int(p.busy.Load()))
	}
}

func (p *WorkerPool) processOne(ctx context.Context, sourceID string) {
	source, err := p.store.Sources().Get(ctx, sourceID)
	if err != nil {
		p.logger.ErrorContext(ctx, "fetch worker: loading source failed", slog.String("source_id", sourceID), slog.Any("error", err))
		return
	}
	if source.FetchStatus != entity.FetchStatusQueued {
		p.logger.InfoContext(ctx, "fetch worker: source not queued, dropping", slog.String("source_id", sourceID))
		metrics.RecordItemProcessed("fetch", "skipped")
		return
	}

	fetchStartedAt := time.Now()
	ok, err := p.store.Sources().CASFetchStatus(ctx, sourceID, entity.FetchStatusQueued, entity.FetchStatusFetching, nil, &fetchStartedAt)
	if err != nil {
		p.logger.ErrorContext(ctx, "fetch worker: CAS to FETCHING failed", slog.String("source_id", sourceID), slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	wasFirstFetch := source.LastFetchedAt == nil

	impl, found := p.registry.Resolve(source.Type)
	if !found {
		p.fail(ctx, source, fmt.Errorf("no fetcher registered for source type %q", source.Type))
		return
	}

	cc, err := p.callContextFor(ctx, source)
	if err != nil {
		p.fail(ctx, source, err)
		return
	}

	result, err := impl.Fetch(ctx, source, cc)
	if err != nil {
		p.fail(ctx, source, err)
		return
	}

	if err := p.persistItems(ctx, source, result.Items, wasFirstFetch); err != nil {
		p.logger.ErrorContext(ctx, "fetch worker: persisting items failed", slog.String("source_id", sourceID), slog.Any("error", err))
		// Items are logged but don't fail the batch (spec.md §4.1); the
		// source still completes successfully below.
	}

	now := time.Now()
	upd := repository.SourceFetchUpdate{
		FetchStatus:   entity.FetchStatusIdle,
		Status:        entity.SourceStatusActive,
		LastFetchedAt: &now,
		ETag:          result.ETag,
		LastModified:  result.LastModified,
		ErrorMessage:  "",
	}
	if err := p.store.Sources().ApplyFetchResult(ctx, sourceID, upd); err != nil {
		p.logger.ErrorContext(ctx, "fetch worker: applying fetch result failed", slog.String("source_id", sourceID), slog.Any("error", err))
	}
	metrics.RecordItemProcessed("fetch", "done")
	slo.RecordItemResult("fetch", true)
}

// callContextFor resolves the owning briefing's userId for enricher
// attribution (WEB sources only call the enricher; other fetchers ignore
// cc, but every Fetcher takes one for interface uniformity).
func (p *WorkerPool) callContextFor(ctx context.Context, source *entity.Source) (entity.CallContext, error) {
	briefing, err := p.store.Briefings().Get(ctx, source.BriefingID)
	if err != nil {
		return entity.CallContext{}, fmt.Errorf("loading owning briefing: %w", err)
	}
	return entity.NewCallContext(briefing.UserID), nil
}

// persistItems dedups and inserts fetched items. First-import semantics
// (spec.md §4.1, P8): if the source had never been fetched before this
// run, inserted items start DONE/score=nil rather than entering the
// enrich pipeline.
func (p *WorkerPool) persistItems(ctx context.Context, source *entity.Source, items []fetcher.FetchedItem, wasFirstFetch bool) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(persistItemsParallelism)

	for _, fi := range items {
		fi := fi
		eg.Go(func() error {
			return p.persistOne(egCtx, source, fi, wasFirstFetch)
		})
	}
	return eg.Wait()
}

func (p *WorkerPool) persistOne(ctx context.Context, source *entity.Source, fi fetcher.FetchedItem, wasFirstFetch bool) error {
	exists, err := p.store.Items().ExistsBySourceAndGUID(ctx, source.ID, fi.GUID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	item := &entity.Item{
		SourceID:     source.ID,
		GUID:         fi.GUID,
		Title:        fi.Title,
		Link:         fi.Link,
		Author:       fi.Author,
		PublishedAt:  fi.PublishedAt,
		RawContent:   fi.RawContent,
		CleanContent: fi.CleanContent,
		Status:       entity.ItemStatusNew,
	}
	if wasFirstFetch {
		item.Status = entity.ItemStatusDone
		item.Score = nil
	}

	if err := p.store.Items().Create(ctx, item); err != nil {
		p.logger.ErrorContext(ctx, "fetch worker: inserting item failed",
			slog.String("source_id", source.ID), slog.String("guid", fi.GUID), slog.Any("error", err))
		return err
	}
	return nil
}

func (p *WorkerPool) fail(ctx context.Context, source *entity.Source, cause error) {
	msg := entity.TruncateErrorMessage(cause.Error(), entity.MaxErrorMessageLen())
	p.logger.ErrorContext(ctx, "fetch worker: fetch failed", slog.String("source_id", source.ID), slog.Any("error", cause))
	upd := repository.SourceFetchUpdate{
		FetchStatus:  entity.FetchStatusIdle,
		Status:       entity.SourceStatusError,
		ErrorMessage: msg,
	}
	if err := p.store.Sources().ApplyFetchResult(ctx, source.ID, upd); err != nil {
		p.logger.ErrorContext(ctx, "fetch worker: applying failure result failed", slog.String("source_id", source.ID), slog.Any("error", err))
	}
	metrics.RecordItemProcessed("fetch", "error")
	slo.RecordItemResult("fetch", false)
}
