package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/infra/fetcher"
	"briefingcore/internal/pipeline/pipelinetest"
)

// stubFetcher returns a fixed result or error, regardless of source/cc.
type stubFetcher struct {
	result fetcher.FetchResult
	err    error
}

func (f *stubFetcher) Validate(_ context.Context, _ string) (fetcher.ValidateResult, error) {
	return fetcher.ValidateResult{OK: true}, nil
}

func (f *stubFetcher) Fetch(_ context.Context, _ *entity.Source, _ entity.CallContext) (fetcher.FetchResult, error) {
	return f.result, f.err
}

func newQueuedSource(store *pipelinetest.Store, id, briefingID string, firstFetch bool) *entity.Source {
	src := &entity.Source{
		ID:           id,
		BriefingID:   briefingID,
		Type:         entity.SourceTypeRSS,
		URL:          "https://example.com/feed.xml",
		Status:       entity.SourceStatusActive,
		FetchStatus:  entity.FetchStatusQueued,
		UpdatedAt:    time.Now(),
	}
	if !firstFetch {
		t := time.Now().Add(-time.Hour)
		src.LastFetchedAt = &t
	}
	store.PutSource(src)
	return src
}

func TestWorker_ProcessOne_InsertsItemsAndMarksIdle(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutBriefing(&entity.Briefing{ID: "b1", UserID: "u1", Status: entity.BriefingStatusActive})
	newQueuedSource(store, "s1", "b1", false)

	registry := fetcher.NewRegistry()
	registry.Register(entity.SourceTypeRSS, &stubFetcher{result: fetcher.FetchResult{
		Items: []fetcher.FetchedItem{{GUID: "g1", Title: "Item One", Link: "https://example.com/1"}},
		ETag:  "etag-1",
	}})

	pool := NewWorkerPool(store, nil, registry, testLogger())
	pool.processOne(context.Background(), "s1")

	got, err := store.Sources().Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FetchStatus != entity.FetchStatusIdle || got.Status != entity.SourceStatusActive {
		t.Errorf("expected source IDLE/ACTIVE, got %s/%s", got.FetchStatus, got.Status)
	}
	if got.ETag != "etag-1" {
		t.Errorf("expected ETag to be persisted, got %q", got.ETag)
	}

	exists, err := store.Items().ExistsBySourceAndGUID(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("ExistsBySourceAndGUID: %v", err)
	}
	if !exists {
		t.Error("expected fetched item to be inserted")
	}
}

func TestWorker_ProcessOne_FirstFetchItemsStartDone(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutBriefing(&entity.Briefing{ID: "b1", UserID: "u1", Status: entity.BriefingStatusActive})
	newQueuedSource(store, "s1", "b1", true)

	registry := fetcher.NewRegistry()
	registry.Register(entity.SourceTypeRSS, &stubFetcher{result: fetcher.FetchResult{
		Items: []fetcher.FetchedItem{{GUID: "g1", Title: "Item One"}},
	}})

	pool := NewWorkerPool(store, nil, registry, testLogger())
	pool.processOne(context.Background(), "s1")

	item, err := store.Items().Get(context.Background(), "s1:g1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.Status != entity.ItemStatusDone {
		t.Errorf("expected first-fetch item to start DONE, got %s", item.Status)
	}
	if item.Score != nil {
		t.Error("expected first-fetch item to have nil score")
	}
}

func TestWorker_ProcessOne_FetchFailureMarksSourceError(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutBriefing(&entity.Briefing{ID: "b1", UserID: "u1", Status: entity.BriefingStatusActive})
	newQueuedSource(store, "s1", "b1", false)

	registry := fetcher.NewRegistry()
	registry.Register(entity.SourceTypeRSS, &stubFetcher{err: errors.New("boom")})

	pool := NewWorkerPool(store, nil, registry, testLogger())
	pool.processOne(context.Background(), "s1")

	got, err := store.Sources().Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != entity.SourceStatusError {
		t.Errorf("expected source Status=ERROR, got %s", got.Status)
	}
	if got.FetchStatus != entity.FetchStatusIdle {
		t.Errorf("expected FetchStatus reverted to IDLE, got %s", got.FetchStatus)
	}
}

func TestWorker_ProcessOne_NoFetcherRegisteredFails(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutBriefing(&entity.Briefing{ID: "b1", UserID: "u1", Status: entity.BriefingStatusActive})
	newQueuedSource(store, "s1", "b1", false)

	pool := NewWorkerPool(store, nil, fetcher.NewRegistry(), testLogger())
	pool.processOne(context.Background(), "s1")

	got, _ := store.Sources().Get(context.Background(), "s1")
	if got.Status != entity.SourceStatusError {
		t.Errorf("expected source Status=ERROR when no fetcher is registered, got %s", got.Status)
	}
}

func TestWorker_ProcessOne_DropsSourceNotQueued(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutBriefing(&entity.Briefing{ID: "b1", UserID: "u1", Status: entity.BriefingStatusActive})
	src := newQueuedSource(store, "s1", "b1", false)
	src.FetchStatus = entity.FetchStatusIdle
	store.PutSource(src)

	pool := NewWorkerPool(store, nil, fetcher.NewRegistry(), testLogger())
	pool.processOne(context.Background(), "s1")

	got, _ := store.Sources().Get(context.Background(), "s1")
	if got.FetchStatus != entity.FetchStatusIdle {
		t.Errorf("expected source untouched, got %s", got.FetchStatus)
	}
}
