package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/infra/enricher"
	"briefingcore/internal/pipeline/pipelinetest"
	"briefingcore/internal/usecase/credit"
)

// stubProvider returns a fixed EnrichAndScore result or error; the other
// Provider methods are unused by the enrich worker and panic if called.
type stubProvider struct {
	result enricher.EnrichResult
	err    error
}

func (p *stubProvider) EnrichAndScore(_ context.Context, _ entity.CallContext, _, _, _, _ string) (enricher.EnrichResult, enricher.Usage, error) {
	return p.result, enricher.Usage{}, p.err
}
func (p *stubProvider) ExtractFromWeb(context.Context, entity.CallContext, string, string) ([]enricher.WebExtractItem, enricher.Usage, error) {
	panic("not used by enrich worker tests")
}
func (p *stubProvider) ExtractFromEmail(context.Context, entity.CallContext, string, string) ([]enricher.EmailExtractItem, enricher.Usage, error) {
	panic("not used by enrich worker tests")
}
func (p *stubProvider) GenerateReportEmail(context.Context, entity.CallContext, string, string, []enricher.FormattedReportItem) (enricher.ReportEmail, enricher.Usage, error) {
	panic("not used by enrich worker tests")
}

func seedPendingItem(store *pipelinetest.Store, itemID, sourceID, briefingID, userID string) {
	store.PutBriefing(&entity.Briefing{ID: briefingID, UserID: userID, Status: entity.BriefingStatusActive, BriefingCriteria: "tech news"})
	store.PutSource(&entity.Source{ID: sourceID, BriefingID: briefingID, Type: entity.SourceTypeRSS, Status: entity.SourceStatusActive, FetchStatus: entity.FetchStatusIdle, UpdatedAt: time.Now()})
	store.PutItem(&entity.Item{ID: itemID, SourceID: sourceID, GUID: itemID, Title: "An Item", RawContent: "content", Status: entity.ItemStatusPending, UpdatedAt: time.Now()})
}

func TestWorker_ProcessOne_WithdrawsCreditAndCompletesItem(t *testing.T) {
	store := pipelinetest.NewStore()
	seedPendingItem(store, "i1", "s1", "b1", "u1")
	store.SetBalance("u1", true)

	provider := &stubProvider{result: enricher.EnrichResult{Summary: "summary", Score: 80}}
	pool := NewWorkerPool(store, nil, provider, nil, credit.New(store.Credits()), nil, 500, testLogger())
	pool.processOne(context.Background(), "i1")

	got, err := store.Items().Get(context.Background(), "i1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != entity.ItemStatusDone {
		t.Errorf("expected item DONE, got %s", got.Status)
	}
	if got.Score == nil || *got.Score != 80 {
		t.Errorf("expected score 80, got %v", got.Score)
	}
}

func TestWorker_ProcessOne_InsufficientCreditMarksError(t *testing.T) {
	store := pipelinetest.NewStore()
	seedPendingItem(store, "i1", "s1", "b1", "u1")
	store.SetBalance("u1", false)

	provider := &stubProvider{result: enricher.EnrichResult{Summary: "summary", Score: 80}}
	pool := NewWorkerPool(store, nil, provider, nil, credit.New(store.Credits()), nil, 500, testLogger())
	pool.processOne(context.Background(), "i1")

	got, err := store.Items().Get(context.Background(), "i1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != entity.ItemStatusError {
		t.Errorf("expected item ERROR after insufficient credit, got %s", got.Status)
	}
}

func TestWorker_ProcessOne_EnricherFailureMarksError(t *testing.T) {
	store := pipelinetest.NewStore()
	seedPendingItem(store, "i1", "s1", "b1", "u1")
	store.SetBalance("u1", true)

	provider := &stubProvider{err: errors.New("provider down")}
	pool := NewWorkerPool(store, nil, provider, nil, credit.New(store.Credits()), nil, 500, testLogger())
	pool.processOne(context.Background(), "i1")

	got, err := store.Items().Get(context.Background(), "i1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != entity.ItemStatusError {
		t.Errorf("expected item ERROR after enricher failure, got %s", got.Status)
	}
}

func TestWorker_ProcessOne_DropsItemNotPending(t *testing.T) {
	store := pipelinetest.NewStore()
	seedPendingItem(store, "i1", "s1", "b1", "u1")
	it, _ := store.Items().Get(context.Background(), "i1")
	it.Status = entity.ItemStatusNew
	store.PutItem(it)

	provider := &stubProvider{result: enricher.EnrichResult{Summary: "summary", Score: 80}}
	pool := NewWorkerPool(store, nil, provider, nil, credit.New(store.Credits()), nil, 500, testLogger())
	pool.processOne(context.Background(), "i1")

	got, _ := store.Items().Get(context.Background(), "i1")
	if got.Status != entity.ItemStatusNew {
		t.Errorf("expected item left untouched, got %s", got.Status)
	}
}
