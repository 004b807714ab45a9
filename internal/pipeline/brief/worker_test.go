package brief

import (
	"context"
	"testing"
	"time"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/pipeline/pipelinetest"
)

func seedQueuedBriefing(store *pipelinetest.Store, id, userID string) *entity.Briefing {
	b := &entity.Briefing{
		ID:        id,
		UserID:    userID,
		Status:    entity.BriefingStatusQueued,
		Frequency: entity.FrequencyDaily,
		LocalTime: "09:00",
		Timezone:  "UTC",
	}
	store.PutBriefing(b)
	return b
}

func seedDoneItem(store *pipelinetest.Store, itemID, sourceID, briefingID string, score int) {
	store.PutSource(&entity.Source{ID: sourceID, BriefingID: briefingID, Type: entity.SourceTypeRSS, Status: entity.SourceStatusActive, FetchStatus: entity.FetchStatusIdle, UpdatedAt: time.Now()})
	now := time.Now()
	store.PutItem(&entity.Item{ID: itemID, SourceID: sourceID, GUID: itemID, Status: entity.ItemStatusDone, Score: &score, PublishedAt: &now, UpdatedAt: now})
}

func TestWorker_ProcessOne_GeneratesReportFromTopScoredItems(t *testing.T) {
	store := pipelinetest.NewStore()
	seedQueuedBriefing(store, "br1", "u1")
	seedDoneItem(store, "i1", "s1", "br1", 90)
	seedDoneItem(store, "i2", "s1", "br1", 50)

	pool := NewWorkerPool(store, nil, nil, 10, testLogger())
	pool.processOne(context.Background(), "br1")

	got, err := store.Briefings().Get(context.Background(), "br1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != entity.BriefingStatusActive {
		t.Errorf("expected briefing reverted to ACTIVE, got %s", got.Status)
	}
	if got.LastExecutedAt == nil {
		t.Error("expected LastExecutedAt to be set")
	}

	reports := store.CreatedReports()
	if len(reports) != 1 {
		t.Fatalf("expected exactly 1 report, got %d", len(reports))
	}
	if len(reports[0].Items) != 2 {
		t.Fatalf("expected 2 report items, got %d", len(reports[0].Items))
	}
	if reports[0].Items[0].ItemID != "i1" {
		t.Errorf("expected highest-scored item first, got %s", reports[0].Items[0].ItemID)
	}
}

func TestWorker_ProcessOne_NoScoredItemsRevertsToActiveWithoutReport(t *testing.T) {
	store := pipelinetest.NewStore()
	seedQueuedBriefing(store, "br1", "u1")

	pool := NewWorkerPool(store, nil, nil, 10, testLogger())
	pool.processOne(context.Background(), "br1")

	got, err := store.Briefings().Get(context.Background(), "br1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != entity.BriefingStatusActive {
		t.Errorf("expected briefing reverted to ACTIVE, got %s", got.Status)
	}
	if got.LastExecutedAt != nil {
		t.Error("expected LastExecutedAt left untouched when no report is generated")
	}
	if len(store.CreatedReports()) != 0 {
		t.Error("expected no report to be created")
	}
}

func TestWorker_ProcessOne_DropsBriefingNotQueued(t *testing.T) {
	store := pipelinetest.NewStore()
	b := seedQueuedBriefing(store, "br1", "u1")
	b.Status = entity.BriefingStatusActive
	store.PutBriefing(b)

	pool := NewWorkerPool(store, nil, nil, 10, testLogger())
	pool.processOne(context.Background(), "br1")

	if len(store.CreatedReports()) != 0 {
		t.Error("expected no report for a briefing that wasn't QUEUED")
	}
}
