package recovery

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/pipeline/pipelinetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweep_ResetsStuckSourceToIdle(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutSource(&entity.Source{
		ID:           "s1",
		BriefingID:   "b1",
		Type:         entity.SourceTypeRSS,
		Status:       entity.SourceStatusActive,
		FetchStatus:  entity.FetchStatusFetching,
		UpdatedAt:    time.Now().Add(-time.Hour),
	})

	sweep := New(store, time.Minute, time.Minute, time.Minute, testLogger())
	sweep.runCycle(context.Background())

	got, err := store.Sources().Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FetchStatus != entity.FetchStatusIdle {
		t.Errorf("expected stuck source reset to IDLE, got %s", got.FetchStatus)
	}
}

func TestSweep_ErrorsStuckItemRatherThanRevertingToNew(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutSource(&entity.Source{ID: "s1", BriefingID: "b1", Type: entity.SourceTypeRSS, Status: entity.SourceStatusActive, FetchStatus: entity.FetchStatusIdle, UpdatedAt: time.Now()})
	store.PutItem(&entity.Item{ID: "i1", SourceID: "s1", GUID: "g1", Status: entity.ItemStatusProcessing, UpdatedAt: time.Now().Add(-time.Hour)})

	sweep := New(store, time.Minute, time.Minute, time.Minute, testLogger())
	sweep.runCycle(context.Background())

	got, err := store.Items().Get(context.Background(), "i1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != entity.ItemStatusError {
		t.Errorf("expected stuck item to dead-letter to ERROR, got %s", got.Status)
	}
	if got.ErrorMessage != "stuck recovery" {
		t.Errorf("expected ErrorMessage %q, got %q", "stuck recovery", got.ErrorMessage)
	}
}

func TestSweep_ResetsStuckBriefingToActive(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutBriefing(&entity.Briefing{ID: "b1", UserID: "u1", Status: entity.BriefingStatusProcessing})

	sweep := New(store, time.Minute, time.Minute, time.Minute, testLogger())
	sweep.runCycle(context.Background())

	got, err := store.Briefings().Get(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != entity.BriefingStatusActive {
		t.Errorf("expected stuck briefing reset to ACTIVE, got %s", got.Status)
	}
}

func TestSweep_LeavesFreshEntitiesUntouched(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutSource(&entity.Source{ID: "s1", BriefingID: "b1", Type: entity.SourceTypeRSS, Status: entity.SourceStatusActive, FetchStatus: entity.FetchStatusFetching, UpdatedAt: time.Now()})

	sweep := New(store, time.Hour, time.Hour, time.Hour, testLogger())
	sweep.runCycle(context.Background())

	got, err := store.Sources().Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FetchStatus != entity.FetchStatusFetching {
		t.Errorf("expected fresh source left untouched, got %s", got.FetchStatus)
	}
}
