package enrich

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

func seedNewItem(store *pipelinetest.Store, itemID, sourceID, briefingID string) {
	store.PutSource(&entity.Source{ID: sourceID, BriefingID: briefingID, Type: entity.SourceTypeRSS, Status: entity.SourceStatusActive, FetchStatus: entity.FetchStatusIdle, UpdatedAt: time.Now()})
	store.PutItem(&entity.Item{ID: itemID, SourceID: sourceID, GUID: itemID, Status: entity.ItemStatusNew, CreatedAt: time.Now(), UpdatedAt: time.Now()})
}

func TestScheduler_QueuesNewItemForUserWithBalance(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutBriefing(&entity.Briefing{ID: "b1", UserID: "u1", Status: entity.BriefingStatusActive})
	store.SetBalance("u1", true)
	seedNewItem(store, "i1", "s1", "b1")

	q := &fakeOfferQueue{capacity: 10, free: 10}
	s := NewScheduler(store, q, 5, testLogger())

	s.runCycle(context.Background())

	if len(q.offered) != 1 || q.offered[0] != "i1" {
		t.Fatalf("expected i1 offered, got %v", q.offered)
	}
	got, _ := store.Items().Get(context.Background(), "i1")
	if got.Status != entity.ItemStatusPending {
		t.Errorf("expected item PENDING, got %s", got.Status)
	}
}

func TestScheduler_SkipsItemOwnedByUserWithoutBalance(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutBriefing(&entity.Briefing{ID: "b1", UserID: "u1", Status: entity.BriefingStatusActive})
	store.SetBalance("u1", false)
	seedNewItem(store, "i1", "s1", "b1")

	q := &fakeOfferQueue{capacity: 10, free: 10}
	s := NewScheduler(store, q, 5, testLogger())

	s.runCycle(context.Background())

	if len(q.offered) != 0 {
		t.Fatalf("expected no offers, got %v", q.offered)
	}
}

func TestScheduler_RespectsBatchSizeLimit(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutBriefing(&entity.Briefing{ID: "b1", UserID: "u1", Status: entity.BriefingStatusActive})
	store.SetBalance("u1", true)
	seedNewItem(store, "i1", "s1", "b1")
	seedNewItem(store, "i2", "s1", "b1")
	seedNewItem(store, "i3", "s1", "b1")

	q := &fakeOfferQueue{capacity: 10, free: 10}
	s := NewScheduler(store, q, 2, testLogger())

	s.runCycle(context.Background())

	if len(q.offered) != 2 {
		t.Fatalf("expected exactly 2 offers (batchSize=2), got %d: %v", len(q.offered), q.offered)
	}
}

func TestScheduler_SkipsCycleWhenQueueFull(t *testing.T) {
	store := pipelinetest.NewStore()
	store.PutBriefing(&entity.Briefing{ID: "b1", UserID: "u1", Status: entity.BriefingStatusActive})
	store.SetBalance("u1", true)
	seedNewItem(store, "i1", "s1", "b1")

	q := &fakeOfferQueue{capacity: 0, free: 0}
	s := NewScheduler(store, q, 5, testLogger())

	s.runCycle(context.Background())

	if len(q.offered) != 0 {
		t.Fatalf("expected no offers with a full queue, got %v", q.offered)
	}
}

type fakeOfferQueue struct {
	capacity     int
	free         int
	rejectOffers bool
	offered      []string
}

func (q *fakeOfferQueue) Offer(id string) bool {
	if q.rejectOffers || q.free <= 0 {
		return false
	}
	q.free--
	q.offered = append(q.offered, id)
	return true
}

func (q *fakeOfferQueue) FreeCapacity() int { return q.free }
func (q *fakeOfferQueue) Capacity() int     { return q.capacity }
