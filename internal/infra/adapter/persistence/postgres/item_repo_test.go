package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/infra/adapter/persistence/postgres"
	"briefingcore/internal/repository"
)

func itemRow(it *entity.Item) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "source_id", "guid", "title", "link", "author", "published_at",
		"raw_content", "clean_content", "web_content", "summary", "tags", "score", "score_reasoning",
		"status", "error_message", "read_at", "saved", "created_at", "updated_at",
	}).AddRow(
		it.ID, it.SourceID, it.GUID, it.Title, it.Link, it.Author, it.PublishedAt,
		it.RawContent, it.CleanContent, it.WebContent, it.Summary, nil, nil, it.ScoreReasoning,
		it.Status, it.ErrorMessage, it.ReadAt, it.Saved, it.CreatedAt, it.UpdatedAt,
	)
}

func TestItemRepo_Get(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := &entity.Item{ID: "item-1", SourceID: "src-1", GUID: "guid-1", Title: "Hello", Status: entity.ItemStatusNew}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id`)).
		WithArgs("item-1").
		WillReturnRows(itemRow(want))

	store := postgres.NewStore(db)
	got, err := store.Items().Get(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if got.Title != "Hello" {
		t.Fatalf("Get got=%+v", got)
	}
}

func TestItemRepo_Create_MintsIDAndDefaultsStatus(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO items`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := postgres.NewStore(db)
	it := &entity.Item{SourceID: "src-1", GUID: "g-1", Title: "T"}
	if err := store.Items().Create(context.Background(), it); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if it.ID == "" {
		t.Fatal("expected Create to mint an id")
	}
	if it.Status != entity.ItemStatusNew {
		t.Fatalf("expected default status NEW, got %s", it.Status)
	}
}

func TestItemRepo_ExistsBySourceAndGUID(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("src-1", "g-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	store := postgres.NewStore(db)
	exists, err := store.Items().ExistsBySourceAndGUID(context.Background(), "src-1", "g-1")
	if err != nil {
		t.Fatalf("ExistsBySourceAndGUID err=%v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
}

func TestItemRepo_ListForEnrich(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "source_id", "guid", "title", "link", "author", "published_at",
		"raw_content", "clean_content", "web_content", "summary", "tags", "score", "score_reasoning",
		"status", "error_message", "read_at", "saved", "created_at", "updated_at", "user_id",
	}).AddRow(
		"item-1", "src-1", "g-1", "T", "", "", nil,
		"raw", "", "", "", nil, nil, "",
		entity.ItemStatusNew, "", nil, false, now, now, "user-1",
	)
	mock.ExpectQuery(`FROM items i`).WithArgs(10).WillReturnRows(rows)

	store := postgres.NewStore(db)
	got, err := store.Items().ListForEnrich(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListForEnrich err=%v", err)
	}
	if len(got) != 1 || got[0].UserID != "user-1" {
		t.Fatalf("ListForEnrich got=%+v", got)
	}
}

func TestItemRepo_CASStatus(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`UPDATE items`).WillReturnResult(sqlmock.NewResult(0, 1))

	store := postgres.NewStore(db)
	ok, err := store.Items().CASStatus(context.Background(), "item-1", entity.ItemStatusNew, entity.ItemStatusPending)
	if err != nil || !ok {
		t.Fatalf("CASStatus ok=%v err=%v", ok, err)
	}
}

func TestItemRepo_ApplyEnrichmentDone(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`UPDATE items`).WillReturnResult(sqlmock.NewResult(0, 1))

	store := postgres.NewStore(db)
	score := 80
	err := store.Items().ApplyEnrichmentDone(context.Background(), "item-1", repository.EnrichmentResult{
		Summary: "summary", Score: &score,
		Tags: &entity.Tags{Topics: []string{"go"}, Sentiment: entity.SentimentPositive},
	})
	if err != nil {
		t.Fatalf("ApplyEnrichmentDone err=%v", err)
	}
}

func TestItemRepo_MarkError_TruncatesMessage(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`UPDATE items`).WillReturnResult(sqlmock.NewResult(0, 1))

	store := postgres.NewStore(db)
	longMsg := make([]byte, entity.MaxErrorMessageLen()+100)
	for i := range longMsg {
		longMsg[i] = 'x'
	}
	if err := store.Items().MarkError(context.Background(), "item-1", string(longMsg)); err != nil {
		t.Fatalf("MarkError err=%v", err)
	}
}

func TestItemRepo_MarkStuck(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`UPDATE items`).WillReturnResult(sqlmock.NewResult(0, 2))

	store := postgres.NewStore(db)
	n, err := store.Items().MarkStuck(context.Background(), 15*time.Minute)
	if err != nil || n != 2 {
		t.Fatalf("MarkStuck n=%d err=%v", n, err)
	}
}

func TestItemRepo_TopScoredSince(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	want := &entity.Item{ID: "item-1", SourceID: "src-1", GUID: "g-1", Title: "T", Status: entity.ItemStatusDone, UpdatedAt: now}
	mock.ExpectQuery(`FROM items i`).WillReturnRows(itemRow(want))

	store := postgres.NewStore(db)
	got, err := store.Items().TopScoredSince(context.Background(), "b-1", now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("TopScoredSince err=%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("TopScoredSince got=%+v", got)
	}
}
