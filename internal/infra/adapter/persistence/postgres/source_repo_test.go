package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/infra/adapter/persistence/postgres"
	"briefingcore/internal/repository"
)

func sourceRow(s *entity.Source) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "briefing_id", "type", "url", "name", "extraction_prompt",
		"refresh_interval_minutes", "status", "fetch_status", "last_fetched_at",
		"etag", "last_modified", "error_message", "queued_at", "fetch_started_at", "updated_at",
	}).AddRow(
		s.ID, s.BriefingID, s.Type, s.URL, s.Name, s.ExtractionPrompt,
		s.RefreshIntervalMinutes, s.Status, s.FetchStatus, s.LastFetchedAt,
		s.ETag, s.LastModified, s.ErrorMessage, s.QueuedAt, s.FetchStartedAt, s.UpdatedAt,
	)
}

func TestSourceRepo_Get(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := &entity.Source{
		ID: "src-1", BriefingID: "b-1", Type: entity.SourceTypeRSS,
		URL: "https://example.com/feed", Name: "Example", RefreshIntervalMinutes: 60,
		Status: entity.SourceStatusActive, FetchStatus: entity.FetchStatusIdle,
		UpdatedAt: time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id`)).
		WithArgs("src-1").
		WillReturnRows(sourceRow(want))

	store := postgres.NewStore(db)
	got, err := store.Sources().Get(context.Background(), "src-1")
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Get mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSourceRepo_Get_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "briefing_id", "type", "url", "name", "extraction_prompt",
			"refresh_interval_minutes", "status", "fetch_status", "last_fetched_at",
			"etag", "last_modified", "error_message", "queued_at", "fetch_started_at", "updated_at",
		}))

	store := postgres.NewStore(db)
	_, err := store.Sources().Get(context.Background(), "missing")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("Get err=%v, want ErrNotFound", err)
	}
}

func TestSourceRepo_ListEligibleForFetch_EmptyInputsShortCircuit(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	store := postgres.NewStore(db)
	got, err := store.Sources().ListEligibleForFetch(context.Background(), nil, 10)
	if err != nil || got != nil {
		t.Fatalf("expected nil,nil short-circuit, got %v,%v", got, err)
	}
}

func TestSourceRepo_ListEligibleForFetch(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	want := &entity.Source{
		ID: "src-1", BriefingID: "b-1", Type: entity.SourceTypeRSS,
		URL: "https://example.com/feed", Name: "Example", RefreshIntervalMinutes: 60,
		Status: entity.SourceStatusActive, FetchStatus: entity.FetchStatusIdle, UpdatedAt: now,
	}

	mock.ExpectQuery(`FROM sources s`).
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnRows(sourceRow(want))

	store := postgres.NewStore(db)
	got, err := store.Sources().ListEligibleForFetch(context.Background(), []string{"u-1"}, 5)
	if err != nil {
		t.Fatalf("ListEligibleForFetch err=%v", err)
	}
	if len(got) != 1 || got[0].ID != "src-1" {
		t.Fatalf("ListEligibleForFetch got=%+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSourceRepo_CASFetchStatus_Success(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`UPDATE sources`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := postgres.NewStore(db)
	ok, err := store.Sources().CASFetchStatus(context.Background(), "src-1",
		entity.FetchStatusIdle, entity.FetchStatusQueued, nil, nil)
	if err != nil {
		t.Fatalf("CASFetchStatus err=%v", err)
	}
	if !ok {
		t.Fatal("expected CAS to succeed")
	}
}

func TestSourceRepo_CASFetchStatus_NoMatch(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`UPDATE sources`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := postgres.NewStore(db)
	ok, err := store.Sources().CASFetchStatus(context.Background(), "src-1",
		entity.FetchStatusIdle, entity.FetchStatusQueued, nil, nil)
	if err != nil {
		t.Fatalf("CASFetchStatus err=%v", err)
	}
	if ok {
		t.Fatal("expected CAS to fail when status already changed")
	}
}

func TestSourceRepo_ApplyFetchResult(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectExec(`UPDATE sources`).
		WithArgs(entity.FetchStatusIdle, entity.SourceStatusActive, &now, "etag-1", "", "", "src-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := postgres.NewStore(db)
	err := store.Sources().ApplyFetchResult(context.Background(), "src-1", repository.SourceFetchUpdate{
		FetchStatus: entity.FetchStatusIdle, Status: entity.SourceStatusActive,
		LastFetchedAt: &now, ETag: "etag-1",
	})
	if err != nil {
		t.Fatalf("ApplyFetchResult err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSourceRepo_MarkStuck(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`UPDATE sources`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	store := postgres.NewStore(db)
	n, err := store.Sources().MarkStuck(context.Background(), 10*time.Minute)
	if err != nil {
		t.Fatalf("MarkStuck err=%v", err)
	}
	if n != 3 {
		t.Fatalf("MarkStuck n=%d, want 3", n)
	}
}

func TestSourceRepo_Create(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sources`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := postgres.NewStore(db)
	s := &entity.Source{BriefingID: "b-1", Type: entity.SourceTypeRSS, URL: "https://x.com/feed", Name: "X"}
	if err := store.Sources().(*postgres.SourceRepo).Create(context.Background(), s); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if s.ID == "" {
		t.Fatal("expected Create to mint an id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
