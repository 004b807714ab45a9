package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/infra/adapter/persistence/postgres"
)

func briefingRow(b *entity.Briefing) *sqlmock.Rows {
	var dayOfWeek interface{}
	if b.DayOfWeek != nil {
		dayOfWeek = int(*b.DayOfWeek)
	}
	return sqlmock.NewRows([]string{
		"id", "user_id", "title", "briefing_criteria", "frequency", "day_of_week",
		"local_time", "timezone", "status", "last_executed_at", "email_delivery_enabled",
		"position", "queued_at", "processing_started_at", "error_message",
	}).AddRow(
		b.ID, b.UserID, b.Title, b.BriefingCriteria, b.Frequency, dayOfWeek,
		b.LocalTime, b.Timezone, b.Status, b.LastExecutedAt, b.EmailDeliveryEnabled,
		b.Position, b.QueuedAt, b.ProcessingStartedAt, b.ErrorMessage,
	)
}

func TestBriefingRepo_Get(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := &entity.Briefing{
		ID: "b-1", UserID: "u-1", Title: "Morning Brief", Frequency: entity.FrequencyDaily,
		LocalTime: "08:00", Timezone: "America/New_York", Status: entity.BriefingStatusActive,
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id`)).
		WithArgs("b-1").
		WillReturnRows(briefingRow(want))

	store := postgres.NewStore(db)
	got, err := store.Briefings().Get(context.Background(), "b-1")
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if got.Title != "Morning Brief" {
		t.Fatalf("Get got=%+v", got)
	}
}

func TestBriefingRepo_Get_WeeklyWithDayOfWeek(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	dow := time.Monday
	want := &entity.Briefing{
		ID: "b-2", UserID: "u-1", Title: "Weekly", Frequency: entity.FrequencyWeekly,
		DayOfWeek: &dow, LocalTime: "09:00", Timezone: "UTC", Status: entity.BriefingStatusActive,
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id`)).
		WithArgs("b-2").
		WillReturnRows(briefingRow(want))

	store := postgres.NewStore(db)
	got, err := store.Briefings().Get(context.Background(), "b-2")
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if got.DayOfWeek == nil || *got.DayOfWeek != time.Monday {
		t.Fatalf("Get DayOfWeek=%v, want Monday", got.DayOfWeek)
	}
}

func TestBriefingRepo_ListActive(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	b := &entity.Briefing{ID: "b-1", UserID: "u-1", Title: "A", Frequency: entity.FrequencyDaily,
		LocalTime: "08:00", Timezone: "UTC", Status: entity.BriefingStatusActive}
	mock.ExpectQuery(`FROM briefings`).WillReturnRows(briefingRow(b))

	store := postgres.NewStore(db)
	got, err := store.Briefings().ListActive(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("ListActive got=%v err=%v", got, err)
	}
}

func TestBriefingRepo_CASStatus(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`UPDATE briefings`).WillReturnResult(sqlmock.NewResult(0, 1))

	store := postgres.NewStore(db)
	ok, err := store.Briefings().CASStatus(context.Background(), "b-1", entity.BriefingStatusActive, entity.BriefingStatusQueued)
	if err != nil || !ok {
		t.Fatalf("CASStatus ok=%v err=%v", ok, err)
	}
}

func TestBriefingRepo_CompleteRun(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectExec(`UPDATE briefings`).WithArgs(now, "b-1").WillReturnResult(sqlmock.NewResult(0, 1))

	store := postgres.NewStore(db)
	if err := store.Briefings().CompleteRun(context.Background(), "b-1", now); err != nil {
		t.Fatalf("CompleteRun err=%v", err)
	}
}

func TestBriefingRepo_MarkStuck(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`UPDATE briefings`).WillReturnResult(sqlmock.NewResult(0, 1))

	store := postgres.NewStore(db)
	n, err := store.Briefings().MarkStuck(context.Background(), 20*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("MarkStuck n=%d err=%v", n, err)
	}
}

func TestBriefingRepo_Create(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO briefings`)).WillReturnResult(sqlmock.NewResult(0, 1))

	store := postgres.NewStore(db)
	b := &entity.Briefing{UserID: "u-1", Title: "New", Frequency: entity.FrequencyDaily, LocalTime: "08:00", Timezone: "UTC"}
	if err := store.Briefings().(*postgres.BriefingRepo).Create(context.Background(), b); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if b.ID == "" {
		t.Fatal("expected Create to mint an id")
	}
}
