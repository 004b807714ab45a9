package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"briefingcore/internal/domain/entity"
)

// ReportRepo implements repository.ReportRepository.
type ReportRepo struct{ store *Store }

// Create inserts a Report and its ReportItems. A unique index on
// (briefing_id, (generated_at AT TIME ZONE 'UTC')::date) enforces the
// at-most-one-per-day invariant (spec.md P6); callers should treat a
// unique-violation error as "a report already ran today."
func (r *ReportRepo) Create(ctx context.Context, report *entity.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	exec := r.store.execerFor(ctx)
	const insertReport = `INSERT INTO reports (id, briefing_id, generated_at) VALUES ($1, $2, $3)`
	if _, err := exec.ExecContext(ctx, insertReport, report.ID, report.BriefingID, report.GeneratedAt); err != nil {
		return fmt.Errorf("Create: insert report: %w", err)
	}

	itemIDs := make([]string, len(report.Items))
	scores := make([]int, len(report.Items))
	positions := make([]int, len(report.Items))
	for i, it := range report.Items {
		itemIDs[i], scores[i], positions[i] = it.ItemID, it.Score, it.Position
	}

	const insertItems = `
INSERT INTO report_items (report_id, item_id, score, position)
SELECT $1, unnest($2::text[]), unnest($3::int[]), unnest($4::int[])`
	if _, err := exec.ExecContext(ctx, insertItems, report.ID, pq.Array(itemIDs), pq.Array(scores), pq.Array(positions)); err != nil {
		return fmt.Errorf("Create: insert report items: %w", err)
	}
	return nil
}

// ExistsForLocalDate reports whether a Report already exists for
// briefingID on localDate, comparing against generated_at::date in the
// database session's timezone. The brief worker does not call it.
func (r *ReportRepo) ExistsForLocalDate(ctx context.Context, briefingID string, localDate time.Time) (bool, error) {
	const query = `
SELECT EXISTS(
	SELECT 1 FROM reports
	WHERE briefing_id = $1 AND generated_at::date = $2::date
)`
	var exists bool
	if err := r.store.execerFor(ctx).QueryRowContext(ctx, query, briefingID, localDate).Scan(&exists); err != nil {
		return false, fmt.Errorf("ExistsForLocalDate: %w", err)
	}
	return exists, nil
}
