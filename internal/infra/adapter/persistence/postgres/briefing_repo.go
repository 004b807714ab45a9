package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"briefingcore/internal/domain/entity"
)

// BriefingRepo implements repository.BriefingRepository.
type BriefingRepo struct{ store *Store }

const briefingColumns = `id, user_id, title, briefing_criteria, frequency, day_of_week,
	local_time, timezone, status, last_executed_at, email_delivery_enabled,
	position, queued_at, processing_started_at, error_message`

func scanBriefing(row interface{ Scan(dest ...interface{}) error }) (*entity.Briefing, error) {
	var b entity.Briefing
	var dayOfWeek sql.NullInt64
	var errorMessage sql.NullString
	if err := row.Scan(
		&b.ID, &b.UserID, &b.Title, &b.BriefingCriteria, &b.Frequency, &dayOfWeek,
		&b.LocalTime, &b.Timezone, &b.Status, &b.LastExecutedAt, &b.EmailDeliveryEnabled,
		&b.Position, &b.QueuedAt, &b.ProcessingStartedAt, &errorMessage,
	); err != nil {
		return nil, err
	}
	if dayOfWeek.Valid {
		d := time.Weekday(dayOfWeek.Int64)
		b.DayOfWeek = &d
	}
	b.ErrorMessage = errorMessage.String
	return &b, nil
}

// Get implements repository.BriefingRepository.
func (r *BriefingRepo) Get(ctx context.Context, id string) (*entity.Briefing, error) {
	query := fmt.Sprintf(`SELECT %s FROM briefings WHERE id = $1 LIMIT 1`, briefingColumns)
	row := r.store.execerFor(ctx).QueryRowContext(ctx, query, id)
	b, err := scanBriefing(row)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return b, nil
}

// ListActive implements the brief scheduler's per-cycle scan (spec.md §4.3 step 1).
func (r *BriefingRepo) ListActive(ctx context.Context) ([]*entity.Briefing, error) {
	query := fmt.Sprintf(`SELECT %s FROM briefings WHERE status = 'ACTIVE' ORDER BY position ASC`, briefingColumns)
	rows, err := r.store.execerFor(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	briefings := make([]*entity.Briefing, 0, 50)
	for rows.Next() {
		b, err := scanBriefing(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActive: scan: %w", err)
		}
		briefings = append(briefings, b)
	}
	return briefings, rows.Err()
}

// CASStatus implements the compare-and-swap transition.
func (r *BriefingRepo) CASStatus(ctx context.Context, id string, expected, next entity.BriefingStatus) (bool, error) {
	const query = `UPDATE briefings SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`
	res, err := r.store.execerFor(ctx).ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return false, fmt.Errorf("CASStatus: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CASStatus: rows affected: %w", err)
	}
	return n == 1, nil
}

// CompleteRun implements spec.md §4.3 step 4's briefing-side write,
// called inside the same transaction as the Report insert.
func (r *BriefingRepo) CompleteRun(ctx context.Context, id string, generatedAt time.Time) error {
	const query = `UPDATE briefings SET last_executed_at = $1, status = 'ACTIVE', updated_at = now() WHERE id = $2`
	_, err := r.store.execerFor(ctx).ExecContext(ctx, query, generatedAt, id)
	if err != nil {
		return fmt.Errorf("CompleteRun: %w", err)
	}
	return nil
}

// MarkError transitions the briefing to ERROR with a message.
func (r *BriefingRepo) MarkError(ctx context.Context, id string, errMsg string) error {
	const query = `UPDATE briefings SET status = 'ERROR', error_message = $1, updated_at = now() WHERE id = $2`
	_, err := r.store.execerFor(ctx).ExecContext(ctx, query, errMsg, id)
	if err != nil {
		return fmt.Errorf("MarkError: %w", err)
	}
	return nil
}

// MarkStuck resets briefings stranded in QUEUED/PROCESSING back to ACTIVE.
func (r *BriefingRepo) MarkStuck(ctx context.Context, threshold time.Duration) (int, error) {
	query := `
UPDATE briefings
SET status = 'ACTIVE', updated_at = now()
WHERE status IN ('QUEUED', 'PROCESSING') AND updated_at < now() - $1::interval`
	res, err := r.store.execerFor(ctx).ExecContext(ctx, query, fmt.Sprintf("%d seconds", int(threshold.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("MarkStuck: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("MarkStuck: rows affected: %w", err)
	}
	return int(n), nil
}

// Create inserts a new Briefing, minting an id if one wasn't supplied.
func (r *BriefingRepo) Create(ctx context.Context, b *entity.Briefing) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = entity.BriefingStatusActive
	}
	var dayOfWeek *int
	if b.DayOfWeek != nil {
		d := int(*b.DayOfWeek)
		dayOfWeek = &d
	}
	query := `
INSERT INTO briefings (id, user_id, title, briefing_criteria, frequency, day_of_week, local_time, timezone, status, email_delivery_enabled, position, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())`
	_, err := r.store.execerFor(ctx).ExecContext(ctx, query,
		b.ID, b.UserID, b.Title, b.BriefingCriteria, b.Frequency, dayOfWeek, b.LocalTime, b.Timezone, b.Status, b.EmailDeliveryEnabled, b.Position)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}
