package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/repository"
)

// SourceRepo implements repository.SourceRepository.
type SourceRepo struct{ store *Store }

const sourceColumns = `id, briefing_id, type, url, name, extraction_prompt,
	refresh_interval_minutes, status, fetch_status, last_fetched_at,
	etag, last_modified, error_message, queued_at, fetch_started_at, updated_at`

func scanSource(row interface{ Scan(dest ...interface{}) error }) (*entity.Source, error) {
	var s entity.Source
	var extractionPrompt, etag, lastModified, errorMessage sql.NullString
	if err := row.Scan(
		&s.ID, &s.BriefingID, &s.Type, &s.URL, &s.Name, &extractionPrompt,
		&s.RefreshIntervalMinutes, &s.Status, &s.FetchStatus, &s.LastFetchedAt,
		&etag, &lastModified, &errorMessage, &s.QueuedAt, &s.FetchStartedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.ExtractionPrompt = extractionPrompt.String
	s.ETag = etag.String
	s.LastModified = lastModified.String
	s.ErrorMessage = errorMessage.String
	return &s, nil
}

// Get implements repository.SourceRepository.
func (r *SourceRepo) Get(ctx context.Context, id string) (*entity.Source, error) {
	query := fmt.Sprintf(`SELECT %s FROM sources WHERE id = $1 LIMIT 1`, sourceColumns)
	row := r.store.execerFor(ctx).QueryRowContext(ctx, query, id)
	s, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return s, nil
}

// ListEligibleForFetch implements the §3 eligibility invariant (spec.md
// §4.1 step 3): ACTIVE, IDLE, due for refresh, owned by a user with
// credit balance, oldest-first.
func (r *SourceRepo) ListEligibleForFetch(ctx context.Context, userIDs []string, limit int) ([]*entity.Source, error) {
	if len(userIDs) == 0 || limit <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT %s FROM sources s
INNER JOIN briefings b ON b.id = s.briefing_id
WHERE s.status = 'ACTIVE' AND s.fetch_status = 'IDLE'
  AND s.refresh_interval_minutes > 0
  AND (s.last_fetched_at IS NULL OR s.last_fetched_at + (s.refresh_interval_minutes * INTERVAL '1 minute') <= now())
  AND b.user_id = ANY($1)
ORDER BY s.last_fetched_at ASC NULLS FIRST, s.updated_at ASC
LIMIT $2`, aliasColumns("s", sourceColumns))

	rows, err := r.store.execerFor(ctx).QueryContext(ctx, query, pq.Array(userIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("ListEligibleForFetch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sources := make([]*entity.Source, 0, limit)
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("ListEligibleForFetch: scan: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// CASFetchStatus implements the compare-and-swap transition spec.md §9
// requires for every QUEUED/PROCESSING-like enter/exit.
func (r *SourceRepo) CASFetchStatus(ctx context.Context, id string, expected, next entity.FetchStatus, queuedAt, fetchStartedAt *time.Time) (bool, error) {
	query := `
UPDATE sources
SET fetch_status = $1, queued_at = COALESCE($2, queued_at), fetch_started_at = COALESCE($3, fetch_started_at), updated_at = now()
WHERE id = $4 AND fetch_status = $5`
	res, err := r.store.execerFor(ctx).ExecContext(ctx, query, next, queuedAt, fetchStartedAt, id, expected)
	if err != nil {
		return false, fmt.Errorf("CASFetchStatus: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CASFetchStatus: rows affected: %w", err)
	}
	return n == 1, nil
}

// ApplyFetchResult implements the post-fetch delta write (spec.md §4.1).
func (r *SourceRepo) ApplyFetchResult(ctx context.Context, id string, upd repository.SourceFetchUpdate) error {
	query := `
UPDATE sources
SET fetch_status = $1, status = $2, last_fetched_at = COALESCE($3, last_fetched_at),
    etag = CASE WHEN $4 <> '' THEN $4 ELSE etag END,
    last_modified = CASE WHEN $5 <> '' THEN $5 ELSE last_modified END,
    error_message = $6, updated_at = now()
WHERE id = $7`
	_, err := r.store.execerFor(ctx).ExecContext(ctx, query, upd.FetchStatus, upd.Status, upd.LastFetchedAt, upd.ETag, upd.LastModified, upd.ErrorMessage, id)
	if err != nil {
		return fmt.Errorf("ApplyFetchResult: %w", err)
	}
	return nil
}

// MarkStuck resets sources stranded in QUEUED/FETCHING back to IDLE
// (spec.md §5; preserved asymmetry with Item/Briefing, see O1).
func (r *SourceRepo) MarkStuck(ctx context.Context, threshold time.Duration) (int, error) {
	query := `
UPDATE sources
SET fetch_status = 'IDLE', updated_at = now()
WHERE fetch_status IN ('QUEUED', 'FETCHING') AND updated_at < now() - $1::interval`
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

// Create inserts a new Source, minting an id if one wasn't supplied.
func (r *SourceRepo) Create(ctx context.Context, s *entity.Source) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.FetchStatus == "" {
		s.FetchStatus = entity.FetchStatusIdle
	}
	if s.Status == "" {
		s.Status = entity.SourceStatusActive
	}
	query := `
INSERT INTO sources (id, briefing_id, type, url, name, extraction_prompt, refresh_interval_minutes, status, fetch_status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())`
	_, err := r.store.execerFor(ctx).ExecContext(ctx, query,
		s.ID, s.BriefingID, s.Type, s.URL, s.Name, s.ExtractionPrompt, s.RefreshIntervalMinutes, s.Status, s.FetchStatus)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}
