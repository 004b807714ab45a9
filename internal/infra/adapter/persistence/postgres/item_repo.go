package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/repository"
)

// ItemRepo implements repository.ItemRepository.
type ItemRepo struct{ store *Store }

const itemColumns = `id, source_id, guid, title, link, author, published_at,
	raw_content, clean_content, web_content, summary, tags, score, score_reasoning,
	status, error_message, read_at, saved, created_at, updated_at`

func scanItem(row interface{ Scan(dest ...interface{}) error }) (*entity.Item, error) {
	var it entity.Item
	var link, author, rawContent, cleanContent, webContent, summary, errorMessage, scoreReasoning sql.NullString
	var tagsJSON []byte
	var score sql.NullInt64
	if err := row.Scan(
		&it.ID, &it.SourceID, &it.GUID, &it.Title, &link, &author, &it.PublishedAt,
		&rawContent, &cleanContent, &webContent, &summary, &tagsJSON, &score, &scoreReasoning,
		&it.Status, &errorMessage, &it.ReadAt, &it.Saved, &it.CreatedAt, &it.UpdatedAt,
	); err != nil {
		return nil, err
	}
	it.Link = link.String
	it.Author = author.String
	it.RawContent = rawContent.String
	it.CleanContent = cleanContent.String
	it.WebContent = webContent.String
	it.Summary = summary.String
	it.ErrorMessage = errorMessage.String
	it.ScoreReasoning = scoreReasoning.String
	if score.Valid {
		v := int(score.Int64)
		it.Score = &v
	}
	if len(tagsJSON) > 0 {
		var tags entity.Tags
		if err := json.Unmarshal(tagsJSON, &tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		it.Tags = &tags
	}
	return &it, nil
}

// Get implements repository.ItemRepository.
func (r *ItemRepo) Get(ctx context.Context, id string) (*entity.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM items WHERE id = $1 LIMIT 1`, itemColumns)
	row := r.store.execerFor(ctx).QueryRowContext(ctx, query, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return it, nil
}

// Create implements repository.ItemRepository. Callers must dedup via
// ExistsBySourceAndGUID first (spec.md §4.1).
func (r *ItemRepo) Create(ctx context.Context, item *entity.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = entity.ItemStatusNew
	}
	query := `
INSERT INTO items (id, source_id, guid, title, link, author, published_at, raw_content, clean_content, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`
	_, err := r.store.execerFor(ctx).ExecContext(ctx, query,
		item.ID, item.SourceID, item.GUID, item.Title, item.Link, item.Author,
		item.PublishedAt, item.RawContent, item.CleanContent, item.Status)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ExistsBySourceAndGUID implements the dedup check (spec.md P3).
func (r *ItemRepo) ExistsBySourceAndGUID(ctx context.Context, sourceID, guid string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM items WHERE source_id = $1 AND guid = $2)`
	var exists bool
	if err := r.store.execerFor(ctx).QueryRowContext(ctx, query, sourceID, guid).Scan(&exists); err != nil {
		return false, fmt.Errorf("ExistsBySourceAndGUID: %w", err)
	}
	return exists, nil
}

// ListForEnrich implements the enrich scheduler's candidate query
// (spec.md §4.2 step 3), pairing each item with its owning briefing's
// user id for the in-memory credit filter.
func (r *ItemRepo) ListForEnrich(ctx context.Context, limit int) ([]*repository.ItemForEnrich, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT %s, b.user_id
FROM items i
INNER JOIN sources s ON s.id = i.source_id
INNER JOIN briefings b ON b.id = s.briefing_id
WHERE i.status = 'NEW'
ORDER BY i.created_at ASC
LIMIT $1`, aliasColumns("i", itemColumns))

	rows, err := r.store.execerFor(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListForEnrich: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]*repository.ItemForEnrich, 0, limit)
	for rows.Next() {
		var userID string
		var it entity.Item
		var link, author, rawContent, cleanContent, webContent, summary, errorMessage, scoreReasoning sql.NullString
		var tagsJSON []byte
		var score sql.NullInt64
		if err := rows.Scan(
			&it.ID, &it.SourceID, &it.GUID, &it.Title, &link, &author, &it.PublishedAt,
			&rawContent, &cleanContent, &webContent, &summary, &tagsJSON, &score, &scoreReasoning,
			&it.Status, &errorMessage, &it.ReadAt, &it.Saved, &it.CreatedAt, &it.UpdatedAt, &userID,
		); err != nil {
			return nil, fmt.Errorf("ListForEnrich: scan: %w", err)
		}
		it.Link, it.Author, it.RawContent, it.CleanContent, it.WebContent = link.String, author.String, rawContent.String, cleanContent.String, webContent.String
		it.Summary, it.ErrorMessage, it.ScoreReasoning = summary.String, errorMessage.String, scoreReasoning.String
		if score.Valid {
			v := int(score.Int64)
			it.Score = &v
		}
		result = append(result, &repository.ItemForEnrich{Item: &it, UserID: userID})
	}
	return result, rows.Err()
}

// CASStatus implements the compare-and-swap transition.
func (r *ItemRepo) CASStatus(ctx context.Context, id string, expected, next entity.ItemStatus) (bool, error) {
	const query = `UPDATE items SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`
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

// ApplyEnrichmentDone writes the enrichment result and transitions the
// item to DONE (spec.md §4.2 step 6). Run inside Store.WithTx alongside
// the credit withdrawal by the enrich worker.
func (r *ItemRepo) ApplyEnrichmentDone(ctx context.Context, id string, res repository.EnrichmentResult) error {
	var tagsJSON []byte
	if res.Tags != nil {
		var err error
		tagsJSON, err = json.Marshal(res.Tags)
		if err != nil {
			return fmt.Errorf("ApplyEnrichmentDone: marshal tags: %w", err)
		}
	}
	query := `
UPDATE items
SET summary = $1, tags = $2, score = $3, score_reasoning = $4, web_content = $5,
    status = 'DONE', error_message = '', updated_at = now()
WHERE id = $6`
	_, err := r.store.execerFor(ctx).ExecContext(ctx, query, res.Summary, tagsJSON, res.Score, res.ScoreReasoning, res.WebContent, id)
	if err != nil {
		return fmt.Errorf("ApplyEnrichmentDone: %w", err)
	}
	return nil
}

// MarkError transitions the item to ERROR with a truncated message.
func (r *ItemRepo) MarkError(ctx context.Context, id string, errMsg string) error {
	msg := entity.TruncateErrorMessage(errMsg, entity.MaxErrorMessageLen())
	const query = `UPDATE items SET status = 'ERROR', error_message = $1, updated_at = now() WHERE id = $2`
	_, err := r.store.execerFor(ctx).ExecContext(ctx, query, msg, id)
	if err != nil {
		return fmt.Errorf("MarkError: %w", err)
	}
	return nil
}

// MarkStuck dead-letters items stranded in PENDING/PROCESSING to ERROR
// (spec.md §5; O1/O3 — preserved asymmetry with Source/Briefing).
func (r *ItemRepo) MarkStuck(ctx context.Context, threshold time.Duration) (int, error) {
	query := `
UPDATE items
SET status = 'ERROR', error_message = 'stuck recovery', updated_at = now()
WHERE status IN ('PENDING', 'PROCESSING') AND updated_at < now() - $1::interval`
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

// TopScoredSince implements the brief worker's item selection (spec.md §4.3 step 3).
func (r *ItemRepo) TopScoredSince(ctx context.Context, briefingID string, since time.Time, limit int) ([]*entity.Item, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM items i
INNER JOIN sources s ON s.id = i.source_id
WHERE s.briefing_id = $1 AND i.status = 'DONE' AND i.published_at > $2 AND i.score IS NOT NULL
ORDER BY i.score DESC, i.published_at DESC
LIMIT $3`, aliasColumns("i", itemColumns))

	rows, err := r.store.execerFor(ctx).QueryContext(ctx, query, briefingID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("TopScoredSince: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*entity.Item, 0, limit)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("TopScoredSince: scan: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
