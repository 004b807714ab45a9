package repository

import (
	"context"
	"time"

	"briefingcore/internal/domain/entity"
)

// EnrichmentResult carries the fields an enrich worker writes back to an
// Item once the enricher call returns successfully.
type EnrichmentResult struct {
	Summary        string
	Tags           *entity.Tags
	Score          int
	ScoreReasoning string
	WebContent     string
}

// ItemRepository is the Item half of the Store contract.
type ItemRepository interface {
	Get(ctx context.Context, id string) (*entity.Item, error)

	// Create inserts a new item. Callers must check ExistsBySourceAndGUID
	// first; Create does not itself dedup (spec §4.1: "dedup... before
	// insert").
	Create(ctx context.Context, item *entity.Item) error

	ExistsBySourceAndGUID(ctx context.Context, sourceID, guid string) (bool, error)

	// ListForEnrich returns up to limit items with Status=NEW, oldest
	// CreatedAt first, along with each item's owning briefing's user id
	// (for the scheduler's in-memory credit filter, spec §4.2 step 3).
	ListForEnrich(ctx context.Context, limit int) ([]*ItemForEnrich, error)

	// CASStatus updates Status only if current Status equals expected.
	CASStatus(ctx context.Context, id string, expected, next entity.ItemStatus) (bool, error)

	// ApplyEnrichmentDone writes the enrichment result and transitions the
	// item to DONE. Callers run this inside Store.WithTx alongside the
	// credit withdrawal (spec §4.2 step 6).
	ApplyEnrichmentDone(ctx context.Context, id string, res EnrichmentResult) error

	// MarkError transitions the item to ERROR with a truncated message.
	MarkError(ctx context.Context, id string, errMsg string) error

	// MarkStuck transitions items in PENDING/PROCESSING whose UpdatedAt is
	// older than threshold to ERROR with message "stuck recovery" (O3),
	// returning the count affected.
	MarkStuck(ctx context.Context, threshold time.Duration) (int, error)

	// TopScoredSince returns up to limit DONE items for briefingID
	// published after since, ordered score DESC then publishedAt DESC.
	TopScoredSince(ctx context.Context, briefingID string, since time.Time, limit int) ([]*entity.Item, error)
}

// ItemForEnrich pairs an Item with the owning briefing's user id, which
// the enrich scheduler needs for its in-memory credit filter without a
// join-per-item.
type ItemForEnrich struct {
	Item   *entity.Item
	UserID string
}
