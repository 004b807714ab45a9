package repository

import (
	"context"
	"time"

	"briefingcore/internal/domain/entity"
)

// SourceFetchUpdate carries the fields a fetch worker writes back to a
// Source after a fetch attempt completes (success or failure).
type SourceFetchUpdate struct {
	FetchStatus   entity.FetchStatus
	Status        entity.SourceStatus
	LastFetchedAt *time.Time
	ETag          string
	LastModified  string
	ErrorMessage  string
}

// SourceRepository is the Source half of the Store contract.
type SourceRepository interface {
	Get(ctx context.Context, id string) (*entity.Source, error)

	// ListEligibleForFetch implements the §3 eligibility invariant joined
	// to userIDs (users with credit balance), ordered lastFetchedAt NULLS
	// FIRST then updatedAt ASC, limited to limit.
	ListEligibleForFetch(ctx context.Context, userIDs []string, limit int) ([]*entity.Source, error)

	// CASFetchStatus updates FetchStatus only if the row's current
	// FetchStatus equals expected; returns false without error on a CAS
	// miss (the entity changed concurrently).
	CASFetchStatus(ctx context.Context, id string, expected, next entity.FetchStatus, queuedAt, fetchStartedAt *time.Time) (bool, error)

	// ApplyFetchResult writes the post-fetch delta (new fetch status,
	// caching headers, error message) in one update.
	ApplyFetchResult(ctx context.Context, id string, upd SourceFetchUpdate) error

	// MarkStuck resets sources in QUEUED/FETCHING whose UpdatedAt is older
	// than threshold back to IDLE, returning the count affected.
	MarkStuck(ctx context.Context, threshold time.Duration) (int, error)
}
