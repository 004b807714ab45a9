package repository

import (
	"context"
	"time"

	"briefingcore/internal/domain/entity"
)

// BriefingRepository is the Briefing half of the Store contract.
type BriefingRepository interface {
	Get(ctx context.Context, id string) (*entity.Briefing, error)

	// ListActive returns all briefings with Status=ACTIVE, for the brief
	// scheduler's per-cycle due-today scan.
	ListActive(ctx context.Context) ([]*entity.Briefing, error)

	// CASStatus updates Status only if current Status equals expected.
	CASStatus(ctx context.Context, id string, expected, next entity.BriefingStatus) (bool, error)

	// CompleteRun sets LastExecutedAt=generatedAt and Status=ACTIVE,
	// called in the same transaction as the Report insert (spec §4.3 step 4).
	CompleteRun(ctx context.Context, id string, generatedAt time.Time) error

	// MarkError transitions the briefing to ERROR with a message.
	MarkError(ctx context.Context, id string, errMsg string) error

	// MarkStuck resets briefings in QUEUED/PROCESSING whose UpdatedAt is
	// older than threshold back to ACTIVE, returning the count affected.
	MarkStuck(ctx context.Context, threshold time.Duration) (int, error)
}
