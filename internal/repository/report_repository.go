package repository

import (
	"context"
	"time"

	"briefingcore/internal/domain/entity"
)

// ReportRepository is the Report half of the Store contract.
type ReportRepository interface {
	// Create inserts a Report and its ReportItems. The Postgres
	// implementation enforces at most one report per day with a unique
	// index on (briefingId, UTC date of generatedAt); the briefing's own
	// timezone is not considered. Callers should treat a conflict as "a
	// report already ran today" and skip silently.
	Create(ctx context.Context, report *entity.Report) error

	// ExistsForLocalDate reports whether a Report already exists for
	// briefingID on the given calendar date. The brief worker does not
	// call it.
	ExistsForLocalDate(ctx context.Context, briefingID string, localDate time.Time) (bool, error)
}
