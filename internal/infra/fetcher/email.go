package fetcher

import (
	"context"

	"briefingcore/internal/domain/entity"
)

// Email implements Fetcher for entity.SourceTypeEmail. It is a deliberate
// no-op: items for EMAIL sources arrive via the push-side EmailIngress
// component (spec.md §6), not by polling. The fetch pipeline still cycles
// EMAIL sources through QUEUED/FETCHING/IDLE so lastFetchedAt and the
// recovery sweep behave uniformly across source types.
type Email struct{}

// NewEmail builds the no-op EMAIL fetcher.
func NewEmail() *Email {
	return &Email{}
}

// Validate always succeeds for EMAIL sources (spec.md §4.1).
func (f *Email) Validate(ctx context.Context, url string) (ValidateResult, error) {
	return ValidateResult{OK: true}, nil
}

// Fetch always returns an empty result.
func (f *Email) Fetch(ctx context.Context, source *entity.Source, cc entity.CallContext) (FetchResult, error) {
	return FetchResult{}, nil
}
