// Package recovery implements the stuck-item recovery sweep shared by all
// three pipelines (spec.md §5): periodically resets entities that have
// been stranded in a transitional state past a configurable threshold.
package recovery

import (
	"context"
	"log/slog"
	"time"

	"briefingcore/internal/observability/metrics"
	"briefingcore/internal/repository"
)

// Sweep runs the recovery cycle on a fixed interval.
type Sweep struct {
	store                repository.Store
	fetchStuckThreshold  time.Duration
	enrichStuckThreshold time.Duration
	briefStuckThreshold  time.Duration
	logger               *slog.Logger
}

// New builds a Sweep. Each pipeline may configure its own stuck threshold
// (spec.md §6's fetch.stuckThresholdMin / enrich / brief default to the
// shared recovery.stuckThresholdMin of 10 minutes, but are independently
// tunable).
func New(store repository.Store, fetchThreshold, enrichThreshold, briefThreshold time.Duration, logger *slog.Logger) *Sweep {
	return &Sweep{
		store:                store,
		fetchStuckThreshold:  fetchThreshold,
		enrichStuckThreshold: enrichThreshold,
		briefStuckThreshold:  briefThreshold,
		logger:               logger,
	}
}

// Run ticks every interval until ctx is canceled.
func (s *Sweep) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle heals each pipeline's stuck entities independently so one
// failure doesn't block the others (spec.md §7: "recovery sweeps never
// propagate errors").
//
// The asymmetry below — sources and briefings return to their pre-queue
// state, but items dead-letter to ERROR — is preserved as observed in the
// source material rather than "fixed" (O1/O3): items in PENDING/
// PROCESSING go to ERROR with "stuck recovery" rather than back to NEW.
func (s *Sweep) runCycle(ctx context.Context) {
	if n, err := s.store.Sources().MarkStuck(ctx, s.fetchStuckThreshold); err != nil {
		s.logger.ErrorContext(ctx, "recovery sweep: marking stuck sources failed", slog.Any("error", err))
	} else if n > 0 {
		s.logger.InfoContext(ctx, "recovery sweep: reset stuck sources", slog.Int("count", n))
		metrics.RecordRecoveryReset("fetch", n)
	}

	if n, err := s.store.Items().MarkStuck(ctx, s.enrichStuckThreshold); err != nil {
		s.logger.ErrorContext(ctx, "recovery sweep: marking stuck items failed", slog.Any("error", err))
	} else if n > 0 {
		s.logger.InfoContext(ctx, "recovery sweep: errored stuck items", slog.Int("count", n))
		metrics.RecordRecoveryReset("enrich", n)
	}

	if n, err := s.store.Briefings().MarkStuck(ctx, s.briefStuckThreshold); err != nil {
		s.logger.ErrorContext(ctx, "recovery sweep: marking stuck briefings failed", slog.Any("error", err))
	} else if n > 0 {
		s.logger.InfoContext(ctx, "recovery sweep: reset stuck briefings", slog.Int("count", n))
		metrics.RecordRecoveryReset("brief", n)
	}
}
