// Package trigger provides a minimal in-process API for kicking a single
// entity through its pipeline's queue out of band, ahead of the next
// scheduler tick. It does not expose HTTP itself (out of scope per
// spec.md §1); a host HTTP handler would call these methods directly.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/repository"
)

// offerer is the minimal non-blocking enqueue operation every pipeline
// queue exposes; kept local so this package doesn't need to import all
// three pipeline packages just for their identical OfferQueue shape.
type offerer interface {
	Offer(id string) bool
}

// API exposes manual single-entity triggers for all three pipelines.
type API struct {
	store       repository.Store
	fetchQueue  offerer
	enrichQueue offerer
	briefQueue  offerer
	logger      *slog.Logger
}

// New builds a trigger API over the same queues the three schedulers offer to.
func New(store repository.Store, fetchQueue, enrichQueue, briefQueue offerer, logger *slog.Logger) *API {
	return &API{store: store, fetchQueue: fetchQueue, enrichQueue: enrichQueue, briefQueue: briefQueue, logger: logger}
}

// TriggerFetch CASes sourceID IDLE→QUEUED and offers it to the fetch
// queue, reverting on a failed offer. Returns false (no error) if the
// source wasn't IDLE or the queue was full.
func (a *API) TriggerFetch(ctx context.Context, sourceID string) (bool, error) {
	now := time.Now()
	ok, err := a.store.Sources().CASFetchStatus(ctx, sourceID, entity.FetchStatusIdle, entity.FetchStatusQueued, &now, nil)
	if err != nil {
		return false, fmt.Errorf("CAS source to QUEUED: %w", err)
	}
	if !ok {
		return false, nil
	}
	if !a.fetchQueue.Offer(sourceID) {
		if _, err := a.store.Sources().CASFetchStatus(ctx, sourceID, entity.FetchStatusQueued, entity.FetchStatusIdle, nil, nil); err != nil {
			a.logger.ErrorContext(ctx, "trigger: reverting source CAS after failed offer failed", slog.String("source_id", sourceID), slog.Any("error", err))
		}
		return false, nil
	}
	return true, nil
}

// TriggerEnrich CASes itemID NEW→PENDING and offers it to the enrich queue.
func (a *API) TriggerEnrich(ctx context.Context, itemID string) (bool, error) {
	ok, err := a.store.Items().CASStatus(ctx, itemID, entity.ItemStatusNew, entity.ItemStatusPending)
	if err != nil {
		return false, fmt.Errorf("CAS item to PENDING: %w", err)
	}
	if !ok {
		return false, nil
	}
	if !a.enrichQueue.Offer(itemID) {
		if _, err := a.store.Items().CASStatus(ctx, itemID, entity.ItemStatusPending, entity.ItemStatusNew); err != nil {
			a.logger.ErrorContext(ctx, "trigger: reverting item CAS after failed offer failed", slog.String("item_id", itemID), slog.Any("error", err))
		}
		return false, nil
	}
	return true, nil
}

// TriggerBrief CASes briefingID ACTIVE→QUEUED and offers it to the brief queue.
func (a *API) TriggerBrief(ctx context.Context, briefingID string) (bool, error) {
	ok, err := a.store.Briefings().CASStatus(ctx, briefingID, entity.BriefingStatusActive, entity.BriefingStatusQueued)
	if err != nil {
		return false, fmt.Errorf("CAS briefing to QUEUED: %w", err)
	}
	if !ok {
		return false, nil
	}
	if !a.briefQueue.Offer(briefingID) {
		if _, err := a.store.Briefings().CASStatus(ctx, briefingID, entity.BriefingStatusQueued, entity.BriefingStatusActive); err != nil {
			a.logger.ErrorContext(ctx, "trigger: reverting briefing CAS after failed offer failed", slog.String("briefing_id", briefingID), slog.Any("error", err))
		}
		return false, nil
	}
	return true, nil
}
