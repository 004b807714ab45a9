// Package searchsync declares the optional full-text search index hook
// (spec.md §6): a fire-and-forget collaborator the enrich worker notifies
// after an item is enriched. Calls are asynchronous and errors are ignored
// by callers, per spec — the interface itself still returns an error so a
// real adapter can log failures internally.
package searchsync

import "context"

// SearchSync indexes, updates, and removes items from an external search
// index. A nil SearchSync is valid: call sites check presence explicitly
// (spec.md §9, "conditional component presence by config").
type SearchSync interface {
	Index(ctx context.Context, itemID string) error
	Update(ctx context.Context, itemID string) error
	Delete(ctx context.Context, itemID string) error
	DeleteByBriefing(ctx context.Context, briefingID string) error
}
