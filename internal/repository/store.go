// Package repository declares the store contracts the background
// processing core depends on: typed CRUD plus the compare-and-swap and
// eligibility predicates named in spec §6. Concrete adapters live under
// internal/infra/adapter/persistence.
package repository

import "context"

// Store is the transactional persistence boundary. WithTx runs fn inside
// a single database transaction; repository calls made with the ctx
// passed into fn participate in that transaction. Nested calls to WithTx
// are not supported — callers keep transactions short, per spec §5
// ("scheduler cycles never hold a queue lock while performing I/O").
type Store interface {
	Sources() SourceRepository
	Items() ItemRepository
	Briefings() BriefingRepository
	Reports() ReportRepository
	Credits() CreditRepository

	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
