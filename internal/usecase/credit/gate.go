// Package credit implements the credit gate consumed by the enrich
// worker's withdrawal step and by EmailIngress's balance check (spec.md
// §4.5). The three schedulers read balances through
// repository.CreditRepository directly.
package credit

import (
	"context"

	"briefingcore/internal/repository"
)

// Gate is the entry point the enrich worker and EmailIngress use to check
// and consume credit.
// It is a thin wrapper over repository.CreditRepository so call sites never
// depend on the persistence layer directly.
type Gate struct {
	credits repository.CreditRepository
}

// New builds a Gate backed by the given credit repository.
func New(credits repository.CreditRepository) *Gate {
	return &Gate{credits: credits}
}

// HasBalance reports whether userID currently has a positive balance.
// EmailIngress uses this to decide whether to extract an inbound
// message; it is advisory only — the authoritative check happens at
// Withdraw time inside the enrich transaction.
func (g *Gate) HasBalance(ctx context.Context, userID string) (bool, error) {
	return g.credits.HasBalance(ctx, userID)
}

// Withdraw atomically decrements userID's balance by amount. A false, nil
// return means the balance was insufficient at withdrawal time (a race
// against HasBalance's advisory check) and the caller must treat the
// operation as an InsufficientCredits failure, not retry.
func (g *Gate) Withdraw(ctx context.Context, userID string, amount int) (bool, error) {
	return g.credits.Withdraw(ctx, userID, amount)
}

// UsersWithBalance returns the set of user ids with a positive balance.
// Nothing in this repository calls it; the schedulers call the
// repository method of the same name once per cycle and intersect the
// result with candidate sources/briefings instead of checking per entity.
func (g *Gate) UsersWithBalance(ctx context.Context) (map[string]bool, error) {
	return g.credits.UsersWithBalance(ctx)
}
