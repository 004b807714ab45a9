package repository

import "context"

// CreditRepository is the credit-gate half of the Store contract (spec §4.5).
type CreditRepository interface {
	// HasBalance reports whether userID has a positive credit balance.
	HasBalance(ctx context.Context, userID string) (bool, error)

	// Withdraw atomically decrements userID's balance by amount and
	// inserts a CreditLedger row, returning false (no error) if the
	// balance was insufficient. Must not oversubscribe under concurrency
	// — implementations use a single conditional UPDATE, not read-then-write.
	Withdraw(ctx context.Context, userID string, amount int) (bool, error)

	// UsersWithBalance returns the set of user ids with a positive
	// balance, for the three schedulers' batched credit filter.
	UsersWithBalance(ctx context.Context) (map[string]bool, error)
}
