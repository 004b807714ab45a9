package entity

import "time"

// CreditLedger is one row per successful enrichment call: the record that
// makes property P2 (no double credit) checkable. Its insert and the
// item's transition to DONE happen in the same store transaction.
type CreditLedger struct {
	ID     string
	UserID string
	Amount int // always 1
	UsedAt time.Time
}
