package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreditRepo implements repository.CreditRepository against a
// user_credits(user_id, balance) table plus the credit_ledger audit log
// (entity.CreditLedger). The balance lives on user_credits rather than
// being derived by summing the ledger so Withdraw can do its
// insufficient-balance check and decrement in one conditional UPDATE.
type CreditRepo struct{ store *Store }

// HasBalance implements repository.CreditRepository.
func (r *CreditRepo) HasBalance(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM user_credits WHERE user_id = $1 AND balance > 0)`
	var exists bool
	if err := r.store.execerFor(ctx).QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("HasBalance: %w", err)
	}
	return exists, nil
}

// Withdraw implements repository.CreditRepository. The UPDATE's WHERE
// clause is the sole guard against oversubscription under concurrent
// withdrawals; a zero rows-affected result means insufficient balance,
// not an error.
func (r *CreditRepo) Withdraw(ctx context.Context, userID string, amount int) (bool, error) {
	exec := r.store.execerFor(ctx)

	const update = `UPDATE user_credits SET balance = balance - $1, updated_at = now() WHERE user_id = $2 AND balance >= $1`
	res, err := exec.ExecContext(ctx, update, amount, userID)
	if err != nil {
		return false, fmt.Errorf("Withdraw: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Withdraw: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	const insertLedger = `INSERT INTO credit_ledger (id, user_id, amount, used_at) VALUES ($1, $2, $3, now())`
	if _, err := exec.ExecContext(ctx, insertLedger, uuid.NewString(), userID, amount); err != nil {
		return false, fmt.Errorf("Withdraw: insert ledger: %w", err)
	}
	return true, nil
}

// UsersWithBalance implements repository.CreditRepository, backing the
// three schedulers' single batched credit filter per cycle.
func (r *CreditRepo) UsersWithBalance(ctx context.Context) (map[string]bool, error) {
	const query = `SELECT user_id FROM user_credits WHERE balance > 0`
	rows, err := r.store.execerFor(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("UsersWithBalance: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]bool)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("UsersWithBalance: scan: %w", err)
		}
		out[userID] = true
	}
	return out, rows.Err()
}
