// Package postgres implements repository.Store against PostgreSQL via
// database/sql and the pgx stdlib driver, generalized from the teacher's
// SourceRepo/ArticleRepo pair to the Source/Item/Briefing/Report/
// CreditLedger schema of spec.md §3.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"briefingcore/internal/repository"
)

// aliasColumns rewrites a comma-separated column list constant (as used
// by the various scan* helpers) into one qualified by a table alias, for
// queries that join multiple tables and would otherwise be ambiguous.
func aliasColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(out, ", ")
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting every repo
// method run unmodified whether or not it's inside Store.WithTx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type ctxTxKey struct{}

// Store implements repository.Store.
type Store struct {
	db        *sql.DB
	sources   *SourceRepo
	items     *ItemRepo
	briefings *BriefingRepo
	reports   *ReportRepo
	credits   *CreditRepo
}

// NewStore builds a Store over an open *sql.DB (see internal/infra/db.Open).
func NewStore(db *sql.DB) *Store {
	s := &Store{db: db}
	s.sources = &SourceRepo{store: s}
	s.items = &ItemRepo{store: s}
	s.briefings = &BriefingRepo{store: s}
	s.reports = &ReportRepo{store: s}
	s.credits = &CreditRepo{store: s}
	return s
}

func (s *Store) Sources() repository.SourceRepository     { return s.sources }
func (s *Store) Items() repository.ItemRepository         { return s.items }
func (s *Store) Briefings() repository.BriefingRepository { return s.briefings }
func (s *Store) Reports() repository.ReportRepository     { return s.reports }
func (s *Store) Credits() repository.CreditRepository     { return s.credits }

// WithTx runs fn inside a single transaction. Repository calls made with
// the ctx passed into fn are routed to that transaction via execer;
// nested WithTx calls are not supported (spec.md §5: "scheduler cycles
// never hold a queue lock while performing I/O" — transactions stay short
// and single-level).
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, ctxTxKey{}, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// execerFor returns the ambient transaction if ctx carries one from
// WithTx, otherwise the plain *sql.DB.
func (s *Store) execerFor(ctx context.Context) execer {
	if tx, ok := ctx.Value(ctxTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}
