package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"backoffice/internal/types"
)

// TxBeginner starts transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxRunner runs a unit of work inside a single database transaction.
type TxRunner struct {
	db TxBeginner
}

// NewTxRunner creates a TxRunner over the given pool.
func NewTxRunner(db TxBeginner) *TxRunner {
	return &TxRunner{db: db}
}

// Run begins a transaction, hands it to fn and commits when fn returns nil.
// Any error from fn (or a panic) rolls the transaction back; fn's error is
// returned unchanged.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}
