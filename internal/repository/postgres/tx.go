package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const maxSerializableAttempts = 3

// runSerializable executes fn in a SERIALIZABLE transaction, retrying when Postgres
// aborts it with a serialization failure or deadlock. Any error rolls back fully.
func runSerializable(ctx context.Context, db pgDB, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxSerializableAttempts; attempt++ {
		err := runTx(ctx, db, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryableTxError(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("serializable transaction retries exhausted: %w", lastErr)
}

func runTx(ctx context.Context, db pgDB, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		// Rollback must run even if the caller already gave up.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
