package actionkit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/fernandezvara/dbkit"
)

// Transaction executes fn within a database transaction with automatic commit/rollback.
// fn receives a store bound to the transaction; nested calls use savepoints.
//
// Example:
//
//	err := store.Transaction(ctx, func(ctx context.Context, tx *actionkit.Store) error {
//	    if err := tx.SaveEntityPermission(ctx, project); err != nil {
//	        return err // rollback
//	    }
//	    return tx.SaveEntityPermission(ctx, document)
//	})
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	start := time.Now()
	var err error

	switch db := s.db.(type) {
	case *dbkit.Tx:
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx, s.withDB(tx))
		})
	case *dbkit.DBKit:
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx, s.withDB(tx))
		})
	default:
		err = fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
	}

	s.txMonitor.recordTransaction(time.Since(start), err == nil)
	return err
}

// TransactionWithOptions executes fn within a transaction with custom options.
// Options are ignored for nested transactions.
func (s *Store) TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context, tx *Store) error) error {
	start := time.Now()
	var err error

	switch db := s.db.(type) {
	case *dbkit.Tx:
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx, s.withDB(tx))
		})
	case *dbkit.DBKit:
		err = db.TransactionWithOptions(ctx, opts, func(tx *dbkit.Tx) error {
			return fn(ctx, s.withDB(tx))
		})
	default:
		err = fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
	}

	s.txMonitor.recordTransaction(time.Since(start), err == nil)
	return err
}

// ReadOnlyTransaction executes fn within a read-only transaction.
//
// Example:
//
//	err := store.ReadOnlyTransaction(ctx, func(ctx context.Context, tx *actionkit.Store) error {
//	    defs, err = tx.LoadDefinitions(ctx)
//	    return err
//	})
func (s *Store) ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	return s.TransactionWithOptions(ctx, dbkit.ReadOnlyTxOptions(), fn)
}

// defaultRetryAttempts bounds withRetry.
const defaultRetryAttempts = 3

// withRetry runs fn, retrying transient failures with exponential backoff and jitter.
func (s *Store) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < defaultRetryAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransientTransactionError(err) || attempt == defaultRetryAttempts-1 {
			break
		}

		backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
		jitter := time.Duration(float64(backoff) * 0.1 * (0.5 + rand.Float64()))
		s.logger.Warn("transient database error, retrying", "operation", op, "attempt", attempt+1, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	return lastErr
}

// transientErrors are fragments of PostgreSQL and driver messages worth a retry.
var transientErrors = []string{
	"connection",
	"timeout",
	"deadlock",
	"lock wait timeout",
	"could not serialize",
	"broken pipe",
	"temporary failure",
	"try again",
	"resource temporarily unavailable",
}

// isTransientTransactionError checks if an error is transient and can be retried.
// Context cancellation is final.
func isTransientTransactionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range transientErrors {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
