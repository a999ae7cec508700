package stm

import (
	"context"

	"github.com/tvarstm/stm/internal/retry"
	"github.com/tvarstm/stm/internal/txn"
)

// activeHandleKey is the context marker Atomically sets on the context
// it derives for its attempts; a call whose ctx carries it for the same
// *Store runs on a fresh handle (spec §4.6 "Re-entrance", §9).
type activeHandleKey struct{}

// MaxRetriesExceededError is returned when Atomically exhausts its
// retry ceiling without committing (spec §4.6, §7; default 1000
// attempts, see internal/retry.DefaultMaxAttempts).
type MaxRetriesExceededError = retry.MaxRetriesExceededError

// IsMaxRetriesExceeded reports whether err is (or wraps) a
// MaxRetriesExceededError.
func IsMaxRetriesExceeded(err error) bool { return retry.IsMaxRetriesExceeded(err) }

// RetryOption tunes the Retry Driver for a single Atomically call
// (spec §9: "treat them as part of the Retry Driver config").
type RetryOption = retry.Option

// WithMaxAttempts overrides the default retry ceiling (1000).
func WithMaxAttempts(n int) RetryOption { return retry.WithMaxAttempts(n) }

// Atomically runs fn as a single atomic, isolated transaction against
// store and returns its result (spec §4.6). fn is invoked at least
// once; on Conflict it is re-invoked against a fresh Transaction
// Context until it commits or the retry ceiling is reached, in which
// case Atomically returns a zero T and a *MaxRetriesExceededError.
//
// If fn returns a non-nil error, the transaction aborts without
// committing and without retrying; the error is propagated verbatim
// (spec §4.6 step 3, "UserError").
//
// Atomically is a free function, not a Store method, because Go does
// not permit generic methods.
//
// Re-entrance: if ctx carries the marker of an attempt already running
// on the same *Store, the call runs on a fresh independent handle
// (Store.NewHandle). The marker is set only on the context Atomically
// derives for its own attempts, and a closure receives only *Tx, not
// that context, so a nested call made with the caller's own ctx is not
// detected and runs on store itself. Either way the nested call commits
// independently rather than composing all-or-nothing with the outer
// one: nested transactions are not a first-class construct, and no
// backend lock is held while a closure runs.
func Atomically[T any](ctx context.Context, store *Store, fn func(*Tx) (T, error), opts ...RetryOption) (T, error) {
	var zero T

	effective := store
	if active, ok := ctx.Value(activeHandleKey{}).(*Store); ok && active == store {
		effective = store.NewHandle()
	}
	attemptCtx := context.WithValue(ctx, activeHandleKey{}, effective)

	driver := retry.New(opts...)

	for {
		txCtx := txn.NewContext(attemptCtx, effective.backend)
		tx := &Tx{ctx: txCtx}

		result, err := fn(tx)
		if err != nil {
			effective.log.Debug("atomically: closure returned user error, aborting without retry", "error", err)
			return zero, err
		}

		commitErr := txn.Commit(attemptCtx, effective.backend, txCtx)
		if commitErr == nil {
			effective.log.Debug("atomically: committed", "attempts", driver.Attempts()+1)
			return result, nil
		}

		if txn.IsConflict(commitErr) {
			effective.log.Debug("atomically: conflict, retrying", "attempt", driver.Attempts()+1)
			if retryErr := driver.RecordConflict(); retryErr != nil {
				effective.log.Warn("atomically: max retries exceeded", "attempts", driver.Attempts())
				return zero, retryErr
			}
			continue
		}

		effective.log.Error("atomically: fatal commit error", "error", commitErr)
		return zero, commitErr
	}
}
