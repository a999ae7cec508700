// Package kvstore implements the Versioned KV Store backend contract
// from spec §6: insert/select_value_version/select_version/cas_update,
// plus an exclusive-transaction bracket the commit protocol uses to make
// validation and apply appear atomic (spec §4.3).
//
// Two backends are provided: a SQLite-backed durable one (sqlite.go,
// the reference backend) and an in-memory one (memory.go, the
// conforming alternative spec §6 explicitly allows).
package kvstore

import (
	"context"
	"fmt"

	"github.com/tvarstm/stm/internal/jsonval"
)

// AlreadyExistsError is returned by Insert when id is already present.
type AlreadyExistsError struct {
	ID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("kvstore: tvar %q already exists", e.ID)
}

// BackendError wraps an unexpected backend I/O failure (spec §7).
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("kvstore: %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Session is the set of operations available inside an exclusive
// bracket (spec §4.3 step 1: "Acquire the Store write lock"). All
// mutation during commit happens through a Session so validation and
// apply are linearizable with respect to other commits.
type Session interface {
	SelectVersion(ctx context.Context, id string) (version int64, ok bool, err error)
	SelectValueVersion(ctx context.Context, id string) (value jsonval.Value, version int64, ok bool, err error)
	// CASUpdate updates value and bumps version by exactly one, but only
	// if the record's current version equals expectedVersion. Returns
	// updated=false (not an error) when the CAS loses the race or the id
	// does not exist; the caller distinguishes "lost the race" from
	// "never existed" via a prior SelectVersion in the same session.
	CASUpdate(ctx context.Context, id string, newValue jsonval.Value, expectedVersion int64) (updated bool, err error)
}

// Backend is the Versioned KV Store contract (spec §6). Insert and the
// plain (non-exclusive) selects are used outside of a transaction attempt
// (NewTVar, point reads while building a transaction's read set);
// WithExclusive brackets the commit protocol's validate+apply phase.
type Backend interface {
	Session

	// Insert creates a new record at version 0. Returns
	// *AlreadyExistsError if id is already present.
	Insert(ctx context.Context, id string, value jsonval.Value) error

	// ListIDs returns every TVar id currently stored, in a deterministic
	// order. Used by inspection tooling (cmd/stmctl); never by the
	// transaction/commit path.
	ListIDs(ctx context.Context) ([]string, error)

	// WithExclusive runs fn under the store's single write lock (or an
	// IMMEDIATE-style exclusive backend transaction). If fn returns an
	// error the bracket rolls back and propagates it unchanged; otherwise
	// the bracket commits. This is the only place concurrent commits
	// contend with each other (spec §4.3, §5).
	WithExclusive(ctx context.Context, fn func(Session) error) error

	// Close releases any resources held by the backend (file handles,
	// connections). Safe to call once per Open.
	Close() error
}
