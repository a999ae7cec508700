// Package stm implements a Software Transactional Memory engine over a
// collection of named, JSON-valued transactional variables (TVars).
// Client code composes read/write sequences against TVars inside a
// closure passed to Atomically; the engine executes the closure
// atomically, detects conflicts with concurrent transactions via
// optimistic concurrency control, and retries transparently until the
// closure commits or the retry ceiling is reached.
package stm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tvarstm/stm/internal/jsonval"
	"github.com/tvarstm/stm/internal/kvstore"
)

// Value is a TVar's JSON-document value. It is a sealed sum type (see
// internal/jsonval): Null, Bool, Number, String, Array, Object are its
// only variants.
type Value = jsonval.Value

// NewValue converts a plain Go value (bool, string, a number type, nil,
// []any, map[string]any, or an already-built Value) into a Value, for
// passing to NewTVar/WriteTVar/UpdateTVarPath.
func NewValue(v any) (Value, error) { return jsonval.FromGo(v) }

// ToGo converts a Value back into plain Go types for inspection or
// encoding/json consumption.
func ToGo(v Value) any { return jsonval.ToGo(v) }

// Error kinds surfaced to callers (spec §7). These are aliases onto the
// concrete types returned by the internal packages that detect them, so
// errors.As(&stm.NotFoundError{}) works regardless of which layer
// raised the error.
type (
	// AlreadyExistsError is returned by NewTVar when id already exists.
	AlreadyExistsError = kvstore.AlreadyExistsError
	// BackendError wraps an unexpected backend I/O failure.
	BackendError = kvstore.BackendError
)

// BackendKind selects the Versioned KV Store implementation backing a
// Store (spec §6).
type BackendKind int

const (
	// Ephemeral uses an in-memory map (internal/kvstore.MemoryBackend).
	// State does not survive process exit.
	Ephemeral BackendKind = iota
	// Persistent uses a SQLite-backed store at Options.Location.
	Persistent
)

// Options configures Store.Open (spec §6's `{ backend, location?,
// handle_id? }`).
type Options struct {
	Backend BackendKind

	// Location is the SQLite file path. Required when Backend is
	// Persistent; ignored for Ephemeral.
	Location string

	// HandleID, when non-zero, causes Ephemeral stores opened with the
	// same HandleID to share the same underlying in-memory TVar set
	// instead of each getting an isolated one. Persistent stores
	// already share state through the file at Location and ignore
	// HandleID.
	HandleID int

	// Logger receives structured diagnostics from the commit protocol
	// and retry driver. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store is a handle onto a set of TVars. Handles obtained from the same
// Store.NewHandle call, or Store.Open calls sharing a HandleID, observe
// the same underlying TVar set (spec §5, §6).
type Store struct {
	backend kvstore.Backend
	log     *slog.Logger
}

var ephemeralHandles = newHandleRegistry()

// Open creates or connects to a Store per opts.
func Open(opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	switch opts.Backend {
	case Persistent:
		if opts.Location == "" {
			return nil, fmt.Errorf("stm: persistent backend requires Location")
		}
		backend, err := kvstore.OpenSQLite(opts.Location)
		if err != nil {
			return nil, err
		}
		return &Store{backend: backend, log: log}, nil

	default:
		if opts.HandleID != 0 {
			return &Store{backend: ephemeralHandles.get(opts.HandleID), log: log}, nil
		}
		return &Store{backend: kvstore.NewMemoryBackend(), log: log}, nil
	}
}

// NewHandle returns an independent Store sharing s's underlying TVar
// set. Use one handle per goroutine when callers would rather not share
// a single *Store, or keep one shared handle — both are valid since
// every Backend implementation internally synchronizes.
func (s *Store) NewHandle() *Store {
	return &Store{backend: s.backend, log: s.log}
}

// Close releases resources held by the store's backend (e.g. the
// SQLite connection). Safe to call once; handles sharing a backend via
// NewHandle should only be closed through one of them.
func (s *Store) Close() error {
	return s.backend.Close()
}

// NewTVar creates a TVar record with the given id at version 0
// (spec §4.1). Fails with *AlreadyExistsError if id already exists.
func (s *Store) NewTVar(ctx context.Context, id string, initial any) error {
	value, err := jsonval.FromGo(initial)
	if err != nil {
		return fmt.Errorf("stm: NewTVar(%q): %w", id, err)
	}

	if err := s.backend.Insert(ctx, id, value); err != nil {
		var exists *kvstore.AlreadyExistsError
		if errors.As(err, &exists) {
			s.log.Debug("new_tvar rejected: already exists", "id", id)
			return err
		}
		return err
	}
	s.log.Debug("new_tvar created", "id", id)
	return nil
}

// ListTVars returns every TVar id currently in the store, in a
// deterministic order. Intended for inspection tooling (cmd/stmctl); it
// reads outside of any transaction and is not part of the Transaction
// Context API.
func (s *Store) ListTVars(ctx context.Context) ([]string, error) {
	return s.backend.ListIDs(ctx)
}
