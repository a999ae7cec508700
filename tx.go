package stm

import (
	"fmt"

	"github.com/tvarstm/stm/internal/jsonval"
	"github.com/tvarstm/stm/internal/path"
	"github.com/tvarstm/stm/internal/txn"
)

// Tx is the set of operations visible inside an Atomically closure
// (spec §4.2, §6). It is owned exclusively by the single execution of
// the closure on one attempt and must not be retained or used after the
// closure returns.
type Tx struct {
	ctx *txn.Context
}

// ReadTVar implements read_tvar: returns the TVar's value, observing
// read stability and read-your-writes within this attempt. Returns
// *NotFoundError if id does not exist.
func (tx *Tx) ReadTVar(id string) (Value, error) {
	return tx.ctx.ReadTVar(id)
}

// WriteTVar implements write_tvar: installs a full replacement for id,
// overwriting any prior write plan for it in this attempt.
func (tx *Tx) WriteTVar(id string, value any) error {
	v, err := jsonval.FromGo(value)
	if err != nil {
		return fmt.Errorf("stm: WriteTVar(%q): %w", id, err)
	}
	tx.ctx.WriteTVar(id, v)
	return nil
}

// ReadTVarPath implements read_tvar_path: projects the value at path
// out of id's document. rawPath accepts any form path.Normalize
// accepts (dot keys, bracketed indices, optional "$." prefix). Returns
// *path.AbsentError if the path traverses a missing key or out-of-range
// index, or *NotFoundError if id itself does not exist.
func (tx *Tx) ReadTVarPath(id string, rawPath string) (Value, error) {
	return tx.ctx.ReadTVarPath(id, rawPath)
}

// UpdateTVarPath implements update_tvar_path: patches id's document at
// path with value. Does not require a prior read of id. Missing
// intermediate objects along path are created (spec §4.5); out-of-
// range array indices grow the array.
func (tx *Tx) UpdateTVarPath(id string, rawPath string, value any) error {
	v, err := jsonval.FromGo(value)
	if err != nil {
		return fmt.Errorf("stm: UpdateTVarPath(%q, %q): %w", id, rawPath, err)
	}
	return tx.ctx.UpdateTVarPath(id, rawPath, v)
}

// PathAbsentError is returned by ReadTVarPath when path traverses a
// missing key or out-of-range index (spec §4.2, §7). It is a type
// alias onto internal/path's error so errors.As matches regardless of
// which layer constructed it.
type PathAbsentError = path.AbsentError

// NotFoundError is returned when a read or write names an id absent
// from the Store (spec §7). Fatal to the attempt; never retried.
type NotFoundError = txn.NotFoundError

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool { return txn.IsNotFound(err) }

// IsMissingTVar reports whether err is (or wraps) the fatal
// MissingTVarError the commit protocol raises when the write set names
// an id the backend no longer has.
func IsMissingTVar(err error) bool { return txn.IsMissingTVar(err) }

// MissingTVarError is raised when the write set names an id that
// vanished from the backend between read and commit (spec §4.3).
type MissingTVarError = txn.MissingTVarError
