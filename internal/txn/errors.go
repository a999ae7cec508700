package txn

import (
	"errors"
	"fmt"
)

// NotFoundError is raised by a read or write of an id absent from the
// Store (spec §7). It is fatal to the transaction attempt; the retry
// driver does not retry it.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("stm: tvar %q not found", e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ConflictError signals that validation or CAS application lost the
// race to a concurrent commit (spec §4.3). It is the only outcome the
// retry driver acts on by re-running the closure; it never escapes
// atomically directly, only as the cause of MaxRetriesExceeded.
type ConflictError struct {
	// ID names the record whose version check or CAS update failed.
	// Commit always sets it; Error falls back to a generic message when
	// it is empty.
	ID string
}

func (e *ConflictError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("stm: conflict on tvar %q", e.ID)
	}
	return "stm: conflict"
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// MissingTVarError is raised when the write set names an id that no
// longer exists in the Store at apply time (spec §4.3 state machine:
// Applying -> Aborted on missing id in write). This is fatal, not a
// conflict: a TVar cannot spontaneously disappear under this spec, so
// it implies a logic error in the caller.
type MissingTVarError struct {
	ID string
}

func (e *MissingTVarError) Error() string {
	return fmt.Sprintf("stm: missing tvar %q during commit", e.ID)
}

// IsMissingTVar reports whether err is (or wraps) a MissingTVarError.
func IsMissingTVar(err error) bool {
	var m *MissingTVarError
	return errors.As(err, &m)
}
