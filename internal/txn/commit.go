package txn

import (
	"context"

	"github.com/tvarstm/stm/internal/jsonval"
	"github.com/tvarstm/stm/internal/kvstore"
	"github.com/tvarstm/stm/internal/path"
)

// Commit runs the Commit Protocol (spec §4.3) for c against backend:
// validate the read set, apply the write set, all inside one exclusive
// bracket so the two phases are linearizable with respect to other
// commits.
//
// Returns nil on Committed. Returns a *ConflictError if validation or
// apply lost a race (the retry driver should re-run the closure with a
// fresh Context). Returns a *MissingTVarError if the write set names an
// id the backend no longer has (fatal, not retried).
func Commit(ctx context.Context, backend kvstore.Backend, c *Context) error {
	if len(c.reads) == 0 && len(c.writes) == 0 {
		return nil
	}

	return backend.WithExclusive(ctx, func(session kvstore.Session) error {
		if err := validateReads(ctx, session, c); err != nil {
			return err
		}
		return applyWrites(ctx, session, c)
	})
}

// validateReads implements spec §4.3 step 2: every observed version
// must still match the backend's current version.
func validateReads(ctx context.Context, session kvstore.Session, c *Context) error {
	for id, entry := range c.reads {
		current, ok, err := session.SelectVersion(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return &MissingTVarError{ID: id}
		}
		if current != entry.version {
			return &ConflictError{ID: id}
		}
	}
	return nil
}

// applyWrites implements spec §4.3 step 3: resolve each write plan to
// an effective value and CAS it in, in writeOrder (a stable, if
// arbitrary, order fixed at first touch).
func applyWrites(ctx context.Context, session kvstore.Session, c *Context) error {
	for _, id := range c.writeOrder {
		wp := c.writes[id]

		newValue, expectedVersion, err := resolveWrite(ctx, session, c, id, wp)
		if err != nil {
			return err
		}

		updated, err := session.CASUpdate(ctx, id, newValue, expectedVersion)
		if err != nil {
			return err
		}
		if !updated {
			return &ConflictError{ID: id}
		}
	}
	return nil
}

// resolveWrite computes the effective new value and the expected
// version to CAS against, for a single write-set entry.
func resolveWrite(ctx context.Context, session kvstore.Session, c *Context, id string, wp *writePlan) (jsonval.Value, int64, error) {
	if entry, ok := c.reads[id]; ok {
		base := entry.value
		expected := entry.version
		if wp.hasFullReplace {
			return wp.fullReplace, expected, nil
		}
		return path.ApplyOrdered(base, wp.patches), expected, nil
	}

	if wp.hasFullReplace {
		// Never read: still need a current version to CAS against.
		_, version, ok, err := session.SelectValueVersion(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, &MissingTVarError{ID: id}
		}
		return wp.fullReplace, version, nil
	}

	// Patch-only plan with no prior read: fetch the current committed
	// value to patch against (spec §4.3 step 3, "Patch(list) -> fetch
	// the current committed value").
	base, version, ok, err := session.SelectValueVersion(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, &MissingTVarError{ID: id}
	}
	return path.ApplyOrdered(base, wp.patches), version, nil
}
