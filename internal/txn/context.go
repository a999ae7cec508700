// Package txn implements the Transaction Context and Commit Protocol
// (spec §4.2, §4.3): per-attempt read/write tracking with read-your-
// writes semantics, JSON-path projection, and the validate-then-apply
// commit algorithm built on the Versioned KV Store contract.
package txn

import (
	"context"

	"github.com/tvarstm/stm/internal/jsonval"
	"github.com/tvarstm/stm/internal/kvstore"
	"github.com/tvarstm/stm/internal/path"
)

// readEntry is one record in the Context's read set: the value and
// version observed at first access, plus the paths projected from it
// (informational only — validation is whole-record, spec §4.3).
type readEntry struct {
	value         jsonval.Value
	version       int64
	accessedPaths []string
}

// writePlan is one record in the Context's write set: either a full
// replacement or an ordered sequence of path patches. A FullReplace
// always supersedes any prior plan for the same id (spec §3).
type writePlan struct {
	fullReplace    jsonval.Value
	hasFullReplace bool
	patches        []path.PathValue
}

// Context is the Transaction Context: it lives for exactly one attempt
// of atomically's user closure and is discarded on commit or abort. It
// is not safe for concurrent use — spec §5 requires it be owned by a
// single thread for its lifetime.
type Context struct {
	ctx     context.Context
	backend kvstore.Backend

	reads  map[string]*readEntry
	writes map[string]*writePlan

	// writeOrder preserves first-touch order of ids in the write set so
	// commit's apply phase runs in a stable (if arbitrary) order, which
	// keeps golden-output tests deterministic.
	writeOrder []string
}

// NewContext creates a fresh Transaction Context bound to backend. The
// retry driver calls this once per attempt (spec §4.6 step 2).
func NewContext(ctx context.Context, backend kvstore.Backend) *Context {
	return &Context{
		ctx:     ctx,
		backend: backend,
		reads:   make(map[string]*readEntry),
		writes:  make(map[string]*writePlan),
	}
}

// ReadTVar implements read_tvar (spec §4.2).
func (c *Context) ReadTVar(id string) (jsonval.Value, error) {
	if wp, ok := c.writes[id]; ok && wp.hasFullReplace {
		if _, cached := c.reads[id]; !cached {
			if err := c.cacheCurrentVersion(id); err != nil {
				return nil, err
			}
		}
		return wp.fullReplace, nil
	}

	base, err := c.baseValue(id)
	if err != nil {
		return nil, err
	}
	if wp, ok := c.writes[id]; ok && len(wp.patches) > 0 {
		return path.ApplyOrdered(base, wp.patches), nil
	}
	return base, nil
}

// WriteTVar implements write_tvar (spec §4.2): installs a FullReplace,
// overwriting any prior plan. It does not touch the read set.
func (c *Context) WriteTVar(id string, value jsonval.Value) {
	wp := c.writePlanFor(id)
	wp.fullReplace = value
	wp.hasFullReplace = true
	wp.patches = nil
}

// ReadTVarPath implements read_tvar_path (spec §4.2).
func (c *Context) ReadTVarPath(id string, rawPath string) (jsonval.Value, error) {
	p, err := path.Normalize(rawPath)
	if err != nil {
		return nil, err
	}

	if wp, ok := c.writes[id]; ok && wp.hasFullReplace {
		return path.Get(wp.fullReplace, p)
	}

	base, err := c.baseValue(id)
	if err != nil {
		return nil, err
	}
	entry := c.reads[id]
	entry.accessedPaths = append(entry.accessedPaths, p.String())

	if wp, ok := c.writes[id]; ok && len(wp.patches) > 0 {
		base = path.ApplyOrdered(base, wp.patches)
	}
	return path.Get(base, p)
}

// UpdateTVarPath implements update_tvar_path (spec §4.2). It does not
// require a prior read of id.
func (c *Context) UpdateTVarPath(id string, rawPath string, value jsonval.Value) error {
	p, err := path.Normalize(rawPath)
	if err != nil {
		return err
	}

	wp := c.writePlanFor(id)
	if wp.hasFullReplace {
		wp.fullReplace = path.Set(wp.fullReplace, p, value)
		return nil
	}
	wp.patches = append(wp.patches, path.PathValue{Path: p, Value: value})
	return nil
}

// writePlanFor returns the write-set entry for id, creating (and
// recording it in writeOrder) on first touch.
func (c *Context) writePlanFor(id string) *writePlan {
	wp, ok := c.writes[id]
	if !ok {
		wp = &writePlan{}
		c.writes[id] = wp
		c.writeOrder = append(c.writeOrder, id)
	}
	return wp
}

// baseValue returns the committed value a patch-only write plan (or a
// plain read) should be materialized against: the cached read-set entry
// if id has already been touched this attempt, otherwise a fresh
// backend fetch via snapshotInto. Callers combine the result with any
// pending patches themselves — baseValue never applies them, since the
// read cache must hold the unpatched committed value for commit-time
// validation (spec §4.3 step 2).
func (c *Context) baseValue(id string) (jsonval.Value, error) {
	if entry, ok := c.reads[id]; ok {
		return entry.value, nil
	}
	return c.snapshotInto(id)
}

// snapshotInto fetches id's current committed (value, version) from
// the backend and inserts it into the read set. Used by baseValue's
// cold path; callers apply any pending patches on top of the returned
// value themselves to materialize read-your-writes (spec §4.2's
// read-your-writes-completeness note).
func (c *Context) snapshotInto(id string) (jsonval.Value, error) {
	value, version, ok, err := c.backend.SelectValueVersion(c.ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	c.reads[id] = &readEntry{value: value, version: version}
	return value, nil
}

// cacheCurrentVersion records id's current backend version in the read
// set without overriding the in-memory write-set value that read_tvar
// is about to return. This implements spec §4.2 rule 1: "If not yet in
// the read set, also record (v, current_version_from_store) ... so the
// version is validated at commit."
func (c *Context) cacheCurrentVersion(id string) error {
	_, version, ok, err := c.backend.SelectValueVersion(c.ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{ID: id}
	}
	wp := c.writes[id]
	c.reads[id] = &readEntry{value: wp.fullReplace, version: version}
	return nil
}
