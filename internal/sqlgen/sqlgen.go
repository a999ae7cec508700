// Package sqlgen builds the small, fixed set of parameterized SQL
// statements the SQLite-backed Versioned KV Store needs (spec §6's
// backend contract: insert, select_value_version, select_version,
// cas_update). It is a deliberately narrow cousin of the teacher's
// querysql.SQLCompiler: that package compiles an open-ended predicate IR
// into SQL for arbitrary sync-rule queries, which has no analogue here —
// this package keeps its two guiding rules (values are ALWAYS
// parameterized, never interpolated; listing queries ALWAYS carry a
// deterministic ORDER BY) without the general query-IR machinery, since
// every statement this engine ever issues is known at compile time.
package sqlgen

const tvarTable = "tvars"

// Insert returns the statement that creates a TVar record at version 0.
// Fails (via the table's PRIMARY KEY constraint) if id already exists.
func Insert() string {
	return "INSERT INTO " + tvarTable + " (id, value, version) VALUES (?, ?, 0)"
}

// SelectValueVersion returns the statement fetching a record's current
// value and version.
func SelectValueVersion() string {
	return "SELECT value, version FROM " + tvarTable + " WHERE id = ?"
}

// SelectVersion returns the statement fetching only a record's version.
func SelectVersion() string {
	return "SELECT version FROM " + tvarTable + " WHERE id = ?"
}

// CASUpdate returns the compare-and-swap statement: the version bumps by
// exactly one and the row is touched only if expected_version matches.
// Callers must check RowsAffected(); zero means a concurrent commit won
// the race (spec §4.3 step 3).
func CASUpdate() string {
	return "UPDATE " + tvarTable + " SET value = ?, version = version + 1 WHERE id = ? AND version = ?"
}

// ListIDs returns the statement enumerating every TVar id, with a
// deterministic ORDER BY so debug/inspection tooling (cmd/stmctl) never
// depends on SQLite's incidental row order.
func ListIDs() string {
	return "SELECT id, version FROM " + tvarTable + " ORDER BY id ASC"
}

// Schema is the table definition applied on Open. A single table with a
// JSON-typed value column and an integer version column is the entire
// durable state of the store.
const Schema = `
CREATE TABLE IF NOT EXISTS ` + tvarTable + ` (
	id      TEXT PRIMARY KEY,
	value   TEXT NOT NULL,
	version INTEGER NOT NULL
);
`
