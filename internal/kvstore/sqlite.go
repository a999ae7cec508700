package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tvarstm/stm/internal/jsonval"
	"github.com/tvarstm/stm/internal/sqlgen"
)

// SQLiteBackend is the reference Versioned KV Store backend (spec §6):
// a SQLite table with a JSON-valued text column and an integer version
// column, CAS-updated under an IMMEDIATE-locked transaction.
//
// Like the teacher's internal/store.Store, SQLite only supports one
// writer at a time, so the connection pool is capped at a single
// connection: every operation (even plain selects) is naturally
// serialized through it, which is exactly the "single global write lock"
// spec §4.1 asks for.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) a SQLite-backed store at
// path. Pass ":memory:" for an ephemeral SQLite-backed store that still
// exercises the real SQL code path (useful for tests).
func OpenSQLite(path string) (*SQLiteBackend, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_txlock=immediate", path)
	} else {
		dsn = "file::memory:?mode=memory&cache=shared&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: connect sqlite: %w", err)
	}

	// SQLite supports exactly one writer; limiting the pool to one
	// connection makes every statement (not just writes) serialize
	// through it, which gives us the single global write lock spec §4.1
	// requires without any additional in-process locking.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqlgen.Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: apply schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("kvstore: pragma %q: %w", p, err)
		}
	}
	return nil
}

// Close implements Backend.
func (s *SQLiteBackend) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting the select/
// CAS logic be written once and reused both outside and inside an
// exclusive bracket.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert implements Backend.
func (s *SQLiteBackend) Insert(ctx context.Context, id string, value jsonval.Value) error {
	raw, err := jsonval.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore: marshal %q: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx, sqlgen.Insert(), id, string(raw))
	if err != nil {
		if isUniqueViolation(err) {
			return &AlreadyExistsError{ID: id}
		}
		return &BackendError{Op: "insert", Err: err}
	}
	return nil
}

// ListIDs implements Backend.
func (s *SQLiteBackend) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, sqlgen.ListIDs())
	if err != nil {
		return nil, &BackendError{Op: "list_ids", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var version int64
		if err := rows.Scan(&id, &version); err != nil {
			return nil, &BackendError{Op: "list_ids scan", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &BackendError{Op: "list_ids rows", Err: err}
	}
	return ids, nil
}

// SelectVersion implements Session via the top-level connection.
func (s *SQLiteBackend) SelectVersion(ctx context.Context, id string) (int64, bool, error) {
	return selectVersion(ctx, s.db, id)
}

// SelectValueVersion implements Session via the top-level connection.
func (s *SQLiteBackend) SelectValueVersion(ctx context.Context, id string) (jsonval.Value, int64, bool, error) {
	return selectValueVersion(ctx, s.db, id)
}

// CASUpdate implements Session via the top-level connection. Used only
// outside of WithExclusive brackets (it is not itself atomic with a
// prior read unless called from within one); the commit protocol always
// calls it through the Session passed to WithExclusive.
func (s *SQLiteBackend) CASUpdate(ctx context.Context, id string, newValue jsonval.Value, expectedVersion int64) (bool, error) {
	return casUpdate(ctx, s.db, id, newValue, expectedVersion)
}

// WithExclusive implements Backend by running fn inside a SQLite
// transaction opened with _txlock=immediate, giving it exclusive-writer
// semantics for the duration of fn (spec §4.3 step 1).
func (s *SQLiteBackend) WithExclusive(ctx context.Context, fn func(Session) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &BackendError{Op: "begin exclusive", Err: err}
	}

	if err := fn(&sqliteSession{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("kvstore: rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return &BackendError{Op: "commit exclusive", Err: err}
	}
	return nil
}

// sqliteSession implements Session against a live *sql.Tx.
type sqliteSession struct {
	tx *sql.Tx
}

func (s *sqliteSession) SelectVersion(ctx context.Context, id string) (int64, bool, error) {
	return selectVersion(ctx, s.tx, id)
}

func (s *sqliteSession) SelectValueVersion(ctx context.Context, id string) (jsonval.Value, int64, bool, error) {
	return selectValueVersion(ctx, s.tx, id)
}

func (s *sqliteSession) CASUpdate(ctx context.Context, id string, newValue jsonval.Value, expectedVersion int64) (bool, error) {
	return casUpdate(ctx, s.tx, id, newValue, expectedVersion)
}

func selectVersion(ctx context.Context, q querier, id string) (int64, bool, error) {
	var version int64
	err := q.QueryRowContext(ctx, sqlgen.SelectVersion(), id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &BackendError{Op: "select_version", Err: err}
	}
	return version, true, nil
}

func selectValueVersion(ctx context.Context, q querier, id string) (jsonval.Value, int64, bool, error) {
	var raw string
	var version int64
	err := q.QueryRowContext(ctx, sqlgen.SelectValueVersion(), id).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, &BackendError{Op: "select_value_version", Err: err}
	}
	value, err := jsonval.Parse([]byte(raw))
	if err != nil {
		return nil, 0, false, &BackendError{Op: "decode value", Err: err}
	}
	return value, version, true, nil
}

func casUpdate(ctx context.Context, q querier, id string, newValue jsonval.Value, expectedVersion int64) (bool, error) {
	raw, err := jsonval.Marshal(newValue)
	if err != nil {
		return false, fmt.Errorf("kvstore: marshal %q: %w", id, err)
	}

	result, err := q.ExecContext(ctx, sqlgen.CASUpdate(), string(raw), id, expectedVersion)
	if err != nil {
		return false, &BackendError{Op: "cas_update", Err: err}
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, &BackendError{Op: "cas_update rows affected", Err: err}
	}
	return n == 1, nil
}

func isUniqueViolation(err error) bool {
	// go-sqlite3 reports constraint violations with this substring; we
	// avoid importing the driver's error type directly so this package
	// only depends on database/sql at the call sites above.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
