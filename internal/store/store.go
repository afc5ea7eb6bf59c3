// Package store provides the transactional SQLite note store together with
// its derived full-text index. Both live behind one storage boundary:
// every mutating entry point performs the matching index mutation inside
// the same transaction, so no caller can drive them out of congruence.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/noteforge/internal/apperr"
)

// schemaVersion is stored in schema_meta for forward migration.
const schemaVersion = 1

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	CHECK (updated_at >= created_at)
);

CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at DESC);

CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);
`

// DB wraps a sql.DB with note-store operations. Writers serialize on
// writeMu; readers run against independent WAL snapshots and never block.
type DB struct {
	conn    *sql.DB
	writeMu sync.Mutex
}

// Open opens (or creates) the SQLite database and applies the schema.
// WAL journaling keeps readers non-blocking against the single writer.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	if err := ensureSchemaVersion(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

// ensureSchemaVersion stamps a fresh database and rejects databases
// written by a newer release.
func ensureSchemaVersion(conn *sql.DB) error {
	var v int
	err := conn.QueryRow(`SELECT version FROM schema_meta LIMIT 1`).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := conn.Exec(`INSERT INTO schema_meta (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("store: stamp schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("store: read schema version: %w", err)
	case v > schemaVersion:
		return fmt.Errorf("store: database schema version %d is newer than supported %d", v, schemaVersion)
	default:
		return nil
	}
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// wrap classifies a backend error into the store taxonomy.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := apperr.IOFailure
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			kind = apperr.LockTimeout
		case sqlite3.ErrConstraint:
			kind = apperr.ConstraintViolation
		}
	}
	return &apperr.StoreError{Kind: kind, Op: op, Err: err}
}
