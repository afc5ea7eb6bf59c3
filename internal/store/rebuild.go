package store

import (
	"context"

	"github.com/starford/noteforge/internal/apperr"
)

// Rebuild reindexes every note from scratch inside one transaction, then
// verifies congruence. A post-rebuild row-count mismatch is reported as
// apperr.IndexCorruptionError — a recoverable condition the caller should
// retry, never silently repaired.
func (db *DB) Rebuild(ctx context.Context) error {
	db.writeMu.Lock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		db.writeMu.Unlock()
		return wrap("rebuild: begin tx", err)
	}
	if err := ftsRebuild(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		db.writeMu.Unlock()
		return err
	}
	if err := tx.Commit(); err != nil {
		db.writeMu.Unlock()
		return wrap("rebuild: commit", err)
	}
	db.writeMu.Unlock()

	notes, index, err := db.Counts(ctx)
	if err != nil {
		return err
	}
	if notes != index {
		return &apperr.IndexCorruptionError{NoteCount: notes, IndexCount: index}
	}
	return nil
}

// Counts returns the live note count and the index row count. Congruence
// means the two are always equal after any committed mutation.
func (db *DB) Counts(ctx context.Context) (notes, indexRows int64, err error) {
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&notes); err != nil {
		return 0, 0, wrap("counts: notes", err)
	}
	indexRows, err = ftsCount(ctx, db.conn)
	if err != nil {
		return 0, 0, err
	}
	return notes, indexRows, nil
}
