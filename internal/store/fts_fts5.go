//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

// ftsUpsert replaces the index row for a note. Delete-then-insert handles
// inserts and field-level updates uniformly. The FTS rowid is the note id.
func ftsUpsert(tx *sql.Tx, n Note) error {
	if err := ftsDelete(tx, n.ID); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO notes_fts (rowid, title, body, tags) VALUES (?, ?, ?, ?)`,
		n.ID, n.Title, n.Body, strings.Join(n.Tags, " "))
	return wrap("fts: insert", err)
}

func ftsDelete(tx *sql.Tx, id int64) error {
	_, err := tx.Exec(`DELETE FROM notes_fts WHERE rowid = ?`, id)
	return wrap("fts: delete", err)
}

// ftsRebuild wipes and repopulates the index from the notes table inside
// the caller's transaction.
func ftsRebuild(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM notes_fts`); err != nil {
		return wrap("fts: rebuild clear", err)
	}
	_, err := tx.Exec(`
		INSERT INTO notes_fts (rowid, title, body, tags)
		SELECT id, title, body, replace(tags, ',', ' ') FROM notes
	`)
	return wrap("fts: rebuild insert", err)
}

func ftsCount(ctx context.Context, conn *sql.DB) (int64, error) {
	var n int64
	err := conn.QueryRowContext(ctx, `SELECT count(*) FROM notes_fts`).Scan(&n)
	if err != nil {
		return 0, wrap("fts: count", err)
	}
	return n, nil
}

// Search performs an FTS5 full-text search. The query is sanitized unless
// advanced mode asks for raw operator access. Results are ranked by match
// quality (bm25) with updated_at descending as tie-break, read from a
// single consistent snapshot.
func (db *DB) Search(ctx context.Context, query string, limit int, advanced bool) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	match := query
	if !advanced {
		match = SanitizeQuery(query)
	}
	if match == "" {
		return nil, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT n.id,
		       bm25(notes_fts),
		       n.title,
		       snippet(notes_fts, 1, '<b>', '</b>', '...', 64)
		FROM notes_fts
		JOIN notes n ON n.id = notes_fts.rowid
		WHERE notes_fts MATCH ?
		ORDER BY rank, n.updated_at DESC
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, wrap("search", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.NoteID, &h.Rank, &h.Title, &h.Snippet); err != nil {
			return nil, wrap("search: scan", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("search: rows", err)
	}
	return out, nil
}
