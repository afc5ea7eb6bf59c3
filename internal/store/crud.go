package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/noteforge/internal/apperr"
	"github.com/starford/noteforge/internal/tags"
	"github.com/starford/noteforge/internal/timeutil"
)

// Create inserts a new note and its index entry in one transaction and
// returns the note with its assigned id.
func (db *DB) Create(ctx context.Context, d Draft) (Note, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	n := Note{
		Title: d.Title,
		Body:  d.Body,
		Tags:  tags.Canonical(d.Tags),
	}
	switch {
	case !d.CreatedAt.IsZero():
		n.CreatedAt = timeutil.Normalize(d.CreatedAt)
	case !d.UpdatedAt.IsZero():
		// A draft carrying only a modification time (an import entry
		// without created_at) keeps it as the creation time too.
		n.CreatedAt = timeutil.Normalize(d.UpdatedAt)
	default:
		n.CreatedAt = timeutil.Now()
	}
	if !d.UpdatedAt.IsZero() {
		n.UpdatedAt = timeutil.Normalize(d.UpdatedAt)
	} else {
		n.UpdatedAt = n.CreatedAt
	}
	if n.UpdatedAt.Before(n.CreatedAt) {
		n.UpdatedAt = n.CreatedAt
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Note{}, wrap("create: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.ExecContext(ctx, `
		INSERT INTO notes (title, body, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, n.Title, n.Body, tags.Join(n.Tags), n.CreatedAt.UnixNano(), n.UpdatedAt.UnixNano())
	if err != nil {
		return Note{}, wrap("create: insert note", err)
	}
	n.ID, err = res.LastInsertId()
	if err != nil {
		return Note{}, wrap("create: last insert id", err)
	}

	if err := ftsUpsert(tx, n); err != nil {
		return Note{}, err
	}
	if err := tx.Commit(); err != nil {
		return Note{}, wrap("create: commit", err)
	}
	return n, nil
}

// Update applies a partial mutation and re-indexes the note in the same
// transaction. Returns apperr.ErrNotFound if id is absent.
func (db *DB) Update(ctx context.Context, id int64, f Fields) (Note, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Note{}, wrap("update: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := getNote(ctx, tx, id)
	if err != nil {
		return Note{}, err
	}

	if f.Title != nil {
		n.Title = *f.Title
	}
	if f.Body != nil {
		n.Body = *f.Body
	}
	if f.Tags != nil {
		n.Tags = tags.Canonical(f.Tags)
	}
	if f.UpdatedAt != nil {
		n.UpdatedAt = timeutil.Normalize(*f.UpdatedAt)
	} else {
		n.UpdatedAt = timeutil.Monotonic(n.UpdatedAt, timeutil.Now())
	}
	if n.UpdatedAt.Before(n.CreatedAt) {
		n.UpdatedAt = n.CreatedAt
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE notes SET title = ?, body = ?, tags = ?, updated_at = ?
		WHERE id = ?
	`, n.Title, n.Body, tags.Join(n.Tags), n.UpdatedAt.UnixNano(), id)
	if err != nil {
		return Note{}, wrap("update: update note", err)
	}

	if err := ftsUpsert(tx, n); err != nil {
		return Note{}, err
	}
	if err := tx.Commit(); err != nil {
		return Note{}, wrap("update: commit", err)
	}
	return n, nil
}

// Delete removes a note and its index entry. Deleting an absent id is a
// no-op reported as apperr.ErrNotFound so callers stay aware.
func (db *DB) Delete(ctx context.Context, id int64) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return wrap("delete: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return wrap("delete: delete note", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrap("delete: rows affected", err)
	}
	if err := tx.Commit(); err != nil {
		return wrap("delete: commit", err)
	}
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Get returns a single note by id, or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, id int64) (Note, error) {
	return getNote(ctx, db.conn, id)
}

// Query returns notes matching the filter from one consistent read
// snapshot, ordered by updated_at descending unless overridden.
func (db *DB) Query(ctx context.Context, f Filter) ([]Note, error) {
	q := `SELECT id, title, body, tags, created_at, updated_at FROM notes`
	var args []any
	var where []string

	if f.Tag != "" {
		where = append(where, `(',' || tags || ',') LIKE ?`)
		args = append(args, "%,"+f.Tag+",%")
	}
	if f.Match != "" {
		where = append(where, `(title LIKE ? OR body LIKE ?)`)
		like := "%" + f.Match + "%"
		args = append(args, like, like)
	}
	if len(where) > 0 {
		q += " WHERE " + where[0]
		for _, w := range where[1:] {
			q += " AND " + w
		}
	}
	q += " ORDER BY " + orderClause(f.Sort)
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap("query", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, wrap("query: scan", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("query: rows", err)
	}
	return out, nil
}

// orderClause whitelists sort fields; anything unknown falls back to the
// default ordering. id breaks ties deterministically.
func orderClause(sort string) string {
	switch sort {
	case "created_at":
		return "created_at DESC, id DESC"
	case "title":
		return "title COLLATE NOCASE ASC, id DESC"
	default:
		return "updated_at DESC, id DESC"
	}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(r rowScanner) (Note, error) {
	var n Note
	var tagStr string
	var created, updated int64
	if err := r.Scan(&n.ID, &n.Title, &n.Body, &tagStr, &created, &updated); err != nil {
		return Note{}, err
	}
	n.Tags = tags.Split(tagStr)
	n.CreatedAt = time.Unix(0, created).UTC()
	n.UpdatedAt = time.Unix(0, updated).UTC()
	return n, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getNote(ctx context.Context, q querier, id int64) (Note, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, title, body, tags, created_at, updated_at
		FROM notes WHERE id = ?
	`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, fmt.Errorf("note %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return Note{}, wrap("get", err)
	}
	return n, nil
}
