//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"strings"
	"unicode"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; search falls back to LIKE over the notes table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ Note) error {
	// Searchable text already lives in the notes table.
	return nil
}

func ftsDelete(_ *sql.Tx, _ int64) error { return nil }

func ftsRebuild(_ *sql.Tx) error { return nil }

func ftsCount(ctx context.Context, conn *sql.DB) (int64, error) {
	// Without a separate index table the notes table is the index;
	// congruence holds by construction.
	var n int64
	err := conn.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&n)
	if err != nil {
		return 0, wrap("fts: count", err)
	}
	return n, nil
}

// searchToken is one term of a fallback query. Only the final token of
// the query may be a prefix term (trailing *); every other token matches
// whole words, mirroring how the FTS5 build treats quoted tokens.
type searchToken struct {
	text   string
	prefix bool
}

func fallbackTokens(query string) []searchToken {
	fields := strings.Fields(query)
	var toks []searchToken
	for i, f := range fields {
		prefix := i == len(fields)-1 && strings.HasSuffix(f, "*")
		f = strings.ToLower(strings.Trim(f, "*"))
		if f == "" {
			continue
		}
		toks = append(toks, searchToken{text: f, prefix: prefix})
	}
	return toks
}

// splitWords breaks text into lowercase alphanumeric runs, approximating
// the unicode61 tokenizer.
func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matchesTokens(words []string, toks []searchToken) bool {
	for _, tok := range toks {
		found := false
		for _, w := range words {
			if w == tok.text || (tok.prefix && strings.HasPrefix(w, tok.text)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled
// in). A cheap substring LIKE narrows the candidate rows, then each row is
// verified token by token: non-final tokens must match whole words, and
// only a trailing * grants prefix matching, the same semantics the FTS5
// build enforces. Ordering is updated_at descending. Advanced operator
// mode is not supported here and the flag is ignored.
func (db *DB) Search(ctx context.Context, query string, limit int, _ bool) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	toks := fallbackTokens(query)
	if len(toks) == 0 {
		return nil, nil
	}

	var args []any
	var where []string
	for _, tok := range toks {
		where = append(where, `(title LIKE ? OR body LIKE ? OR tags LIKE ?)`)
		like := "%" + tok.text + "%"
		args = append(args, like, like, like)
	}
	q := `SELECT id, title, body, tags FROM notes WHERE ` +
		strings.Join(where, " AND ") +
		` ORDER BY updated_at DESC, id DESC`

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap("search", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var (
			h          SearchHit
			body, tags string
		)
		if err := rows.Scan(&h.NoteID, &h.Title, &body, &tags); err != nil {
			return nil, wrap("search: scan", err)
		}
		if !matchesTokens(splitWords(h.Title+" "+body+" "+tags), toks) {
			continue
		}
		if len(body) > 200 {
			body = body[:200]
		}
		h.Snippet = body
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("search: rows", err)
	}
	return out, nil
}
