//go:build sqlite_fts5

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/noteforge/internal/apperr"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_PrefixSemantics(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	n := mustCreate(t, db, Draft{Title: "Project Plan", Body: "roadmap for the quarter"})

	hits, err := db.Search(ctx, "proj*", 10, false)
	if err != nil {
		t.Fatalf("Search proj*: %v", err)
	}
	if len(hits) != 1 || hits[0].NoteID != n.ID {
		t.Fatalf("proj* hits = %+v, want note %d", hits, n.ID)
	}

	// Mid-token fragments must not match: prefix is trailing-wildcard only.
	hits, err = db.Search(ctx, "roj", 10, false)
	if err != nil {
		t.Fatalf("Search roj: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("mid-token fragment matched: %+v", hits)
	}
}

func TestFTS5_EarlierTokensMatchWholeWords(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustCreate(t, db, Draft{Title: "Project Plan", Body: "weekly planning"})

	// "pro" as a non-final token gets its star stripped and must match a
	// whole word, which "Project" is not.
	hits, err := db.Search(ctx, "pro* plan", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("non-final prefix token matched: %+v", hits)
	}
}

func TestFTS5_OperatorsAreLiteralByDefault(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	n := mustCreate(t, db, Draft{Title: "Ops", Body: "alpha AND beta"})

	// Sanitized mode treats AND as a literal token, not an operator, and
	// never errors on reserved characters.
	hits, err := db.Search(ctx, `alpha AND beta`, 10, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].NoteID != n.ID {
		t.Errorf("hits = %+v", hits)
	}
	if _, err := db.Search(ctx, `"unbalanced`, 10, false); err != nil {
		t.Errorf("sanitized search errored on reserved chars: %v", err)
	}
}

func TestFTS5_AdvancedMode(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := mustCreate(t, db, Draft{Title: "One", Body: "alpha"})
	mustCreate(t, db, Draft{Title: "Two", Body: "beta"})

	hits, err := db.Search(ctx, `alpha NOT beta`, 10, true)
	if err != nil {
		t.Fatalf("advanced search: %v", err)
	}
	if len(hits) != 1 || hits[0].NoteID != a.ID {
		t.Errorf("hits = %+v, want only note %d", hits, a.ID)
	}
}

func TestFTS5_UpdateReindexes(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	n := mustCreate(t, db, Draft{Title: "Draft", Body: "original content"})

	body := "replacement content"
	if _, err := db.Update(ctx, n.ID, Fields{Body: &body}); err != nil {
		t.Fatal(err)
	}

	hits, _ := db.Search(ctx, "original", 10, false)
	if len(hits) != 0 {
		t.Error("stale index content still matches")
	}
	hits, _ = db.Search(ctx, "replacement", 10, false)
	if len(hits) != 1 {
		t.Errorf("updated content not indexed: %+v", hits)
	}
}

func TestFTS5_DeleteRemovesFromIndex(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	n := mustCreate(t, db, Draft{Title: "Gone", Body: "vanishing text"})
	if err := db.Delete(ctx, n.ID); err != nil {
		t.Fatal(err)
	}
	hits, _ := db.Search(ctx, "vanishing", 10, false)
	if len(hits) != 0 {
		t.Errorf("deleted note still searchable: %+v", hits)
	}
	assertCongruent(t, db)
}

func TestFTS5_TagsAreSearchable(t *testing.T) {
	db := testDB(t)
	n := mustCreate(t, db, Draft{Title: "t", Tags: []string{"quarterly", "finance"}})
	hits, err := db.Search(context.Background(), "quarterly", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].NoteID != n.ID {
		t.Errorf("tag search hits = %+v", hits)
	}
}

func TestFTS5_TieBreakByUpdatedAt(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	older := mustCreate(t, db, Draft{Title: "same words here", Body: ""})
	newer := mustCreate(t, db, Draft{Title: "same words here", Body: ""})
	_ = older

	hits, err := db.Search(ctx, "words", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d", len(hits))
	}
	if hits[0].NoteID != newer.ID {
		t.Errorf("tie-break order = [%d %d], want newest first (%d)", hits[0].NoteID, hits[1].NoteID, newer.ID)
	}
}

func TestFTS5_RebuildRepairsDrift(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	n := mustCreate(t, db, Draft{Title: "Recover", Body: "salvage me"})

	// Simulate corruption: remove the index row behind the store's back.
	if _, err := db.conn.Exec(`DELETE FROM notes_fts WHERE rowid = ?`, n.ID); err != nil {
		t.Fatal(err)
	}
	notes, index, err := db.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if notes == index {
		t.Fatal("expected drift before rebuild")
	}

	if err := db.Rebuild(ctx); err != nil {
		var ice *apperr.IndexCorruptionError
		if errors.As(err, &ice) {
			t.Fatalf("rebuild did not converge: %v", err)
		}
		t.Fatalf("Rebuild: %v", err)
	}
	assertCongruent(t, db)

	hits, _ := db.Search(ctx, "salvage", 10, false)
	if len(hits) != 1 {
		t.Errorf("rebuilt index misses note: %+v", hits)
	}
}
