package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/noteforge/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "noteforge-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreate(t *testing.T, db *DB, d Draft) Note {
	t.Helper()
	n, err := db.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return n
}

func assertCongruent(t *testing.T, db *DB) {
	t.Helper()
	notes, index, err := db.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if notes != index {
		t.Fatalf("index drift: %d notes, %d index rows", notes, index)
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
	var version int
	if err := db.conn.QueryRow(`SELECT version FROM schema_meta`).Scan(&version); err != nil {
		t.Fatalf("schema_meta missing: %v", err)
	}
	if version != schemaVersion {
		t.Errorf("schema version = %d, want %d", version, schemaVersion)
	}
}

func TestCreateAndGet(t *testing.T) {
	db := testDB(t)
	n := mustCreate(t, db, Draft{Title: "Hello", Body: "World", Tags: []string{"go", "go", " test "}})

	if n.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if !n.UpdatedAt.Equal(n.CreatedAt) {
		t.Errorf("fresh note: updated_at %v != created_at %v", n.UpdatedAt, n.CreatedAt)
	}

	got, err := db.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Hello" || got.Body != "World" {
		t.Errorf("got %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "test" {
		t.Errorf("tags not canonical: %v", got.Tags)
	}
	if got.CreatedAt.Location() != time.UTC {
		t.Error("created_at not UTC")
	}
	assertCongruent(t, db)
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.Get(context.Background(), 42)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	db := testDB(t)
	n := mustCreate(t, db, Draft{Title: "Old", Body: "body", Tags: []string{"a"}})

	title := "New"
	got, err := db.Update(context.Background(), n.ID, Fields{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "New" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Body != "body" || len(got.Tags) != 1 {
		t.Errorf("untouched fields changed: %+v", got)
	}
	assertCongruent(t, db)
}

func TestUpdate_MonotonicUpdatedAt(t *testing.T) {
	db := testDB(t)
	n := mustCreate(t, db, Draft{Title: "t"})

	prev := n.UpdatedAt
	for i := 0; i < 5; i++ {
		body := "rev"
		got, err := db.Update(context.Background(), n.ID, Fields{Body: &body})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if !got.UpdatedAt.After(prev) {
			t.Fatalf("updated_at %v not after %v", got.UpdatedAt, prev)
		}
		if got.UpdatedAt.Before(got.CreatedAt) {
			t.Fatalf("updated_at %v before created_at %v", got.UpdatedAt, got.CreatedAt)
		}
		prev = got.UpdatedAt
	}
}

func TestUpdate_ExplicitUpdatedAt(t *testing.T) {
	db := testDB(t)
	n := mustCreate(t, db, Draft{Title: "t"})

	want := timeFixed(t, "2030-01-02T03:04:05Z")
	title := "merged"
	got, err := db.Update(context.Background(), n.ID, Fields{Title: &title, UpdatedAt: &want})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.UpdatedAt.Equal(want) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, want)
	}
}

func timeFixed(t *testing.T, s string) time.Time {
	t.Helper()
	tt, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return tt.UTC()
}

func TestUpdate_NotFound(t *testing.T) {
	db := testDB(t)
	title := "x"
	_, err := db.Update(context.Background(), 99, Fields{Title: &title})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	n := mustCreate(t, db, Draft{Title: "gone"})

	if err := db.Delete(context.Background(), n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get(context.Background(), n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("note still present after delete: %v", err)
	}
	assertCongruent(t, db)

	// Second delete is a no-op, reported for caller awareness.
	if err := db.Delete(context.Background(), n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("repeat delete err = %v, want ErrNotFound", err)
	}
}

func TestIDsNeverReused(t *testing.T) {
	db := testDB(t)
	first := mustCreate(t, db, Draft{Title: "a"})
	if err := db.Delete(context.Background(), first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	second := mustCreate(t, db, Draft{Title: "b"})
	if second.ID <= first.ID {
		t.Errorf("id %d reused after deleting %d", second.ID, first.ID)
	}
}

func TestQuery_DefaultOrder(t *testing.T) {
	db := testDB(t)
	a := mustCreate(t, db, Draft{Title: "first"})
	b := mustCreate(t, db, Draft{Title: "second"})

	// Touch a so it becomes most recently updated.
	body := "touched"
	if _, err := db.Update(context.Background(), a.ID, Fields{Body: &body}); err != nil {
		t.Fatal(err)
	}

	notes, err := db.Query(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len = %d", len(notes))
	}
	if notes[0].ID != a.ID || notes[1].ID != b.ID {
		t.Errorf("order = [%d %d], want [%d %d]", notes[0].ID, notes[1].ID, a.ID, b.ID)
	}
}

func TestQuery_TagAndMatchFilters(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, Draft{Title: "Groceries", Tags: []string{"home", "lists"}})
	mustCreate(t, db, Draft{Title: "Standup notes", Body: "project status", Tags: []string{"work"}})
	mustCreate(t, db, Draft{Title: "Workout", Tags: []string{"home"}})

	byTag, err := db.Query(context.Background(), Filter{Tag: "home"})
	if err != nil {
		t.Fatalf("Query tag: %v", err)
	}
	if len(byTag) != 2 {
		t.Errorf("tag filter len = %d, want 2", len(byTag))
	}

	// "work" must not match the "home" tag via substring.
	byWork, err := db.Query(context.Background(), Filter{Tag: "work"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byWork) != 1 || byWork[0].Title != "Standup notes" {
		t.Errorf("tag=work got %+v", byWork)
	}

	byMatch, err := db.Query(context.Background(), Filter{Match: "project"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byMatch) != 1 || byMatch[0].Title != "Standup notes" {
		t.Errorf("match filter got %+v", byMatch)
	}
}

func TestQuery_LimitOffset(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 5; i++ {
		mustCreate(t, db, Draft{Title: "n"})
	}
	page, err := db.Query(context.Background(), Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("len = %d, want 2", len(page))
	}
}

func TestCongruenceAcrossMutations(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 4; i++ {
		n := mustCreate(t, db, Draft{Title: "note", Body: "text"})
		ids = append(ids, n.ID)
		assertCongruent(t, db)
	}
	body := "edited"
	if _, err := db.Update(ctx, ids[1], Fields{Body: &body}); err != nil {
		t.Fatal(err)
	}
	assertCongruent(t, db)
	for _, id := range ids {
		if err := db.Delete(ctx, id); err != nil {
			t.Fatal(err)
		}
		assertCongruent(t, db)
	}
}

func TestRebuild_CleanDatabase(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, Draft{Title: "a", Body: "alpha"})
	mustCreate(t, db, Draft{Title: "b", Body: "beta"})

	if err := db.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	assertCongruent(t, db)
}

// Prefix semantics must hold in every build: a trailing * on the final
// token grants prefix matching, everything else matches whole words.
func TestSearch_PrefixOnlyOnTrailingStar(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustCreate(t, db, Draft{Title: "Project Plan", Body: "roadmap for the quarter"})

	cases := []struct {
		query string
		hits  int
	}{
		{"project", 1},  // whole word
		{"proj*", 1},    // prefix on final token
		{"proj", 0},     // bare fragment is a whole word, not a prefix
		{"roj", 0},      // mid-token fragment never matches
		{"roj*", 0},     // prefix still anchors at a word start
		{"plan roadmap", 1},
	}
	for _, tc := range cases {
		hits, err := db.Search(ctx, tc.query, 10, false)
		if err != nil {
			t.Fatalf("Search(%q): %v", tc.query, err)
		}
		if len(hits) != tc.hits {
			t.Errorf("Search(%q) = %d hits, want %d", tc.query, len(hits), tc.hits)
		}
	}
}

func TestCreate_UpdatedAtOnlyDefaultsCreatedAt(t *testing.T) {
	db := testDB(t)
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	n := mustCreate(t, db, Draft{Title: "Historic", UpdatedAt: stamp})
	if !n.CreatedAt.Equal(stamp) {
		t.Errorf("created_at = %v, want %v", n.CreatedAt, stamp)
	}
	if !n.UpdatedAt.Equal(stamp) {
		t.Errorf("updated_at = %v, want %v", n.UpdatedAt, stamp)
	}

	got, err := db.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.CreatedAt.Equal(stamp) || !got.UpdatedAt.Equal(stamp) {
		t.Errorf("stored timestamps = %v / %v, want %v", got.CreatedAt, got.UpdatedAt, stamp)
	}
}
