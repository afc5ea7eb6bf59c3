package store

import (
	"context"
	"time"
)

// Note is a persisted note. ID is assigned by the store on first persist
// and never reused after deletion. Timestamps are UTC; UpdatedAt is
// monotonic per note and never precedes CreatedAt.
type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Draft is the payload for creating a note. Zero timestamps mean "now";
// import passes explicit values to preserve foreign history.
type Draft struct {
	Title     string
	Body      string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fields is a partial update. Nil pointers (and nil Tags) leave the field
// unchanged. A nil UpdatedAt lets the store assign a monotonic timestamp;
// import sets it explicitly when the incoming entry wins a merge.
type Fields struct {
	Title     *string
	Body      *string
	Tags      []string
	UpdatedAt *time.Time
}

// Filter selects and orders notes for Query.
type Filter struct {
	Tag    string // exact tag membership
	Match  string // substring over title or body
	Sort   string // "updated_at" (default), "created_at", "title"
	Limit  int
	Offset int
}

// SearchHit is one full-text search result, ranked best-first.
type SearchHit struct {
	NoteID  int64   `json:"note_id"`
	Rank    float64 `json:"rank"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
}

// NoteStore defines the store interface. Consumers should depend on this
// rather than the concrete *DB type to facilitate testing with mocks.
type NoteStore interface {
	Create(ctx context.Context, d Draft) (Note, error)
	Update(ctx context.Context, id int64, f Fields) (Note, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Note, error)
	Query(ctx context.Context, f Filter) ([]Note, error)
	Search(ctx context.Context, query string, limit int, advanced bool) ([]SearchHit, error)
	Rebuild(ctx context.Context) error
	Counts(ctx context.Context) (notes, indexRows int64, err error)
	Close() error
}

// Verify *DB satisfies NoteStore at compile time.
var _ NoteStore = (*DB)(nil)
