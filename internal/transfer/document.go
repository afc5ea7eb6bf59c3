// Package transfer implements background import and export of the
// documented JSON interchange format. Parse and serialize work runs off
// the owner context on worker goroutines; all store mutations go back
// through the store's single-writer path.
package transfer

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/noteforge/internal/apperr"
	"github.com/starford/noteforge/internal/timeutil"
)

const (
	// AppName identifies documents produced by this application.
	AppName = "Noteforge"
	// FormatVersion is the only document version this build understands.
	// Unknown future versions abort import before any mutation.
	FormatVersion = 1
)

// Document is the interchange file layout.
type Document struct {
	App     string  `json:"app"`
	Version int     `json:"version"`
	Notes   []Entry `json:"notes"`
}

// Entry is one note payload in a document. Tags are comma-joined;
// timestamps are UTC RFC 3339 with explicit offset.
type Entry struct {
	ID        int64  `json:"id,omitempty"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Tags      string `json:"tags"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Validate enforces document-level structure. The version check runs
// first so an unknown version surfaces as SchemaVersionError regardless
// of other problems.
func (d *Document) Validate() error {
	if d.Version != FormatVersion {
		return &apperr.SchemaVersionError{Found: d.Version, Want: FormatVersion}
	}
	return validation.ValidateStruct(d,
		validation.Field(&d.App, validation.Required, validation.In(AppName)),
		validation.Field(&d.Notes, validation.NotNil),
	)
}

// timestamps decodes an entry's timestamps. updated_at is mandatory;
// created_at may be empty for hand-built files, in which case the store
// falls back to updated_at on insert.
func (e Entry) timestamps() (created, updated time.Time, err error) {
	if e.UpdatedAt == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("missing updated_at")
	}
	updated, err = timeutil.Parse(e.UpdatedAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid updated_at: %w", err)
	}
	if e.CreatedAt != "" {
		created, err = timeutil.Parse(e.CreatedAt)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid created_at: %w", err)
		}
	}
	return created, updated, nil
}
