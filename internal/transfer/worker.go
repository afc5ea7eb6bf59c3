package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/noteforge/internal/apperr"
	"github.com/starford/noteforge/internal/store"
	"github.com/starford/noteforge/internal/tags"
	"github.com/starford/noteforge/internal/timeutil"
)

// Worker performs import/export against a note store.
type Worker struct {
	db     store.NoteStore
	logger *slog.Logger
}

// NewWorker creates a transfer worker.
func NewWorker(db store.NoteStore, logger *slog.Logger) *Worker {
	return &Worker{db: db, logger: logger}
}

// Report summarizes an import. Problems are per-note merge failures;
// they never abort the batch.
type Report struct {
	Inserted int                `json:"inserted"`
	Updated  int                `json:"updated"`
	Skipped  int                `json:"skipped"`
	Problems []apperr.MergeError `json:"problems,omitempty"`
}

// ExportTo serializes one consistent read snapshot of all notes into the
// interchange document at path. Serialization runs on a worker goroutine;
// the snapshot itself is taken on the calling context. Returns the number
// of notes written.
func (w *Worker) ExportTo(ctx context.Context, path string) (int, error) {
	notes, err := w.db.Query(ctx, store.Filter{})
	if err != nil {
		return 0, err
	}

	doc := Document{App: AppName, Version: FormatVersion, Notes: make([]Entry, 0, len(notes))}
	for _, n := range notes {
		doc.Notes = append(doc.Notes, entryFromNote(n))
	}

	dataCh := make(chan []byte, 1)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("transfer: encode: %w", err)
		}
		dataCh <- data
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := writeFileAtomic(path, <-dataCh); err != nil {
		return 0, err
	}

	w.logger.Info("export complete", slog.String("path", path), slog.Int("notes", len(doc.Notes)))
	return len(doc.Notes), nil
}

func entryFromNote(n store.Note) Entry {
	return Entry{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		Tags:      tags.Join(n.Tags),
		CreatedAt: timeutil.Format(n.CreatedAt),
		UpdatedAt: timeutil.Format(n.UpdatedAt),
	}
}

// ImportFrom parses, validates, and merges the document at path.
// Reading and parsing run on a worker goroutine and may be cancelled with
// no partial effect; any document-level failure (unreadable file, JSON
// syntax, wrong app, unknown version) aborts before a single store
// mutation. Valid entries then merge in document order, so duplicate ids
// within one file resolve last-in-file.
func (w *Worker) ImportFrom(ctx context.Context, path string) (Report, error) {
	docCh := make(chan *Document, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("transfer: read %s: %w", path, err)
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("transfer: parse %s: %w", path, err)
		}
		if err := doc.Validate(); err != nil {
			return err
		}
		docCh <- &doc
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	doc := <-docCh

	// Cancelled during parsing: stop before mutating anything. Once
	// merging starts, each write is atomic commit-or-rollback.
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	// Merge decisions compare against the pre-import snapshot only, so a
	// foreign id can never match a row this batch inserted moments ago
	// under a freshly assigned id.
	existing := make(map[int64]time.Time)
	current, err := w.db.Query(ctx, store.Filter{})
	if err != nil {
		return Report{}, err
	}
	for _, n := range current {
		existing[n.ID] = n.UpdatedAt
	}

	var rep Report
	for _, entry := range doc.Notes {
		w.merge(ctx, entry, existing, &rep)
	}

	w.logger.Info("import complete",
		slog.String("path", path),
		slog.Int("inserted", rep.Inserted),
		slog.Int("updated", rep.Updated),
		slog.Int("skipped", rep.Skipped),
		slog.Int("problems", len(rep.Problems)))
	return rep, nil
}

// merge applies one entry by id against the pre-import snapshot: a note
// that existed before the batch is overwritten field-by-field only when
// the incoming updated_at is strictly newer; anything else inserts as a
// new note with a freshly assigned id — a foreign id is never trusted
// into an unused slot.
func (w *Worker) merge(ctx context.Context, e Entry, existing map[int64]time.Time, rep *Report) {
	created, updated, err := e.timestamps()
	if err != nil {
		rep.Problems = append(rep.Problems, apperr.MergeError{ID: e.ID, Reason: err.Error()})
		return
	}
	ts := tags.Split(e.Tags)

	if e.ID > 0 {
		if prev, ok := existing[e.ID]; ok {
			if !updated.After(prev) {
				rep.Skipped++
				return
			}
			if _, err := w.db.Update(ctx, e.ID, store.Fields{
				Title:     &e.Title,
				Body:      &e.Body,
				Tags:      ts,
				UpdatedAt: &updated,
			}); err != nil {
				rep.Problems = append(rep.Problems, apperr.MergeError{ID: e.ID, Reason: err.Error()})
				return
			}
			existing[e.ID] = updated
			rep.Updated++
			return
		}
	}

	if _, err := w.db.Create(ctx, store.Draft{
		Title:     e.Title,
		Body:      e.Body,
		Tags:      ts,
		CreatedAt: created,
		UpdatedAt: updated,
	}); err != nil {
		rep.Problems = append(rep.Problems, apperr.MergeError{ID: e.ID, Reason: err.Error()})
		return
	}
	rep.Inserted++
}
