// Package noteservice is the application facade over the persistence
// core. It owns the autosave coalescer, routes edits through it, and
// publishes change events to the notify broker after every successful
// mutation. Handlers (HTTP, MCP, CLI) talk to this package, never to
// the store directly.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/noteforge/internal/autosave"
	"github.com/starford/noteforge/internal/notify"
	"github.com/starford/noteforge/internal/store"
	"github.com/starford/noteforge/internal/tags"
	"github.com/starford/noteforge/internal/transfer"
)

// Service coordinates the note store, the autosave coalescer, the
// import/export worker and the event broker.
type Service struct {
	db     store.NoteStore
	worker *transfer.Worker
	broker *notify.Broker
	saver  *autosave.Coalescer
	logger *slog.Logger
}

// New wires a service around the given collaborators. The autosave
// coalescer is constructed here so its commit path always goes through
// the store and its outcomes always reach the broker.
func New(db store.NoteStore, worker *transfer.Worker, broker *notify.Broker, interval time.Duration, logger *slog.Logger) *Service {
	s := &Service{
		db:     db,
		worker: worker,
		broker: broker,
		logger: logger,
	}
	s.saver = autosave.New(interval, s.commitSnapshot, s.onAutosaveResult)
	return s
}

// commitSnapshot persists a coalesced snapshot as a full-field update.
// The tag slice is canonicalized to non-nil so a snapshot without tags
// clears them instead of leaving the stored set untouched.
func (s *Service) commitSnapshot(ctx context.Context, id int64, snap autosave.Snapshot) error {
	_, err := s.db.Update(ctx, id, store.Fields{
		Title: &snap.Title,
		Body:  &snap.Body,
		Tags:  tags.Canonical(snap.Tags),
	})
	return err
}

func (s *Service) onAutosaveResult(id int64, err error) {
	if s.broker != nil {
		s.broker.PublishAutosave(id, err)
	}
	if err != nil {
		s.logger.Warn("autosave commit failed", "note_id", id, "error", err)
		return
	}
	if s.broker != nil {
		s.broker.PublishNoteEvent("updated", id)
	}
}

// CreateNote persists a new note immediately. Creation is not
// coalesced; there is no id to coalesce under until the row exists.
func (s *Service) CreateNote(ctx context.Context, d store.Draft) (store.Note, error) {
	n, err := s.db.Create(ctx, d)
	if err != nil {
		return store.Note{}, fmt.Errorf("noteservice: create: %w", err)
	}
	if s.broker != nil {
		s.broker.PublishNoteEvent("created", n.ID)
	}
	return n, nil
}

// UpdateNote records an edit for the note. The write is debounced by
// the coalescer; UpdateNote returns as soon as the edit is registered.
// The note must exist, editors cannot revive deleted ids.
func (s *Service) UpdateNote(ctx context.Context, id int64, snap autosave.Snapshot) error {
	if _, err := s.db.Get(ctx, id); err != nil {
		return fmt.Errorf("noteservice: update: %w", err)
	}
	s.saver.Edit(id, snap)
	return nil
}

// SaveNow forces any pending edit for the note to disk before returning.
func (s *Service) SaveNow(ctx context.Context, id int64) error {
	return s.saver.Flush(ctx, id)
}

// DeleteNote removes the note. Any pending autosave state is discarded
// first so a queued snapshot cannot resurrect the row after deletion.
func (s *Service) DeleteNote(ctx context.Context, id int64) error {
	s.saver.Cancel(id)
	if err := s.db.Delete(ctx, id); err != nil {
		return fmt.Errorf("noteservice: delete: %w", err)
	}
	if s.broker != nil {
		s.broker.PublishNoteEvent("deleted", id)
	}
	return nil
}

// GetNote returns a single note by id.
func (s *Service) GetNote(ctx context.Context, id int64) (store.Note, error) {
	return s.db.Get(ctx, id)
}

// ListNotes returns notes matching the filter.
func (s *Service) ListNotes(ctx context.Context, f store.Filter) ([]store.Note, error) {
	return s.db.Query(ctx, f)
}

// SearchResult pairs a ranked hit with the full note it refers to.
type SearchResult struct {
	Note    store.Note `json:"note"`
	Rank    float64    `json:"rank"`
	Snippet string     `json:"snippet"`
}

// Search runs a full-text query and hydrates each hit into its note.
// A hit whose note vanished between ranking and hydration is dropped
// rather than failing the whole result set.
func (s *Service) Search(ctx context.Context, query string, limit int, advanced bool) ([]SearchResult, error) {
	hits, err := s.db.Search(ctx, query, limit, advanced)
	if err != nil {
		return nil, fmt.Errorf("noteservice: search: %w", err)
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		n, err := s.db.Get(ctx, h.NoteID)
		if err != nil {
			continue
		}
		results = append(results, SearchResult{Note: n, Rank: h.Rank, Snippet: h.Snippet})
	}
	return results, nil
}

// ExportTo flushes pending edits and writes the full collection to path.
func (s *Service) ExportTo(ctx context.Context, path string) (int, error) {
	if err := s.saver.FlushAll(ctx); err != nil {
		return 0, fmt.Errorf("noteservice: export: flush: %w", err)
	}
	return s.worker.ExportTo(ctx, path)
}

// ImportFrom merges an export document into the collection.
func (s *Service) ImportFrom(ctx context.Context, path string) (transfer.Report, error) {
	rep, err := s.worker.ImportFrom(ctx, path)
	if err != nil {
		return rep, err
	}
	if s.broker != nil {
		s.broker.Publish(notify.Event{Type: notify.EventImportCompleted, Data: rep})
		s.broker.Publish(notify.Event{Type: notify.EventNotesChanged, Data: map[string]string{}})
	}
	return rep, nil
}

// RebuildIndex drops and repopulates the search index from the notes
// table, then verifies the two sides agree.
func (s *Service) RebuildIndex(ctx context.Context) error {
	return s.db.Rebuild(ctx)
}

// Pending reports whether the note has an uncommitted edit.
func (s *Service) Pending(id int64) bool {
	return s.saver.Pending(id)
}

// Shutdown flushes all pending edits and stops the coalescer. The
// store and broker are owned by the caller and closed separately.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.saver.FlushAll(ctx)
	s.saver.Close()
	if err != nil {
		return fmt.Errorf("noteservice: shutdown: %w", err)
	}
	return nil
}
