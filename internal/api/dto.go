package api

import (
	"github.com/starford/noteforge/internal/noteservice"
	"github.com/starford/noteforge/internal/store"
	"github.com/starford/noteforge/internal/transfer"
)

// CreateNoteRequest is the request body for creating a note. An empty
// title creates an untitled draft.
type CreateNoteRequest struct {
	Title string   `json:"title" example:"Grocery list"`
	Body  string   `json:"body" example:"apples, oranges"`
	Tags  []string `json:"tags" example:"errands,home"`
}

// UpdateNoteRequest is the request body for an autosave update. All
// fields form a complete snapshot; the write itself is debounced.
type UpdateNoteRequest struct {
	Title string   `json:"title" example:"Grocery list"`
	Body  string   `json:"body" example:"apples, oranges, milk"`
	Tags  []string `json:"tags" example:"errands,home"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = store.Note

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteDetail `json:"notes" validate:"required"`
	Total int          `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single ranked hit (aliased from the domain layer).
type SearchResult = noteservice.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// TransferRequest names the file for an export or import operation.
type TransferRequest struct {
	Path string `json:"path" example:"/home/user/notes.json" validate:"required"`
}

// ExportResponse reports how many notes were written.
type ExportResponse struct {
	Exported int    `json:"exported" example:"42" validate:"required"`
	Path     string `json:"path" example:"/home/user/notes.json" validate:"required"`
}

// ImportResponse is the per-file merge report (aliased from the transfer layer).
type ImportResponse = transfer.Report
