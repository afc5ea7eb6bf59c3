package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/noteforge/internal/apperr"
	"github.com/starford/noteforge/internal/autosave"
	"github.com/starford/noteforge/internal/noteservice"
	"github.com/starford/noteforge/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// noteID extracts the numeric note id from the URL.
func noteID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// writeStoreError maps domain errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, op string, err error) {
	var storeErr *apperr.StoreError
	var schemaErr *apperr.SchemaVersionError

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.As(err, &schemaErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(schemaErr.Error()))
	case errors.As(err, &storeErr) && storeErr.Kind == apperr.LockTimeout:
		writeJSON(w, http.StatusServiceUnavailable, errorBody("storage busy"))
	case errors.As(err, &storeErr) && storeErr.Kind == apperr.ConstraintViolation:
		writeJSON(w, http.StatusConflict, errorBody("constraint violation"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with optional pagination and filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			match	query		string	false	"Substring filter on title/body"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, created_at, title)
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, err := h.svc.ListNotes(r.Context(), store.Filter{
		Tag:    q.Get("tag"),
		Match:  q.Get("match"),
		Sort:   q.Get("sort"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeStoreError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeStoreError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	// An empty title is allowed: "new note" starts as an untitled draft.
	note, err := h.svc.CreateNote(r.Context(), store.Draft{
		Title: req.Title,
		Body:  req.Body,
		Tags:  req.Tags,
	})
	if err != nil {
		writeStoreError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
// The snapshot is accepted and queued for a debounced write, so a
// successful response is 202 Accepted rather than 200.
//
//	@Summary		Queue an autosave snapshot for a note
//	@Tags			notes
//	@Accept			json
//	@Param			id		path	int					true	"Note id"
//	@Param			body	body	UpdateNoteRequest	true	"Full snapshot"
//	@Success		202		"Snapshot queued"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	err := h.svc.UpdateNote(r.Context(), id, autosave.Snapshot{
		Title: req.Title,
		Body:  req.Body,
		Tags:  req.Tags,
	})
	if err != nil {
		writeStoreError(w, "update note", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SaveNote handles POST /api/notes/{id}/save.
//
//	@Summary		Flush any pending autosave for the note immediately
//	@Tags			notes
//	@Param			id	path	int	true	"Note id"
//	@Success		204	"Pending edit persisted (or nothing was pending)"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/save [post]
func (h *Handler) SaveNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	if err := h.svc.SaveNow(r.Context(), id); err != nil {
		writeStoreError(w, "save note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	int	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeStoreError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	true	"Search query"
//	@Param			limit		query		int		false	"Max results"
//	@Param			advanced	query		bool	false	"Pass the query through without sanitizing"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	advanced, _ := strconv.ParseBool(r.URL.Query().Get("advanced"))

	results, err := h.svc.Search(r.Context(), q, limit, advanced)
	if err != nil {
		writeStoreError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Export handles POST /api/export.
//
//	@Summary		Export all notes to a JSON file on the server host
//	@Tags			transfer
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TransferRequest	true	"Destination path"
//	@Success		200		{object}	ExportResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	count, err := h.svc.ExportTo(r.Context(), req.Path)
	if err != nil {
		writeStoreError(w, "export", err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Exported: count, Path: req.Path})
}

// Import handles POST /api/import.
//
//	@Summary		Import notes from a JSON export file on the server host
//	@Tags			transfer
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TransferRequest	true	"Source path"
//	@Success		200		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	rep, err := h.svc.ImportFrom(r.Context(), req.Path)
	if err != nil {
		writeStoreError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// RebuildIndex handles POST /api/index/rebuild.
//
//	@Summary		Rebuild the search index from the notes table
//	@Tags			index
//	@Success		204	"Index rebuilt and verified"
//	@Security		BearerAuth
//	@Router			/index/rebuild [post]
func (h *Handler) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RebuildIndex(r.Context()); err != nil {
		writeStoreError(w, "rebuild index", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
