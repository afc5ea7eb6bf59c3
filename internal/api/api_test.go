package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/noteforge/internal/noteservice"
	"github.com/starford/noteforge/internal/testutil"
	"github.com/starford/noteforge/internal/transfer"
)

// testEnv sets up a temp SQLite store, service, and router for testing.
// authToken="" means disabled mode; a non-empty token enforces Bearer auth.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sse http.Handler) (*noteservice.Service, http.Handler) {
	t.Helper()

	db := testutil.TestStore(t)
	logger := testutil.DiscardLogger()
	svc := noteservice.New(db, transfer.NewWorker(db, logger), nil, 20*time.Millisecond, logger)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	return svc, NewRouter(svc, authEnabled, authToken, sse)
}

func createNote(t *testing.T, router http.Handler, title, content string, tags ...string) NoteDetail {
	t.Helper()
	body, _ := json.Marshal(CreateNoteRequest{Title: title, Body: content, Tags: tags})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var note NoteDetail
	if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
		t.Fatal(err)
	}
	return note
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	created := createNote(t, router, "Hello", "World", "greeting")
	if created.ID == 0 {
		t.Fatal("created note has no id")
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/notes/%d", created.ID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Title != "Hello" {
		t.Errorf("title = %q, want Hello", note.Title)
	}
	if len(note.Tags) != 1 || note.Tags[0] != "greeting" {
		t.Errorf("tags = %v", note.Tags)
	}
}

func TestCreateNote_UntitledDraft(t *testing.T) {
	_, router := testEnv(t, "")

	note := createNote(t, router, "", "")
	if note.ID == 0 {
		t.Error("untitled draft has no id")
	}
	if note.Title != "" {
		t.Errorf("title = %q, want empty", note.Title)
	}
}

func TestUpdateNote_AcceptedAndFlushed(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, "Draft", "v1")

	updateBody, _ := json.Marshal(UpdateNoteRequest{Title: "Draft", Body: "v2"})
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/notes/%d", created.ID), bytes.NewReader(updateBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("update = %d, want 202, body = %s", w.Code, w.Body.String())
	}

	// An explicit save point makes the queued snapshot durable.
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/notes/%d/save", created.ID), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("save = %d, want 204", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/notes/%d", created.ID), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Body != "v2" {
		t.Errorf("body = %q, want v2", note.Body)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(UpdateNoteRequest{Title: "Ghost", Body: "x"})
	req := httptest.NewRequest(http.MethodPut, "/notes/9999", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, "Bye", "gone")

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/notes/%d", created.ID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	// GET should now 404.
	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/notes/%d", created.ID), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}

	// Deleting again reports 404 as well.
	req = httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/notes/%d", created.ID), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "A", "alpha", "work")
	createNote(t, router, "B", "beta")

	req := httptest.NewRequest(http.MethodGet, "/notes?limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Notes) != 2 {
		t.Errorf("len(notes) = %d, want 2", len(resp.Notes))
	}

	// Tag filter narrows the listing.
	req = httptest.NewRequest(http.MethodGet, "/notes?tag=work", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	resp = NoteListResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Notes) != 1 || resp.Notes[0].Title != "A" {
		t.Errorf("tag filter notes = %+v", resp.Notes)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "Find me", "uniquetoken here")
	createNote(t, router, "Other", "nothing to see")

	req := httptest.NewRequest(http.MethodGet, "/search?q=uniquetoken", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 {
		t.Fatalf("search results = %d, want 1", len(resp.Results))
	}
	if resp.Results[0].Note.Title != "Find me" {
		t.Errorf("hit title = %q", resp.Results[0].Note.Title)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestExportImportEndpoints(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Kept", "export me")

	path := filepath.Join(t.TempDir(), "dump.json")
	body, _ := json.Marshal(TransferRequest{Path: path})
	req := httptest.NewRequest(http.MethodPost, "/export", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d, body = %s", w.Code, w.Body.String())
	}
	var exp ExportResponse
	_ = json.Unmarshal(w.Body.Bytes(), &exp)
	if exp.Exported != 1 {
		t.Errorf("exported = %d, want 1", exp.Exported)
	}

	body, _ = json.Marshal(TransferRequest{Path: path})
	req = httptest.NewRequest(http.MethodPost, "/import", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	var rep ImportResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.Skipped != 1 {
		t.Errorf("import report = %+v, want 1 skipped", rep)
	}
}

func TestImport_MissingFile(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(TransferRequest{Path: filepath.Join(t.TempDir(), "absent.json")})
	req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("import missing file = %d, want 500", w.Code)
	}
}

func TestRebuildIndexEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "A", "a")

	req := httptest.NewRequest(http.MethodPost, "/index/rebuild", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("rebuild = %d, want 204, body = %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(CreateNoteRequest{Title: "Authed"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestGetNote_BadID(t *testing.T) {
	_, router := testEnv(t, "")

	for _, path := range []string{"/notes/abc", "/notes/0", "/notes/-3"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", path, w.Code)
		}
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	sse := blockingSSEHandler()
	_, router := testEnvFull(t, true, "secret", sse)

	// No token → 401.
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	sse := blockingSSEHandler()
	_, router := testEnvFull(t, true, "tok", sse)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// blockingSSEHandler writes headers and blocks until the request context
// is done, standing in for the real broker stream.
func blockingSSEHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}
