package daemon

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"abstractor/internal/api"
	"abstractor/internal/logging"
	"abstractor/internal/queue"
	"abstractor/internal/testsupport"
	"abstractor/internal/workflow"
)

func newTestServer(t *testing.T) (*apiServer, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	d, err := New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	srv, err := newAPIServer(cfg, d, logging.NewNop())
	if err != nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	if srv == nil {
		t.Fatal("expected api server when bind address configured")
	}
	return srv, store
}

func TestAPIServerSubmitAndList(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(api.SubmitRequest{PropertyAddress: "123 Main St", County: "Jefferson"})
	req := httptest.NewRequest(http.MethodPost, "/api/searches", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleSearches(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 Created, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/searches", nil)
	w = httptest.NewRecorder()
	srv.handleSearches(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.SearchListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Searches) != 1 {
		t.Fatalf("expected 1 search, got %d", len(resp.Searches))
	}
	if resp.Searches[0].PropertyAddress != "123 Main St" {
		t.Fatalf("unexpected address: %q", resp.Searches[0].PropertyAddress)
	}
}

func TestAPIServerSubmitRejectsEmptyAddress(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(api.SubmitRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/searches", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleSearches(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 Bad Request, got %d", w.Code)
	}
}

func TestAPIServerSearchNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/searches/42", nil)
	w := httptest.NewRecorder()
	srv.handleSearch(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 Not Found, got %d", w.Code)
	}
}

func TestAPIServerErrorsAndActions(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := t.Context()

	search := testsupport.NewSearch(t, store, "123 Main St")
	search.Status = queue.StatusFailed
	search.StatusMessage = "request timed out"
	if err := store.Update(ctx, search); err != nil {
		t.Fatalf("Update: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/searches/1/errors", nil)
	w := httptest.NewRecorder()
	srv.handleSearch(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var report api.ErrorReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.StatusMessage != "request timed out" {
		t.Fatalf("unexpected status message: %q", report.StatusMessage)
	}
	if len(report.Recovery.Actions) == 0 {
		t.Fatal("expected recovery actions on a failed search")
	}

	// Cancel is valid from failed; a second cancel conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/searches/1/cancel", nil)
	w = httptest.NewRecorder()
	srv.handleSearch(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK on cancel, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/searches/1/cancel", nil)
	w = httptest.NewRecorder()
	srv.handleSearch(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 Conflict on repeated cancel, got %d", w.Code)
	}
}

func TestAPIServerStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon was never started, status should not report running")
	}
	if status.PID == 0 {
		t.Fatal("expected pid in status payload")
	}
}
