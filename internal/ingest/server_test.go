package ingest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppiankov/logsink/internal/logtypes"
)

func serveRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestLogsEndpoint(t *testing.T) {
	store, _ := newTestStore(t, 10)
	srv := NewServer("127.0.0.1:0", store)

	rec := serveRequest(t, srv, http.MethodGet, "/api/logs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]" {
		t.Fatalf("empty ring body = %q, want []", got)
	}

	if err := store.Append(logtypes.New("10.1.1.1", []byte("hello"))); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(logtypes.New("10.1.1.2", []byte("world"))); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rec = serveRequest(t, srv, http.MethodGet, "/api/logs")
	var entries []logtypes.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Message != "hello" || entries[1].Message != "world" {
		t.Fatalf("order = [%s, %s], want oldest first", entries[0].Message, entries[1].Message)
	}
}

func TestHealthEndpoints(t *testing.T) {
	store, _ := newTestStore(t, 10)
	srv := NewServer("127.0.0.1:0", store)

	for _, target := range []string{"/healthz", "/readyz"} {
		rec := serveRequest(t, srv, http.MethodGet, target)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", target, rec.Code)
		}
	}
}

func TestVersionEndpoint(t *testing.T) {
	store, _ := newTestStore(t, 10)
	srv := NewServer("127.0.0.1:0", store)
	srv.SetVersion("1.2.3")

	rec := serveRequest(t, srv, http.MethodGet, "/api/version")
	var resp struct {
		Version string `json:"version"`
		API     int    `json:"api"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != "1.2.3" || resp.API != APIVersion {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestLogsRejectsWrite(t *testing.T) {
	store, _ := newTestStore(t, 10)
	srv := NewServer("127.0.0.1:0", store)

	rec := serveRequest(t, srv, http.MethodPost, "/api/logs")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /api/logs status = %d, want 405", rec.Code)
	}
}
