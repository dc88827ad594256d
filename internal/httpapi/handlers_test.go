package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/orchestrator"
	"github.com/agentdeck/agentdeck/internal/outputlog"
	"github.com/agentdeck/agentdeck/internal/terminal"
)

func newTestServer(t *testing.T) (*Server, *terminal.Fake) {
	t.Helper()
	backend := terminal.NewFake()
	log, err := outputlog.Open(filepath.Join(t.TempDir(), "output.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })

	orch := orchestrator.New(backend, log, nil, orchestrator.Options{}, orchestrator.RehydrateFilter{}, "/agentdeck/src")
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 0, MaxConnections: 100}
	return New(cfg, orch), backend
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestCreateSessionHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := postJSON(t, srv, "/api/v1/sessions", map[string]string{"working_dir": t.TempDir()})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var info orchestrator.SessionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.SessionID == "" {
		t.Error("expected a session id")
	}
}

func TestCreateSessionHandlerRejectsMissingWorkingDir(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := postJSON(t, srv, "/api/v1/sessions", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListSessionsHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv, "/api/v1/sessions", map[string]string{"working_dir": t.TempDir()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sessions []orchestrator.SessionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}
}

func TestGetSessionHandlerNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestKillSessionHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	createRec := postJSON(t, srv, "/api/v1/sessions", map[string]string{"working_dir": t.TempDir()})
	var info orchestrator.SessionInfo
	json.Unmarshal(createRec.Body.Bytes(), &info)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+info.SessionID, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestSendInputHandlerOnDeadSessionConflict(t *testing.T) {
	srv, _ := newTestServer(t)
	createRec := postJSON(t, srv, "/api/v1/sessions", map[string]string{"working_dir": t.TempDir()})
	var info orchestrator.SessionInfo
	json.Unmarshal(createRec.Body.Bytes(), &info)

	killReq := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+info.SessionID, nil)
	srv.Router().ServeHTTP(httptest.NewRecorder(), killReq)

	rec := postJSON(t, srv, "/api/v1/sessions/"+info.SessionID+"/input", map[string]string{"text": "hello"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", rec.Code, rec.Body.String())
	}
}

func TestGetOutputHandlerLiveMode(t *testing.T) {
	srv, backend := newTestServer(t)
	createRec := postJSON(t, srv, "/api/v1/sessions", map[string]string{"working_dir": t.TempDir()})
	var info orchestrator.SessionInfo
	json.Unmarshal(createRec.Body.Bytes(), &info)

	backend.PushLines(info.SessionID, "hello from the pane")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+info.SessionID+"/output", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("hello from the pane")) {
		t.Errorf("expected pane content in response, got %s", rec.Body.String())
	}
}

func TestGetOutputHandlerHistoryMode(t *testing.T) {
	srv, _ := newTestServer(t)
	createRec := postJSON(t, srv, "/api/v1/sessions", map[string]string{"working_dir": t.TempDir()})
	var info orchestrator.SessionInfo
	json.Unmarshal(createRec.Body.Bytes(), &info)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+info.SessionID+"/output?mode=history", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
