package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/term-broker/termbroker/internal/blacklist"
	"github.com/term-broker/termbroker/internal/config"
	"github.com/term-broker/termbroker/internal/interact"
	"github.com/term-broker/termbroker/internal/terminal"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfgPath := filepath.Join(t.TempDir(), "termbroker.yaml")
	mgr, err := config.NewManager(cfgPath)
	if err != nil {
		t.Fatalf("config.NewManager: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	reg := terminal.NewRegistry(200, true, 0)
	t.Cleanup(reg.Shutdown)
	bl := blacklist.New(blacklist.DefaultRules, true)
	orch := interact.New(reg, bl)

	return SetupRouter(Deps{
		Orchestrator: orch,
		Config:       mgr,
		BuildVersion: "test",
		GitCommit:    "testcommit",
	}, true)
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthReportsStats(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(r, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected status 'ok', got %q", resp.Status)
	}
}

func TestCreateListAndGetTerminal(t *testing.T) {
	r := newTestRouter(t)

	createRec := doJSON(r, http.MethodPost, "/api/terminals", createTerminalRequest{
		TerminalName: "test-session",
		Shell:        "/bin/sh",
	})
	if createRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", createRec.Code, createRec.Body.String())
	}
	var created createTerminalResponse
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.TerminalID == "" {
		t.Fatalf("expected a non-empty terminal id")
	}

	listRec := doJSON(r, http.MethodGet, "/api/terminals", nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listRec.Code)
	}

	getRec := doJSON(r, http.MethodGet, "/api/terminals/test-session", nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getRec.Code, getRec.Body.String())
	}
	var sess sessionResponse
	if err := json.Unmarshal(getRec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if sess.ID != created.TerminalID {
		t.Fatalf("expected matching terminal id from name lookup")
	}
}

func TestDuplicateNameIsRejectedAsNameInvalid(t *testing.T) {
	r := newTestRouter(t)

	first := doJSON(r, http.MethodPost, "/api/terminals", createTerminalRequest{TerminalName: "dup", Shell: "/bin/sh"})
	if first.Code != http.StatusCreated {
		t.Fatalf("expected first create to succeed, got %d", first.Code)
	}

	second := doJSON(r, http.MethodPost, "/api/terminals", createTerminalRequest{TerminalName: "dup", Shell: "/bin/sh"})
	if second.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate name, got %d: %s", second.Code, second.Body.String())
	}
}

func TestInputRejectedWhenUserControlDisabled(t *testing.T) {
	r := newTestRouter(t)

	create := doJSON(r, http.MethodPost, "/api/terminals", createTerminalRequest{TerminalName: "locked", Shell: "/bin/sh"})
	if create.Code != http.StatusCreated {
		t.Fatalf("expected create to succeed, got %d", create.Code)
	}

	rec := doJSON(r, http.MethodPost, "/api/terminals/locked/input", inputRequest{Input: "echo hi"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with user control disabled by default, got %d: %s", rec.Code, rec.Body.String())
	}
}
