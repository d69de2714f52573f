package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManagerWritesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}
	if m.Get().Server.Port != Defaults().Server.Port {
		t.Fatalf("expected default port, got %d", m.Get().Server.Port)
	}
}

func TestLoadDeepMergesOverFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Get()
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected overridden port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != Defaults().Server.Host {
		t.Fatalf("expected default host preserved, got %q", cfg.Server.Host)
	}
	if !cfg.MCP.Enabled {
		t.Fatalf("expected mcp.enabled default (true) preserved when omitted from file, got false")
	}
	if !cfg.Logging.EnableConsole {
		t.Fatalf("expected logging.enable_console default (true) preserved when omitted from file, got false")
	}
}

func TestLoadOverwritesBooleanWhenExplicitlySet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("mcp:\n  enabled: false\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.Get().MCP.Enabled {
		t.Fatalf("expected mcp.enabled=false from file to be honored")
	}
}

func TestApplyPatchPreservesComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	seed := "# keep this comment\nterminal:\n  default_cols: 80\n"
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.ApplyPatch("terminal.default_cols", 200); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read patched file: %v", err)
	}
	if !strings.Contains(string(data), "keep this comment") {
		t.Fatalf("expected comment preserved, got:\n%s", data)
	}
	if m.Get().Terminal.DefaultCols != 200 {
		t.Fatalf("expected reloaded cols=200, got %d", m.Get().Terminal.DefaultCols)
	}
}

func TestApplyMergeDeepMergesPartialBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	seed := "# keep this comment\nterminal:\n  default_cols: 80\n  default_rows: 24\n"
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	body := map[string]any{
		"terminal": map[string]any{"default_cols": float64(132)},
		"mcp":      map[string]any{"allowed_hosts": []any{"example.com", "localhost"}},
	}
	if err := m.ApplyMerge(body); err != nil {
		t.Fatalf("ApplyMerge: %v", err)
	}

	cfg := m.Get()
	if cfg.Terminal.DefaultCols != 132 {
		t.Fatalf("expected merged default_cols=132, got %d", cfg.Terminal.DefaultCols)
	}
	if cfg.Terminal.DefaultRows != 24 {
		t.Fatalf("expected untouched default_rows=24 preserved, got %d", cfg.Terminal.DefaultRows)
	}
	if len(cfg.MCP.AllowedHosts) != 2 || cfg.MCP.AllowedHosts[0] != "example.com" {
		t.Fatalf("expected allowed_hosts array merged, got %v", cfg.MCP.AllowedHosts)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read merged file: %v", err)
	}
	if !strings.Contains(string(data), "keep this comment") {
		t.Fatalf("expected comment preserved, got:\n%s", data)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.ApplyPatch("server.port", 1234); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if m.Get().Server.Port != 1234 {
		t.Fatalf("expected patched port before reset")
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if m.Get().Server.Port != Defaults().Server.Port {
		t.Fatalf("expected default port after reset, got %d", m.Get().Server.Port)
	}
}
