package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Manager owns the live config, the file it was loaded from, and an
// fsnotify watcher that reloads on change, per spec.md §6.
type Manager struct {
	mu       sync.RWMutex
	path     string
	current  Config
	watcher  *fsnotify.Watcher
	watching bool
}

// NewManager loads path (deep-merged over Defaults()), creating it
// with the defaults if it does not yet exist.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	cfg := Defaults()

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		if writeErr := writeYAML(m.path, cfg); writeErr != nil {
			return fmt.Errorf("write default config: %w", writeErr)
		}
		m.mu.Lock()
		m.current = cfg
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	// yaml.v3 leaves any bool the file doesn't mention at Go's zero
	// value false, indistinguishable from an explicit "false" in the
	// file. raw is decoded separately so deepMerge can tell "omitted"
	// from "set to false" before overwriting a boolean default.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	merged := deepMerge(cfg, loaded, raw)
	m.mu.Lock()
	m.current = merged
	m.mu.Unlock()
	return nil
}

// hasPath reports whether a dotted key path was actually present in
// the decoded document, not merely defaulted to its zero value.
func hasPath(raw map[string]any, path ...string) bool {
	cur := raw
	for i, key := range path {
		v, ok := cur[key]
		if !ok {
			return false
		}
		if i == len(path)-1 {
			return true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return false
		}
		cur = next
	}
	return true
}

// deepMerge overlays override's fields onto base, field by field,
// mirroring ehrlich-b-wingthing's "file overrides default" loading
// convention without collapsing to an untyped map. Scalars that are
// unambiguously absent-vs-zero (strings, slices, non-zero numbers) are
// merged on the override value alone; booleans are only overwritten
// when raw confirms the key was actually present in the loaded file.
func deepMerge(base, override Config, raw map[string]any) Config {
	if override.App.Name != "" {
		base.App.Name = override.App.Name
	}
	if override.App.LogLevel != "" {
		base.App.LogLevel = override.App.LogLevel
	}
	if override.Server.Host != "" {
		base.Server.Host = override.Server.Host
	}
	if override.Server.Port != 0 {
		base.Server.Port = override.Server.Port
	}
	if len(override.Server.CORS.Origin) > 0 {
		base.Server.CORS.Origin = override.Server.CORS.Origin
	}
	if hasPath(raw, "server", "cors", "credentials") {
		base.Server.CORS.Credentials = override.Server.CORS.Credentials
	}
	if override.Terminal.DefaultShell != "" {
		base.Terminal.DefaultShell = override.Terminal.DefaultShell
	}
	if override.Terminal.DefaultCols != 0 {
		base.Terminal.DefaultCols = override.Terminal.DefaultCols
	}
	if override.Terminal.DefaultRows != 0 {
		base.Terminal.DefaultRows = override.Terminal.DefaultRows
	}
	if override.Terminal.MaxBufferSize != 0 {
		base.Terminal.MaxBufferSize = override.Terminal.MaxBufferSize
	}
	if hasPath(raw, "terminal", "coalesce_spinners") {
		base.Terminal.CoalesceSpinners = override.Terminal.CoalesceSpinners
	}
	if override.Terminal.SessionTimeoutMs != 0 {
		base.Terminal.SessionTimeoutMs = override.Terminal.SessionTimeoutMs
	}
	if hasPath(raw, "terminal", "enable_user_control") {
		base.Terminal.EnableUserControl = override.Terminal.EnableUserControl
	}
	if hasPath(raw, "mcp", "enabled") {
		base.MCP.Enabled = override.MCP.Enabled
	}
	if override.MCP.MountPath != "" {
		base.MCP.MountPath = override.MCP.MountPath
	}
	if override.MCP.ServerName != "" {
		base.MCP.ServerName = override.MCP.ServerName
	}
	if override.MCP.ServerVers != "" {
		base.MCP.ServerVers = override.MCP.ServerVers
	}
	if len(override.MCP.DisabledTools) > 0 {
		base.MCP.DisabledTools = override.MCP.DisabledTools
	}
	if len(override.MCP.AllowedHosts) > 0 {
		base.MCP.AllowedHosts = override.MCP.AllowedHosts
	}
	if hasPath(raw, "mcp", "enable_dns_rebinding_protection") {
		base.MCP.EnableDNSRebindingProtection = override.MCP.EnableDNSRebindingProtection
	}
	if hasPath(raw, "mcp", "command_blacklist", "case_insensitive") {
		base.MCP.CommandBlacklist.CaseInsensitive = override.MCP.CommandBlacklist.CaseInsensitive
	}
	if len(override.MCP.CommandBlacklist.Rules) > 0 {
		base.MCP.CommandBlacklist.Rules = override.MCP.CommandBlacklist.Rules
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if hasPath(raw, "logging", "enable_console") {
		base.Logging.EnableConsole = override.Logging.EnableConsole
	}
	if hasPath(raw, "logging", "enable_file") {
		base.Logging.EnableFile = override.Logging.EnableFile
	}
	if override.Logging.FilePath != "" {
		base.Logging.FilePath = override.Logging.FilePath
	}
	return base
}

func writeYAML(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Get returns a copy of the current config.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reload re-reads the config file from disk.
func (m *Manager) Reload() error {
	return m.load()
}

// Reset overwrites the config file with the built-in defaults and
// reloads, per spec.md §6's /api/settings/reset operation.
func (m *Manager) Reset() error {
	if err := writeYAML(m.path, Defaults()); err != nil {
		return fmt.Errorf("reset config: %w", err)
	}
	return m.load()
}

// WatchForChanges starts an fsnotify watcher on the config file and
// reloads on every write event, logging failures without crashing the
// process.
func (m *Manager) WatchForChanges() error {
	if m.watching {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := w.Add(m.path); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch config file: %w", err)
	}
	m.watcher = w
	m.watching = true

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := m.Reload(); err != nil {
						logrus.Errorf("config reload failed: %v", err)
					} else {
						logrus.Info("config reloaded")
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logrus.Errorf("config watcher error: %v", err)
			}
		}
	}()
	return nil
}

func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
