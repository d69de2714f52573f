// Package config holds the terminal broker's typed configuration,
// loaded from a YAML file with deep-merge over built-in defaults. No
// dynamic/untyped config maps: every known key has a field, per
// spec.md §6.
//
// Grounded on ehrlich-b-wingthing/internal/config/wing.go's yaml.v3
// struct-tag config pattern.
package config

import "github.com/term-broker/termbroker/internal/blacklist"

// AppConfig holds process-identity level settings.
type AppConfig struct {
	Name     string `yaml:"name,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
}

// CORSConfig holds the gateway's cross-origin policy.
type CORSConfig struct {
	Origin      []string `yaml:"origin,omitempty"`
	Credentials bool     `yaml:"credentials,omitempty"`
}

// ServerConfig holds the HTTP/WebSocket gateway's bind and CORS settings.
type ServerConfig struct {
	Host string     `yaml:"host,omitempty"`
	Port int        `yaml:"port,omitempty"`
	CORS CORSConfig `yaml:"cors,omitempty"`
}

// TerminalConfig holds defaults applied to newly created sessions.
type TerminalConfig struct {
	DefaultShell      string `yaml:"default_shell,omitempty"`
	DefaultCols       int    `yaml:"default_cols,omitempty"`
	DefaultRows       int    `yaml:"default_rows,omitempty"`
	MaxBufferSize     int    `yaml:"max_buffer_size,omitempty"`
	CoalesceSpinners  bool   `yaml:"coalesce_spinners,omitempty"`
	SessionTimeoutMs  int64  `yaml:"session_timeout,omitempty"`
	EnableUserControl bool   `yaml:"enable_user_control,omitempty"`
}

// BlacklistRule is one configured command-blacklist entry.
type BlacklistRule struct {
	Command string `yaml:"command"`
	Message string `yaml:"message,omitempty"`
}

// CommandBlacklistConfig holds the §4.E command-denylist policy.
type CommandBlacklistConfig struct {
	CaseInsensitive bool            `yaml:"case_insensitive,omitempty"`
	Rules           []BlacklistRule `yaml:"rules,omitempty"`
}

// ToBlacklistRules converts the configured blacklist entries to
// blacklist.Rule values for blacklist.New.
func (c CommandBlacklistConfig) ToBlacklistRules() []blacklist.Rule {
	out := make([]blacklist.Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		out = append(out, blacklist.Rule{Command: r.Command, Message: r.Message})
	}
	return out
}

// MCPConfig holds the agent tool protocol layer's settings.
type MCPConfig struct {
	Enabled                      bool                   `yaml:"enabled,omitempty"`
	MountPath                    string                 `yaml:"mount_path,omitempty"`
	ServerName                   string                 `yaml:"server_name,omitempty"`
	ServerVers                   string                 `yaml:"server_version,omitempty"`
	DisabledTools                []string               `yaml:"disabled_tools,omitempty"`
	AllowedHosts                 []string               `yaml:"allowed_hosts,omitempty"`
	EnableDNSRebindingProtection bool                   `yaml:"enable_dns_rebinding_protection,omitempty"`
	CommandBlacklist             CommandBlacklistConfig `yaml:"command_blacklist,omitempty"`
}

// LoggingConfig holds logrus output settings.
type LoggingConfig struct {
	Level         string `yaml:"level,omitempty"`
	EnableConsole bool   `yaml:"enable_console,omitempty"`
	EnableFile    bool   `yaml:"enable_file,omitempty"`
	FilePath      string `yaml:"file_path,omitempty"`
}

// Config is the full, typed configuration tree persisted in the
// broker's YAML settings file.
type Config struct {
	App      AppConfig      `yaml:"app,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
	Terminal TerminalConfig `yaml:"terminal,omitempty"`
	MCP      MCPConfig      `yaml:"mcp,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// Defaults returns the built-in configuration every loaded file is
// deep-merged over.
func Defaults() Config {
	return Config{
		App: AppConfig{
			Name:     "termbrokerd",
			LogLevel: "info",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 1106,
			CORS: CORSConfig{
				Origin:      []string{"http://localhost:1107", "http://127.0.0.1:1107"},
				Credentials: true,
			},
		},
		Terminal: TerminalConfig{
			DefaultShell:      "",
			DefaultCols:       120,
			DefaultRows:       32,
			MaxBufferSize:     10000,
			CoalesceSpinners:  true,
			SessionTimeoutMs:  86_400_000,
			EnableUserControl: false,
		},
		MCP: MCPConfig{
			Enabled:                      true,
			MountPath:                    "/mcp",
			ServerName:                   "Terminal Broker",
			ServerVers:                   "1.0.0",
			DisabledTools:                []string{},
			AllowedHosts:                 []string{"127.0.0.1", "localhost", "localhost:1106"},
			EnableDNSRebindingProtection: false,
			CommandBlacklist: CommandBlacklistConfig{
				CaseInsensitive: true,
				Rules:           []BlacklistRule{},
			},
		},
		Logging: LoggingConfig{
			Level:         "info",
			EnableConsole: true,
			EnableFile:    false,
			FilePath:      "",
		},
	}
}
