// Command termbrokerd runs the interactive terminal broker: it spawns
// and tracks named PTY sessions and exposes them through both an
// agent JSON-RPC tool protocol and an HTTP/WebSocket gateway for human
// clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/term-broker/termbroker/internal/api"
	"github.com/term-broker/termbroker/internal/blacklist"
	"github.com/term-broker/termbroker/internal/config"
	"github.com/term-broker/termbroker/internal/interact"
	"github.com/term-broker/termbroker/internal/mcpserver"
	"github.com/term-broker/termbroker/internal/terminal"
)

var (
	buildVersion = "dev"
	gitCommit    = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, continuing with process environment")
	}

	configPath := flag.String("config", "termbroker.yaml", "path to the broker's YAML settings file")
	flag.Parse()

	if code := run(*configPath); code != 0 {
		os.Exit(code)
	}
}

func run(configPath string) int {
	cfgManager, err := config.NewManager(configPath)
	if err != nil {
		logrus.Errorf("failed to load config: %v", err)
		return 1
	}
	cfg := cfgManager.Get()
	applyLogging(cfg.Logging)

	if err := cfgManager.WatchForChanges(); err != nil {
		logrus.Warnf("config hot-reload disabled: %v", err)
	}
	defer cfgManager.Close()

	idleTTL := time.Duration(cfg.Terminal.SessionTimeoutMs) * time.Millisecond

	registry := terminal.NewRegistry(cfg.Terminal.MaxBufferSize, cfg.Terminal.CoalesceSpinners, idleTTL)
	defer registry.Shutdown()

	bl := blacklist.New(cfg.MCP.CommandBlacklist.ToBlacklistRules(), cfg.MCP.CommandBlacklist.CaseInsensitive)
	orch := interact.New(registry, bl)

	router := api.SetupRouter(api.Deps{
		Orchestrator: orch,
		Config:       cfgManager,
		BuildVersion: buildVersion,
		GitCommit:    gitCommit,
	}, false)

	if cfg.MCP.Enabled {
		if _, err := mcpserver.NewServer(router, orch, cfg.MCP); err != nil {
			logrus.Errorf("failed to start mcp server: %v", err)
			return 1
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	serveErrCh := make(chan error, 1)
	go func() {
		logrus.Infof("terminal broker listening on %s", addr)
		serveErrCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case err := <-serveErrCh:
		if err != nil && err != http.ErrServerClosed {
			logrus.Errorf("server failed: %v", err)
			return 1
		}
	case sig := <-sigCh:
		logrus.Infof("received %s, shutting down", sig)
		shutdownHTTP(srv)
	}

	return 0
}

// shutdownHTTP stops accepting new connections and waits for
// in-flight requests to drain. The registry's own deferred Shutdown
// kills every PTY (SIGTERM, then SIGKILL after the per-session 2s
// grace window in pty.Close), per spec.md §6.
func shutdownHTTP(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Warnf("http server shutdown: %v", err)
	}
}

// applyLogging wires logrus's output to the configured sinks. Console
// and file sinks are independent switches per spec.md §6
// (logging.enable_console/enable_file/file_path); both may be active
// at once via io.MultiWriter.
func applyLogging(lc config.LoggingConfig) {
	if level, err := logrus.ParseLevel(lc.Level); err == nil {
		logrus.SetLevel(level)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var writers []io.Writer
	if lc.EnableConsole {
		writers = append(writers, os.Stderr)
	}
	if lc.EnableFile && lc.FilePath != "" {
		f, err := os.OpenFile(lc.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logrus.Warnf("logging.file_path %q unavailable: %v", lc.FilePath, err)
		} else {
			writers = append(writers, f)
		}
	}
	switch len(writers) {
	case 0:
		logrus.SetOutput(io.Discard)
	case 1:
		logrus.SetOutput(writers[0])
	default:
		logrus.SetOutput(io.MultiWriter(writers...))
	}
}
