package api

import (
	"github.com/gin-gonic/gin"

	"github.com/term-broker/termbroker/internal/config"
	"github.com/term-broker/termbroker/internal/interact"
)

// Deps bundles everything the gateway's routes need.
type Deps struct {
	Orchestrator *interact.Orchestrator
	Config       *config.Manager
	BuildVersion string
	GitCommit    string
}

// SetupRouter builds the gin engine and registers every route spec.md
// §4.H/§7 names: health, terminals CRUD + io, settings, and the
// websocket gateway.
func SetupRouter(deps Deps, disableRequestLogging bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	cfg := deps.Config.Get()
	r.Use(corsMiddleware(cfg.Server.CORS.Origin, cfg.Server.CORS.Credentials))
	r.Use(noCacheMiddleware())
	r.Use(processingTimeMiddleware())
	if !disableRequestLogging {
		r.Use(logrusMiddleware())
	}

	head := headHandler()

	th := &terminalsHandler{BaseHandler: &BaseHandler{}, orch: deps.Orchestrator, cfg: deps.Config}
	sh := &settingsHandler{BaseHandler: &BaseHandler{}, cfg: deps.Config}
	hh := &healthHandler{BaseHandler: &BaseHandler{}, orch: deps.Orchestrator, version: deps.BuildVersion, commit: deps.GitCommit}
	wh := &wsHandler{orch: deps.Orchestrator, cfg: deps.Config}

	r.GET("/health", hh.handleHealth)
	r.HEAD("/health", head)

	r.GET("/api/version", hh.handleVersion)
	r.HEAD("/api/version", head)

	r.GET("/api/terminals", th.handleList)
	r.HEAD("/api/terminals", head)
	r.POST("/api/terminals", th.handleCreate)
	r.POST("/api/terminals/kill-all", th.handleKillAll)
	r.GET("/api/terminals/:id", th.handleGet)
	r.HEAD("/api/terminals/:id", head)
	r.DELETE("/api/terminals/:id", th.handleDelete)
	r.POST("/api/terminals/:id/input", th.handleInput)
	r.GET("/api/terminals/:id/output", th.handleOutput)
	r.GET("/api/terminals/:id/stats", th.handleStats)
	r.PUT("/api/terminals/:id/resize", th.handleResize)

	r.GET("/api/settings", sh.handleGet)
	r.POST("/api/settings", sh.handlePatch)
	r.POST("/api/settings/reset", sh.handleReset)
	r.GET("/api/settings/reload", sh.handleReload)

	r.GET("/ws", wh.handleWS)

	return r
}
