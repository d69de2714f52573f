package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/term-broker/termbroker/internal/interact"
)

type healthHandler struct {
	*BaseHandler
	orch    *interact.Orchestrator
	version string
	commit  string
}

// healthResponse mirrors spec.md §6's `GET /health` shape exactly:
// `{status, timestamp, stats}`.
type healthResponse struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Stats     healthStats `json:"stats"`
}

type healthStats struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Terminated int `json:"terminated"`
}

func (h *healthHandler) handleHealth(c *gin.Context) {
	stats := h.orch.Registry.Stats()
	h.SendJSON(c, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Stats:     healthStats{Total: stats.Total, Active: stats.Active, Terminated: stats.Terminated},
	})
}

// versionResponse mirrors spec.md §6's `GET /api/version` shape. The
// version-check service is an external collaborator (spec.md §1), so
// latestVersion/updateAvailable are reported statically rather than
// resolved over the network.
type versionResponse struct {
	CurrentVersion  string    `json:"currentVersion"`
	LatestVersion   string    `json:"latestVersion,omitempty"`
	UpdateAvailable bool      `json:"updateAvailable"`
	LastCheckedAt   time.Time `json:"lastCheckedAt"`
	Error           string    `json:"error,omitempty"`
}

func (h *healthHandler) handleVersion(c *gin.Context) {
	h.SendJSON(c, http.StatusOK, versionResponse{
		CurrentVersion:  h.version,
		UpdateAvailable: false,
		LastCheckedAt:   processStart,
	})
}

var processStart = time.Now()
