package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/term-broker/termbroker/internal/broker"
	"github.com/term-broker/termbroker/internal/config"
)

type settingsHandler struct {
	*BaseHandler
	cfg *config.Manager
}

func (h *settingsHandler) handleGet(c *gin.Context) {
	h.SendJSON(c, http.StatusOK, h.cfg.Get())
}

// handlePatch deep-merges a partial config body onto the current
// config and persists it through the comment-preserving YAML editor,
// per spec.md §6's POST /api/settings contract. The body may name any
// subset of keys at any depth, e.g. {"terminal": {"default_cols": 100}}.
func (h *settingsHandler) handlePatch(c *gin.Context) {
	var body map[string]any
	if err := h.BindJSON(c, &body); err != nil {
		h.SendError(c, http.StatusBadRequest, string(broker.KindValidationError), err.Error())
		return
	}
	if err := h.cfg.ApplyMerge(body); err != nil {
		h.SendError(c, http.StatusInternalServerError, string(broker.KindInternalError), err.Error())
		return
	}
	h.SendJSON(c, http.StatusOK, h.cfg.Get())
}

func (h *settingsHandler) handleReset(c *gin.Context) {
	if err := h.cfg.Reset(); err != nil {
		h.SendError(c, http.StatusInternalServerError, string(broker.KindInternalError), err.Error())
		return
	}
	h.SendJSON(c, http.StatusOK, h.cfg.Get())
}

func (h *settingsHandler) handleReload(c *gin.Context) {
	if err := h.cfg.Reload(); err != nil {
		h.SendError(c, http.StatusInternalServerError, string(broker.KindInternalError), err.Error())
		return
	}
	h.SendJSON(c, http.StatusOK, h.cfg.Get())
}
