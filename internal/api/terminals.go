package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/term-broker/termbroker/internal/broker"
	"github.com/term-broker/termbroker/internal/config"
	"github.com/term-broker/termbroker/internal/interact"
	"github.com/term-broker/termbroker/internal/terminal"
)

type terminalsHandler struct {
	*BaseHandler
	orch *interact.Orchestrator
	cfg  *config.Manager
}

// requireUserControl rejects mutating requests from the human UI when
// terminal.enable_user_control is false, per spec.md §6. The agent
// tool protocol (mcpserver) is unaffected — this gate applies only to
// the REST surface.
func (h *terminalsHandler) requireUserControl(c *gin.Context) bool {
	if h.cfg != nil && !h.cfg.Get().Terminal.EnableUserControl {
		h.SendError(c, http.StatusForbidden, string(broker.KindValidationError), "user control is disabled")
		return false
	}
	return true
}

type sessionResponse struct {
	Name            string `json:"name"`
	ID              string `json:"id"`
	Pid             int    `json:"pid"`
	Shell           string `json:"shell"`
	Cwd             string `json:"cwd"`
	Cols            uint16 `json:"cols"`
	Rows            uint16 `json:"rows"`
	Status          string `json:"status"`
	HasPrompt       bool   `json:"hasPrompt"`
	PendingCommand  bool   `json:"pendingCommand"`
	LastCommand     string `json:"lastCommand,omitempty"`
	AlternateScreen bool   `json:"alternateScreen"`
}

func toSessionResponse(info terminal.SessionInfo) sessionResponse {
	return sessionResponse{
		Name:            info.Name,
		ID:              info.ID,
		Pid:             info.Pid,
		Shell:           info.Shell,
		Cwd:             info.Cwd,
		Cols:            info.Cols,
		Rows:            info.Rows,
		Status:          string(info.Status),
		HasPrompt:       info.HasPrompt,
		PendingCommand:  info.PendingCommand,
		LastCommand:     info.LastCommand,
		AlternateScreen: info.AlternateScreen,
	}
}

func (h *terminalsHandler) handleList(c *gin.Context) {
	infos := h.orch.ListTerminals()
	out := make([]sessionResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, toSessionResponse(info))
	}
	h.SendJSON(c, http.StatusOK, gin.H{"terminals": out})
}

// createTerminalRequest mirrors spec.md §6's literal POST /api/terminals
// body: `{terminalName, shell?, cwd?, env?}`.
type createTerminalRequest struct {
	TerminalName string            `json:"terminalName" binding:"required"`
	Shell        string            `json:"shell"`
	Cwd          string            `json:"cwd"`
	Env          map[string]string `json:"env"`
	Cols         uint16            `json:"cols"`
	Rows         uint16            `json:"rows"`
}

type createTerminalResponse struct {
	TerminalID string `json:"terminalId"`
	Pid        int    `json:"pid"`
	Shell      string `json:"shell"`
	Cwd        string `json:"cwd"`
	Status     string `json:"status"`
}

func (h *terminalsHandler) handleCreate(c *gin.Context) {
	var req createTerminalRequest
	if err := h.BindJSON(c, &req); err != nil {
		h.SendError(c, http.StatusBadRequest, string(broker.KindValidationError), err.Error())
		return
	}

	sess, err := h.orch.Registry.Create(req.TerminalName, req.Shell, req.Cwd, req.Env, defaultUint(req.Cols, 120), defaultUint(req.Rows, 32))
	if err != nil {
		h.writeBrokerError(c, err)
		return
	}
	info := sess.Snapshot()
	h.SendJSON(c, http.StatusCreated, createTerminalResponse{
		TerminalID: info.ID,
		Pid:        info.Pid,
		Shell:      info.Shell,
		Cwd:        info.Cwd,
		Status:     string(info.Status),
	})
}

func (h *terminalsHandler) handleGet(c *gin.Context) {
	id, _ := h.GetPathParam(c, "id")
	sess, err := h.orch.Registry.Resolve(id)
	if err != nil {
		h.writeBrokerError(c, err)
		return
	}
	h.SendJSON(c, http.StatusOK, toSessionResponse(sess.Snapshot()))
}

func (h *terminalsHandler) handleDelete(c *gin.Context) {
	if !h.requireUserControl(c) {
		return
	}
	id, _ := h.GetPathParam(c, "id")
	// signal is accepted for REST compatibility with spec.md §6; the
	// session engine always performs a SIGTERM-then-SIGKILL sequence
	// regardless of the requested signal (see terminal.pty_.Close).
	_ = c.Query("signal")
	if err := h.orch.KillTerminal(id); err != nil {
		h.writeBrokerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type killFailure struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (h *terminalsHandler) handleKillAll(c *gin.Context) {
	if !h.requireUserControl(c) {
		return
	}
	infos := h.orch.ListTerminals()
	killed := 0
	failed := make([]killFailure, 0)
	for _, info := range infos {
		if info.Status != terminal.StatusActive {
			continue
		}
		if err := h.orch.KillTerminal(info.ID); err != nil {
			failed = append(failed, killFailure{ID: info.ID, Message: err.Error()})
			continue
		}
		killed++
	}
	h.SendJSON(c, http.StatusOK, gin.H{
		"success": len(failed) == 0,
		"total":   len(infos),
		"killed":  killed,
		"failed":  failed,
	})
}

// inputRequest mirrors spec.md §6's literal POST .../input body
// (`{input, appendNewline?}`) plus the richer keys/wait/read controls
// from §4.F that the REST surface exposes as optional extensions.
type keySequenceItemRequest struct {
	Type         string `json:"type"`
	Value        string `json:"value"`
	DelayMsAfter *int   `json:"delayMsAfter"`
}

type inputRequest struct {
	Input         string                   `json:"input"`
	AppendNewline *bool                    `json:"appendNewline"`
	Keys          []string                 `json:"keys"`
	KeySequence   []keySequenceItemRequest `json:"keySequence"`
	SpecialOp     string                   `json:"specialOperation"`
	InputKind     string                   `json:"inputKind"`
	DelayMs       int                      `json:"delayMs"`
	Wait          struct {
		Strategy                  string `json:"strategy"`
		TimeoutMs                 int    `json:"timeoutMs"`
		IdleMs                    int    `json:"idleMs"`
		Pattern                   string `json:"pattern"`
		PatternRegex              bool   `json:"patternRegex"`
		PatternCaseSensitive      bool   `json:"patternCaseSensitive"`
		IncludeIntermediateOutput *bool  `json:"includeIntermediateOutput"`
	} `json:"wait"`
	ReadMode  string `json:"readMode"`
	MaxLines  int    `json:"maxLines"`
	HeadLines int    `json:"headLines"`
	TailLines int    `json:"tailLines"`
}

func (h *terminalsHandler) handleInput(c *gin.Context) {
	if !h.requireUserControl(c) {
		return
	}
	id, _ := h.GetPathParam(c, "id")
	var req inputRequest
	if err := h.BindJSON(c, &req); err != nil {
		h.SendError(c, http.StatusBadRequest, string(broker.KindValidationError), err.Error())
		return
	}

	kind := interact.InputKind(req.InputKind)
	if kind == "" {
		kind = interact.InputText
	}
	strategy := interact.Strategy(req.Wait.Strategy)
	if strategy == "" {
		strategy = interact.WaitIdle
	}
	readMode := terminal.ReadMode(req.ReadMode)
	if readMode == "" {
		readMode = terminal.ModeSmart
	}

	result, err := h.orch.Interact(context.Background(), interact.Request{
		Name:          id,
		InputKind:     kind,
		Text:          req.Input,
		KeyTokens:     req.Keys,
		KeySequence:   keySequenceFromRequest(req.KeySequence),
		SpecialOp:     req.SpecialOp,
		DelayMs:       req.DelayMs,
		AppendNewline: req.AppendNewline,
		Wait: interact.WaitSpec{
			Strategy:                  strategy,
			TimeoutMs:                 req.Wait.TimeoutMs,
			IdleMs:                    req.Wait.IdleMs,
			Pattern:                   req.Wait.Pattern,
			PatternRegex:              req.Wait.PatternRegex,
			PatternCaseSensitive:      req.Wait.PatternCaseSensitive,
			IncludeIntermediateOutput: req.Wait.IncludeIntermediateOutput,
		},
		ReadMode:  readMode,
		MaxLines:  req.MaxLines,
		HeadLines: req.HeadLines,
		TailLines: req.TailLines,
	})
	if err != nil {
		h.writeBrokerError(c, err)
		return
	}
	h.SendJSON(c, http.StatusOK, result)
}

// outputResponse mirrors spec.md §6's literal `GET .../output` shape:
// `{output, totalLines, hasMore, cursor, truncated?, stats?, status?}`.
type outputResponse struct {
	Output     string          `json:"output"`
	TotalLines int64           `json:"totalLines"`
	HasMore    bool            `json:"hasMore"`
	Cursor     int64           `json:"cursor"`
	Truncated  bool            `json:"truncated,omitempty"`
	Stats      terminal.Stats  `json:"stats,omitempty"`
	Status     sessionResponse `json:"status,omitempty"`
}

func (h *terminalsHandler) handleOutput(c *gin.Context) {
	id, _ := h.GetPathParam(c, "id")
	sess, err := h.orch.Registry.Resolve(id)
	if err != nil {
		h.writeBrokerError(c, err)
		return
	}

	since := queryInt64(c, "since", 0)
	maxLines := queryInt(c, "maxLines", 0)
	mode := terminal.ReadMode(c.DefaultQuery("mode", string(terminal.ModeSmart)))

	res := sess.Buffer().ReadSmart(terminal.SmartReadOptions{
		Since:    since,
		Mode:     mode,
		MaxLines: maxLines,
	})

	var b strings.Builder
	for i, e := range res.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Content)
	}

	h.SendJSON(c, http.StatusOK, outputResponse{
		Output:     b.String(),
		TotalLines: res.TotalLines,
		HasMore:    res.HasMore,
		Cursor:     res.NextCursor,
		Truncated:  res.Truncated,
		Stats:      sess.Buffer().GetStats(),
		Status:     toSessionResponse(sess.Snapshot()),
	})
}

func (h *terminalsHandler) handleStats(c *gin.Context) {
	id, _ := h.GetPathParam(c, "id")
	sess, err := h.orch.Registry.Resolve(id)
	if err != nil {
		h.writeBrokerError(c, err)
		return
	}
	h.SendJSON(c, http.StatusOK, sess.Buffer().GetStats())
}

type resizeRequest struct {
	Cols uint16 `json:"cols" binding:"required"`
	Rows uint16 `json:"rows" binding:"required"`
}

func (h *terminalsHandler) handleResize(c *gin.Context) {
	id, _ := h.GetPathParam(c, "id")
	var req resizeRequest
	if err := h.BindJSON(c, &req); err != nil {
		h.SendError(c, http.StatusBadRequest, string(broker.KindValidationError), err.Error())
		return
	}
	sess, err := h.orch.Registry.Resolve(id)
	if err != nil {
		h.writeBrokerError(c, err)
		return
	}
	if err := sess.Resize(req.Cols, req.Rows); err != nil {
		h.writeBrokerError(c, broker.Wrap(broker.KindWriteFailed, "resize session", err))
		return
	}
	c.Status(http.StatusNoContent)
}

func keySequenceFromRequest(items []keySequenceItemRequest) []interact.KeySequenceItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]interact.KeySequenceItem, 0, len(items))
	for _, it := range items {
		out = append(out, interact.KeySequenceItem{
			Type:         it.Type,
			Value:        it.Value,
			DelayMsAfter: it.DelayMsAfter,
		})
	}
	return out
}

func defaultUint(v uint16, def uint16) uint16 {
	if v == 0 {
		return def
	}
	return v
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryInt64(c *gin.Context, key string, def int64) int64 {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
