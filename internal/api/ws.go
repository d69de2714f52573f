package api

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/term-broker/termbroker/internal/config"
	"github.com/term-broker/termbroker/internal/interact"
	"github.com/term-broker/termbroker/internal/terminal"
)

// wsHandler streams a single session's output to a human UI client and
// forwards its input/resize messages back to the PTY. Grounded on
// src/handler/terminal.go's HandleTerminalWS: upgrade, replay buffered
// output, subscriber-channel fanout goroutine, read loop dispatch.
type wsHandler struct {
	orch     *interact.Orchestrator
	cfg      *config.Manager
	upgrader websocket.Upgrader
}

// wsMessage mirrors spec.md §4.H's literal fanout shape: {type,
// terminal_id, data}. terminal_id is set on every "output" and "exit"
// message so a UI subscribed to more than one session can tell them
// apart; "error" messages carry no terminal_id.
type wsMessage struct {
	Type       string `json:"type"` // "input", "output", "resize", "exit", "error"
	TerminalID string `json:"terminal_id,omitempty"`
	Data       string `json:"data,omitempty"`
	Cols       uint16 `json:"cols,omitempty"`
	Rows       uint16 `json:"rows,omitempty"`
}

func (h *wsHandler) handleWS(c *gin.Context) {
	if h.upgrader.ReadBufferSize == 0 {
		h.upgrader = websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		}
	}

	cols := uint16(120)
	rows := uint16(32)
	if v, err := strconv.ParseUint(c.Query("cols"), 10, 16); err == nil {
		cols = uint16(v)
	}
	if v, err := strconv.ParseUint(c.Query("rows"), 10, 16); err == nil {
		rows = uint16(v)
	}
	shell := c.Query("shell")
	cwd := c.Query("cwd")
	name := c.DefaultQuery("name", "default")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("failed to upgrade websocket: %v", err)
		return
	}
	defer conn.Close()

	sess, _, err := h.orch.Registry.GetOrCreate(name, shell, cwd, nil, cols, rows)
	if err != nil {
		logrus.Errorf("failed to create terminal session: %v", err)
		_ = conn.WriteJSON(wsMessage{Type: "error", Data: err.Error()})
		return
	}

	latest := sess.Buffer().GetLatest(0)
	if len(latest) > 0 {
		var buf []byte
		for i, e := range latest {
			if i > 0 {
				buf = append(buf, '\n')
			}
			buf = append(buf, []byte(e.Content)...)
		}
		_ = conn.WriteJSON(wsMessage{Type: "output", TerminalID: sess.ID, Data: string(buf)})
	}

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	outputCh := make(chan []terminal.Entry, 16)
	sess.Buffer().OnData(func(entries []terminal.Entry) {
		select {
		case outputCh <- entries:
		default:
		}
	})

	exitCh := make(chan struct{}, 1)
	sess.OnExit(func() {
		select {
		case exitCh <- struct{}{}:
		default:
		}
	})

	go func() {
		for {
			select {
			case entries, ok := <-outputCh:
				if !ok {
					closeDone()
					return
				}
				for _, e := range entries {
					if err := conn.WriteJSON(wsMessage{Type: "output", TerminalID: sess.ID, Data: e.Content}); err != nil {
						closeDone()
						return
					}
				}
			case <-exitCh:
				_ = conn.WriteJSON(wsMessage{Type: "exit", TerminalID: sess.ID})
				closeDone()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			closeDone()
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logrus.Warnf("invalid terminal message: %v", err)
			continue
		}

		if (msg.Type == "input") && h.cfg != nil && !h.cfg.Get().Terminal.EnableUserControl {
			_ = conn.WriteJSON(wsMessage{Type: "error", Data: "user control is disabled"})
			continue
		}

		switch msg.Type {
		case "input":
			if err := sess.Write([]byte(msg.Data)); err != nil {
				logrus.Warnf("failed to write to pty: %v", err)
			}
		case "resize":
			if msg.Cols > 0 && msg.Rows > 0 {
				if err := sess.Resize(msg.Cols, msg.Rows); err != nil {
					logrus.Warnf("failed to resize pty: %v", err)
				}
			}
		}
	}
}
