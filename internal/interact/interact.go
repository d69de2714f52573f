// Package interact implements the single agent-facing "interact with
// a terminal" operation: write input, wait for output to settle, read
// back a normalized delta. Grounded on spec.md §4.F.
package interact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/term-broker/termbroker/internal/blacklist"
	"github.com/term-broker/termbroker/internal/broker"
	"github.com/term-broker/termbroker/internal/keys"
	"github.com/term-broker/termbroker/internal/terminal"
)

// InputKind distinguishes a literal text write from a key-token
// sequence, per spec.md §4.D/§4.F.
type InputKind string

const (
	InputText InputKind = "text"
	InputKeys InputKind = "keys"
)

// Request is the full parameter set of one interact_with_terminal
// call, shared verbatim by the MCP tool and the REST handler.
type Request struct {
	Name string

	Shell string
	Cwd   string
	Env   map[string]string
	Cols  uint16
	Rows  uint16

	InputKind     InputKind
	Text          string
	KeyTokens     []string
	KeySequence   []KeySequenceItem
	SpecialOp     string
	DelayMs       int
	AppendNewline *bool // nil means "decide per spec.md §4.B's default rule"

	Wait WaitSpec

	ReadMode  terminal.ReadMode
	MaxLines  int
	HeadLines int
	TailLines int
}

// KeySequenceItem is one explicit entry of spec.md §4.D's key_sequence
// array: either a named key token ("key") or literal text ("text"),
// with an optional per-item delay overriding the shared DelayMs.
type KeySequenceItem struct {
	Type         string // "key" or "text"
	Value        string
	DelayMsAfter *int
}

// WriteOutcome mirrors spec.md §4.F's `write` result block.
type WriteOutcome struct {
	AppendedNewline bool      `json:"appendedNewline"`
	BytesWritten    int       `json:"bytesWritten"`
	StartedAt       time.Time `json:"startedAt"`
}

// WaitResultInfo mirrors spec.md §4.F's `wait` result block.
type WaitResultInfo struct {
	Mode      string `json:"mode"`
	TimeoutMs int    `json:"timeoutMs"`
	Met       bool   `json:"met"`
	Reason    string `json:"reason"`
}

// ReadResultInfo mirrors spec.md §4.F's `read` result block.
type ReadResultInfo struct {
	Mode      string `json:"mode"`
	Since     int64  `json:"since"`
	Cursor    int64  `json:"cursor"`
	HasMore   bool   `json:"hasMore"`
	Truncated bool   `json:"truncated"`
}

// DeltaInfo mirrors spec.md §4.F's `delta` result block.
type DeltaInfo struct {
	Text  string `json:"text"`
	Bytes int    `json:"bytes"`
	Lines int    `json:"lines"`
}

// StatusInfo mirrors spec.md §4.F's `status` result block.
type StatusInfo struct {
	IsRunning            bool      `json:"isRunning"`
	HasPrompt            bool      `json:"hasPrompt"`
	PendingCommand       string    `json:"pendingCommand,omitempty"`
	LastCommand          string    `json:"lastCommand,omitempty"`
	PromptLine           string    `json:"promptLine,omitempty"`
	LastActivity         time.Time `json:"lastActivity"`
	AlternateScreen      bool      `json:"alternateScreen"`
	AwaitingInput        bool      `json:"awaitingInput"`
	RecommendedWaitMode  string    `json:"recommendedWaitMode"`
	RecommendationReason string    `json:"recommendationReason"`
}

// Result is the structured outcome of one interact call, per spec.md
// §4.F's response shape.
type Result struct {
	TerminalID      string `json:"terminalId"`
	TerminalName    string `json:"terminalName"`
	TerminalCreated bool   `json:"terminalCreated"`

	Write         WriteOutcome   `json:"write"`
	Wait          WaitResultInfo `json:"wait"`
	Read          ReadResultInfo `json:"read"`
	Delta         DeltaInfo      `json:"delta"`
	CommandOutput string         `json:"commandOutput"`
	Status        StatusInfo     `json:"status"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// Orchestrator wires the registry, key encoder, and blacklist together
// to service interact_with_terminal calls.
type Orchestrator struct {
	Registry  *terminal.Registry
	Blacklist *blacklist.List
}

func New(reg *terminal.Registry, bl *blacklist.List) *Orchestrator {
	return &Orchestrator{Registry: reg, Blacklist: bl}
}

// Interact performs one write/wait/read cycle against a session,
// auto-creating it if it does not yet exist.
func (o *Orchestrator) Interact(ctx context.Context, req Request) (*Result, error) {
	if err := terminal.ValidateName(req.Name); err != nil {
		return nil, err
	}

	sess, created, err := o.Registry.GetOrCreate(req.Name, req.Shell, req.Cwd, req.Env, defaultCols(req.Cols), defaultRows(req.Rows))
	if err != nil {
		return nil, err
	}

	result := &Result{
		TerminalID:      sess.ID,
		TerminalName:    sess.Name,
		TerminalCreated: created,
	}

	// spec.md §4.F: special_operation, key_sequence/keys, and plain text
	// are three mutually exclusive write modes. special_operation wins
	// over everything else, then an explicit key sequence or flat key
	// token list, and only then plain text.
	kind := req.InputKind
	text := req.Text
	tokens := req.KeyTokens
	switch {
	case req.SpecialOp != "":
		kind = InputKeys
	case len(req.KeySequence) > 0:
		kind = InputKeys
	case len(tokens) > 0:
		kind = InputKeys
	case kind == "":
		kind = InputText
	}

	// Plain text is checked against the blacklist before any keystroke
	// conversion below, so a converted write is checked too.
	if kind == InputText && text != "" {
		if err := o.Blacklist.Check(text); err != nil {
			return nil, err
		}
	}

	// A plain-text write with Enter into a session that is currently
	// interactive (per spec.md §4.F) is silently converted to a key
	// sequence of the text followed by an Enter key, plus a warning.
	appendNewline := resolveAppendNewline(req.AppendNewline, text)
	keySeq := req.KeySequence
	converted := false
	if kind == InputText && appendNewline && isInteractive(sess) && text != "" {
		kind = InputKeys
		tokens = nil
		keySeq = []KeySequenceItem{
			{Type: "text", Value: strings.TrimRight(text, "\r\n")},
			{Type: "key", Value: "enter"},
		}
		converted = true
		result.Warnings = append(result.Warnings, "terminal is interactive — inspect output and respond accordingly")
	}

	baseline := sess.Buffer().Cursor()
	startedAt := time.Now()

	bytesWritten, err := o.write(sess, kind, text, tokens, req.SpecialOp, keySeq, req.DelayMs, appendNewline)
	if err != nil {
		return nil, broker.Wrap(broker.KindWriteFailed, "write to session", err)
	}
	result.Write = WriteOutcome{
		AppendedNewline: (kind == InputText && appendNewline) || converted,
		BytesWritten:    bytesWritten,
		StartedAt:       startedAt,
	}

	// spec.md §4.F: sleep briefly so the kernel/PTY has a chance to
	// flush the first bytes before the wait loop starts polling.
	time.Sleep(200 * time.Millisecond)

	outcome := awaitCompletion(ctx, sess, baseline, req.Wait)
	result.Wait = WaitResultInfo{
		Mode:      string(req.Wait.Strategy),
		TimeoutMs: req.Wait.TimeoutMs,
		Met:       outcome.Met,
		Reason:    outcome.Reason,
	}

	output, readInfo := o.readOutput(sess, baseline, req)
	result.Read = readInfo
	result.CommandOutput = output
	result.Delta = DeltaInfo{
		Text:  output,
		Bytes: len(output),
		Lines: strings.Count(output, "\n") + boolToInt(output != ""),
	}

	snap := sess.Snapshot()
	result.Status = buildStatus(sess, snap)

	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// resolveAppendNewline applies spec.md §4.B's default: true for
// single-line plain text, false for multi-line input or input
// containing control bytes, unless the caller overrides it.
func resolveAppendNewline(override *bool, text string) bool {
	if override != nil {
		return *override
	}
	if strings.ContainsAny(text, "\n\r") {
		return false
	}
	for _, r := range text {
		if r < 0x20 && r != '\t' {
			return false
		}
	}
	return true
}

// isInteractive reports spec.md §4.F's "currently interactive" test:
// alternate screen, a pending command, or the awaiting-input heuristic.
func isInteractive(sess *terminal.Session) bool {
	snap := sess.Snapshot()
	return snap.AlternateScreen || snap.PendingCommand || sess.AwaitingInput()
}

func (o *Orchestrator) write(sess *terminal.Session, kind InputKind, text string, tokens []string, specialOp string, keySeq []KeySequenceItem, delayMs int, appendNewline bool) (int, error) {
	if kind == InputKeys {
		items, err := resolveKeyItems(specialOp, keySeq, text, tokens, delayMs)
		if err != nil {
			return 0, err
		}
		total := 0
		for i, item := range items {
			if err := sess.Write([]byte(item.Sequence)); err != nil {
				return total, err
			}
			total += len(item.Sequence)
			if i < len(items)-1 {
				time.Sleep(time.Duration(item.DelayMs) * time.Millisecond)
			}
		}
		return total, nil
	}
	payload := normalizeEnterBytes(text)
	if appendNewline && !strings.HasSuffix(payload, "\r") {
		payload += "\r"
	}
	if err := sess.Write([]byte(payload)); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// normalizeEnterBytes converts every line break in a text payload to a
// bare carriage return, mimicking a real TTY's Enter key, per spec.md
// §4.B's write contract.
func normalizeEnterBytes(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\r")
	s = strings.ReplaceAll(s, "\n", "\r")
	return s
}

// resolveKeyItems applies spec.md §4.D/§4.F's priority order: an
// explicit special_operation wins, then an ordered key_sequence, then
// the flat keys token list, then a comma-separated text fallback.
func resolveKeyItems(specialOp string, keySeq []KeySequenceItem, text string, tokens []string, delayMs int) ([]keys.Item, error) {
	if specialOp != "" {
		seq, err := keys.Encode(specialOp)
		if err != nil {
			return nil, err
		}
		return []keys.Item{{Sequence: seq}}, nil
	}
	if len(keySeq) > 0 {
		return resolveKeySequence(keySeq, delayMs)
	}
	if len(tokens) > 0 {
		return keys.ParseList(tokens, delayMs)
	}
	return keys.ParseCommaSeparated(text, delayMs)
}

// resolveKeySequence encodes spec.md §4.D's explicit key_sequence
// array, honoring each item's own delay_ms_after over the shared
// default.
func resolveKeySequence(items []KeySequenceItem, defaultDelay int) ([]keys.Item, error) {
	if defaultDelay <= 0 {
		defaultDelay = keys.DefaultInterItemDelayMs
	}
	out := make([]keys.Item, 0, len(items))
	for _, it := range items {
		var seq string
		var err error
		switch it.Type {
		case "text":
			seq = it.Value
		case "key", "":
			seq, err = keys.Encode(it.Value)
		default:
			return nil, broker.New(broker.KindValidationError, fmt.Sprintf("unknown key_sequence item type %q", it.Type))
		}
		if err != nil {
			return nil, err
		}
		delay := defaultDelay
		if it.DelayMsAfter != nil {
			delay = *it.DelayMsAfter
		}
		out = append(out, keys.Item{Sequence: seq, DelayMs: delay})
	}
	return out, nil
}

func (o *Orchestrator) readOutput(sess *terminal.Session, baseline int64, req Request) (string, ReadResultInfo) {
	snap := sess.Snapshot()
	mode := req.ReadMode
	if mode == "" {
		mode = terminal.ModeSmart
	}

	if snap.AlternateScreen || mode == terminal.ModeRaw {
		tail := sess.RawTail(8000)
		return Normalize(tail), ReadResultInfo{Mode: string(mode), Since: baseline, Cursor: sess.Buffer().Cursor()}
	}

	opts := terminal.SmartReadOptions{
		Since:     baseline,
		Mode:      mode,
		MaxLines:  req.MaxLines,
		HeadLines: req.HeadLines,
		TailLines: req.TailLines,
	}
	res := sess.Buffer().ReadSmart(opts)

	var b strings.Builder
	for i, e := range res.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Content)
	}
	normalized := Normalize(b.String())
	out, truncated := Truncate(normalized)

	return out, ReadResultInfo{
		Mode:      string(mode),
		Since:     baseline,
		Cursor:    res.NextCursor,
		HasMore:   res.HasMore,
		Truncated: truncated || res.Truncated,
	}
}

func buildStatus(sess *terminal.Session, snap terminal.SessionInfo) StatusInfo {
	awaiting := sess.AwaitingInput()
	st := StatusInfo{
		IsRunning:       snap.Status == terminal.StatusActive,
		HasPrompt:       snap.HasPrompt,
		PendingCommand:  boolToText(snap.PendingCommand, snap.LastCommand),
		LastCommand:     snap.LastCommand,
		PromptLine:      snap.LastPromptLine,
		LastActivity:    snap.LastActivity,
		AlternateScreen: snap.AlternateScreen,
		AwaitingInput:   awaiting,
	}
	switch {
	case st.AlternateScreen:
		st.RecommendedWaitMode = "pattern"
		st.RecommendationReason = "fullscreen app active; idle/prompt detection is unreliable in alternate screen"
	case awaiting:
		st.RecommendedWaitMode = "none"
		st.RecommendationReason = "session appears to be waiting on interactive input"
	case st.HasPrompt:
		st.RecommendedWaitMode = "none"
		st.RecommendationReason = "shell is back at a prompt"
	default:
		st.RecommendedWaitMode = "idle"
		st.RecommendationReason = "no prompt detected yet; wait for output to go quiet"
	}
	return st
}

func boolToText(pending bool, text string) string {
	if !pending {
		return ""
	}
	return text
}

func defaultCols(c uint16) uint16 {
	if c == 0 {
		return 120
	}
	return c
}

func defaultRows(r uint16) uint16 {
	if r == 0 {
		return 32
	}
	return r
}

// ListTerminals returns a snapshot of every tracked session.
func (o *Orchestrator) ListTerminals() []terminal.SessionInfo {
	return o.Registry.List()
}

// KillTerminal terminates the named/identified session.
func (o *Orchestrator) KillTerminal(name string) error {
	return o.Registry.Kill(name)
}
