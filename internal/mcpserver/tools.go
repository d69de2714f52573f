package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/term-broker/termbroker/internal/interact"
	"github.com/term-broker/termbroker/internal/terminal"
)

// WaitInput mirrors interact.WaitSpec as a JSON-schema-annotated
// struct, per spec.md §4.F's wait parameter shape.
type WaitInput struct {
	Strategy                  string `json:"strategy,omitempty" jsonschema:"Wait strategy: none, idle, prompt, pattern, or exit (default: idle)"`
	TimeoutMs                 *int   `json:"timeoutMs,omitempty" jsonschema:"Maximum time to wait in milliseconds (default: 30000)"`
	IdleMs                    *int   `json:"idleMs,omitempty" jsonschema:"Quiet period required for the idle strategy in milliseconds (default: 900)"`
	Pattern                   string `json:"pattern,omitempty" jsonschema:"Text or regular expression the pattern strategy waits for"`
	PatternRegex              *bool  `json:"patternRegex,omitempty" jsonschema:"Treat pattern as a regular expression instead of literal text (default: false)"`
	PatternCaseSensitive      *bool  `json:"patternCaseSensitive,omitempty" jsonschema:"Match pattern case-sensitively (default: false)"`
	IncludeIntermediateOutput *bool  `json:"includeIntermediateOutput,omitempty" jsonschema:"Accumulate every tick's output into the pattern-matching buffer (default: true)"`
}

// InteractInput is the input schema of interact_with_terminal.
type InteractInput struct {
	Name string `json:"name" jsonschema:"Terminal session name. Created automatically if it does not exist"`

	Shell *string           `json:"shell,omitempty" jsonschema:"Shell to launch when creating a new session"`
	Cwd   *string           `json:"cwd,omitempty" jsonschema:"Working directory for a newly created session"`
	Env   map[string]string `json:"env,omitempty" jsonschema:"Extra environment variables for a newly created session"`
	Cols  *int              `json:"cols,omitempty" jsonschema:"Terminal width for a newly created session"`
	Rows  *int              `json:"rows,omitempty" jsonschema:"Terminal height for a newly created session"`

	InputKind     string            `json:"inputKind,omitempty" jsonschema:"text or keys (default: text)"`
	Text          string            `json:"text,omitempty" jsonschema:"Literal text to write, e.g. a shell command"`
	Keys          []string          `json:"keys,omitempty" jsonschema:"Ordered key tokens to send, e.g. [ctrl+c, enter]"`
	KeySequence   []KeySequenceItem `json:"keySequence,omitempty" jsonschema:"Ordered key/text items, each with its own optional delay after it"`
	SpecialOp     string            `json:"specialOperation,omitempty" jsonschema:"A single key token to send directly, ignoring text/keys/keySequence"`
	DelayMs       *int              `json:"delayMs,omitempty" jsonschema:"Delay between successive key tokens in milliseconds (default: 30)"`
	AppendNewline *bool             `json:"appendNewline,omitempty" jsonschema:"Whether to append Enter after text; defaults to single-line heuristic"`

	Wait *WaitInput `json:"wait,omitempty" jsonschema:"Wait strategy applied after writing"`

	ReadMode  string `json:"readMode,omitempty" jsonschema:"head, tail, head-tail, or smart (default: smart)"`
	MaxLines  *int   `json:"maxLines,omitempty" jsonschema:"Maximum lines to return"`
	HeadLines *int   `json:"headLines,omitempty" jsonschema:"Lines to keep from the start in head-tail mode"`
	TailLines *int   `json:"tailLines,omitempty" jsonschema:"Lines to keep from the end in head-tail mode"`
}

// InteractOutput is the output schema of interact_with_terminal,
// mirroring spec.md §4.F's nested write/wait/read/delta/status result.
type InteractOutput struct {
	TerminalID      string `json:"terminalId"`
	TerminalName    string `json:"terminalName"`
	TerminalCreated bool   `json:"terminalCreated"`

	Write struct {
		AppendedNewline bool `json:"appendedNewline"`
		BytesWritten    int  `json:"bytesWritten"`
	} `json:"write"`

	Wait struct {
		Mode      string `json:"mode"`
		TimeoutMs int    `json:"timeoutMs"`
		Met       bool   `json:"met"`
		Reason    string `json:"reason"`
	} `json:"wait"`

	Read struct {
		Mode      string `json:"mode"`
		Since     int64  `json:"since"`
		Cursor    int64  `json:"cursor"`
		HasMore   bool   `json:"hasMore"`
		Truncated bool   `json:"truncated"`
	} `json:"read"`

	Delta struct {
		Text  string `json:"text"`
		Bytes int    `json:"bytes"`
		Lines int    `json:"lines"`
	} `json:"delta"`

	CommandOutput string `json:"commandOutput"`

	Status struct {
		IsRunning            bool   `json:"isRunning"`
		HasPrompt            bool   `json:"hasPrompt"`
		PendingCommand       string `json:"pendingCommand,omitempty"`
		LastCommand          string `json:"lastCommand,omitempty"`
		PromptLine           string `json:"promptLine,omitempty"`
		AlternateScreen      bool   `json:"alternateScreen"`
		AwaitingInput        bool   `json:"awaitingInput"`
		RecommendedWaitMode  string `json:"recommendedWaitMode"`
		RecommendationReason string `json:"recommendationReason"`
	} `json:"status"`

	Warnings []string `json:"warnings,omitempty"`
}

// KeySequenceItem is one explicit entry of interact_with_terminal's
// keySequence array, mirroring interact.KeySequenceItem.
type KeySequenceItem struct {
	Type         string `json:"type" jsonschema:"key or text"`
	Value        string `json:"value" jsonschema:"Key token when type is key, literal text when type is text"`
	DelayMsAfter *int   `json:"delayMsAfter,omitempty" jsonschema:"Delay after this item, overriding delayMs"`
}

type ListTerminalsInput struct{}

type TerminalSummary struct {
	Name      string `json:"name"`
	ID        string `json:"id"`
	Status    string `json:"status"`
	Shell     string `json:"shell"`
	Cwd       string `json:"cwd"`
	HasPrompt bool   `json:"hasPrompt"`
}

type ListTerminalsOutput struct {
	Terminals []TerminalSummary `json:"terminals"`
}

type KillTerminalInput struct {
	Name string `json:"name" jsonschema:"Terminal session name or id to terminate"`
}

type KillTerminalOutput struct {
	Killed bool `json:"killed"`
}

func (s *Server) registerTools() error {
	if !s.toolDisabled("interact_with_terminal") {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "interact_with_terminal",
			Description: "Write input to a named terminal session, wait for it to settle, and read back new output",
		}, LogToolCall("interact_with_terminal", s.handleInteract))
	}

	if !s.toolDisabled("list_terminals") {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "list_terminals",
			Description: "List all terminal sessions known to the broker",
		}, LogToolCall("list_terminals", s.handleListTerminals))
	}

	if !s.toolDisabled("kill_terminal") {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "kill_terminal",
			Description: "Terminate a terminal session by name or id",
		}, LogToolCall("kill_terminal", s.handleKillTerminal))
	}

	return nil
}

func (s *Server) handleInteract(ctx context.Context, req *mcp.CallToolRequest, input InteractInput) (*mcp.CallToolResult, InteractOutput, error) {
	ireq := interact.Request{
		Name:          input.Name,
		Shell:         strVal(input.Shell),
		Cwd:           strVal(input.Cwd),
		Env:           input.Env,
		Cols:          uint16(intVal(input.Cols)),
		Rows:          uint16(intVal(input.Rows)),
		InputKind:     interact.InputKind(defaultStr(input.InputKind, string(interact.InputText))),
		Text:          input.Text,
		KeyTokens:     input.Keys,
		KeySequence:   keySequenceFromInput(input.KeySequence),
		SpecialOp:     input.SpecialOp,
		DelayMs:       intVal(input.DelayMs),
		AppendNewline: input.AppendNewline,
		ReadMode:      terminal.ReadMode(defaultStr(input.ReadMode, string(terminal.ModeSmart))),
		MaxLines:      intVal(input.MaxLines),
		HeadLines:     intVal(input.HeadLines),
		TailLines:     intVal(input.TailLines),
	}
	ireq.Wait = waitSpecFromInput(input.Wait)

	result, err := s.orch.Interact(ctx, ireq)
	if err != nil {
		return nil, InteractOutput{}, err
	}

	out := InteractOutput{
		TerminalID:      result.TerminalID,
		TerminalName:    result.TerminalName,
		TerminalCreated: result.TerminalCreated,
		CommandOutput:   result.CommandOutput,
		Warnings:        result.Warnings,
	}
	out.Write.AppendedNewline = result.Write.AppendedNewline
	out.Write.BytesWritten = result.Write.BytesWritten
	out.Wait.Mode = result.Wait.Mode
	out.Wait.TimeoutMs = result.Wait.TimeoutMs
	out.Wait.Met = result.Wait.Met
	out.Wait.Reason = result.Wait.Reason
	out.Read.Mode = result.Read.Mode
	out.Read.Since = result.Read.Since
	out.Read.Cursor = result.Read.Cursor
	out.Read.HasMore = result.Read.HasMore
	out.Read.Truncated = result.Read.Truncated
	out.Delta.Text = result.Delta.Text
	out.Delta.Bytes = result.Delta.Bytes
	out.Delta.Lines = result.Delta.Lines
	out.Status.IsRunning = result.Status.IsRunning
	out.Status.HasPrompt = result.Status.HasPrompt
	out.Status.PendingCommand = result.Status.PendingCommand
	out.Status.LastCommand = result.Status.LastCommand
	out.Status.PromptLine = result.Status.PromptLine
	out.Status.AlternateScreen = result.Status.AlternateScreen
	out.Status.AwaitingInput = result.Status.AwaitingInput
	out.Status.RecommendedWaitMode = result.Status.RecommendedWaitMode
	out.Status.RecommendationReason = result.Status.RecommendationReason

	return nil, out, nil
}

func (s *Server) handleListTerminals(ctx context.Context, req *mcp.CallToolRequest, input ListTerminalsInput) (*mcp.CallToolResult, ListTerminalsOutput, error) {
	infos := s.orch.ListTerminals()
	out := make([]TerminalSummary, 0, len(infos))
	for _, info := range infos {
		out = append(out, TerminalSummary{
			Name:      info.Name,
			ID:        info.ID,
			Status:    string(info.Status),
			Shell:     info.Shell,
			Cwd:       info.Cwd,
			HasPrompt: info.HasPrompt,
		})
	}
	return nil, ListTerminalsOutput{Terminals: out}, nil
}

func (s *Server) handleKillTerminal(ctx context.Context, req *mcp.CallToolRequest, input KillTerminalInput) (*mcp.CallToolResult, KillTerminalOutput, error) {
	if err := s.orch.KillTerminal(input.Name); err != nil {
		return nil, KillTerminalOutput{}, err
	}
	return nil, KillTerminalOutput{Killed: true}, nil
}

func waitSpecFromInput(w *WaitInput) interact.WaitSpec {
	if w == nil {
		return interact.WaitSpec{Strategy: interact.WaitIdle}
	}
	timeoutMs := 30000
	if w.TimeoutMs != nil {
		timeoutMs = *w.TimeoutMs
	}
	return interact.WaitSpec{
		Strategy:                  interact.Strategy(defaultStr(w.Strategy, string(interact.WaitIdle))),
		TimeoutMs:                 timeoutMs,
		IdleMs:                    intVal(w.IdleMs),
		Pattern:                   w.Pattern,
		PatternRegex:              boolVal(w.PatternRegex),
		PatternCaseSensitive:      boolVal(w.PatternCaseSensitive),
		IncludeIntermediateOutput: w.IncludeIntermediateOutput,
	}
}

func keySequenceFromInput(items []KeySequenceItem) []interact.KeySequenceItem {
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

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func intVal(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func boolVal(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
