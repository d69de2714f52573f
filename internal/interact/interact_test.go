package interact

import (
	"context"
	"strings"
	"testing"

	"github.com/term-broker/termbroker/internal/blacklist"
	"github.com/term-broker/termbroker/internal/terminal"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	reg := terminal.NewRegistry(200, true, 0)
	t.Cleanup(reg.Shutdown)
	bl := blacklist.New(blacklist.DefaultRules, true)
	return New(reg, bl)
}

func TestInteractCreatesSessionAndRunsCommand(t *testing.T) {
	o := newTestOrchestrator(t)

	result, err := o.Interact(context.Background(), Request{
		Name:      "smoke",
		Shell:     "/bin/sh",
		InputKind: InputText,
		Text:      "echo hello-world",
		Wait:      WaitSpec{Strategy: WaitIdle, TimeoutMs: 3000, IdleMs: 300},
	})
	if err != nil {
		t.Fatalf("Interact: %v", err)
	}
	if !result.TerminalCreated {
		t.Fatalf("expected a new session to be created")
	}
	if result.TerminalName != "smoke" {
		t.Fatalf("expected terminal name 'smoke', got %q", result.TerminalName)
	}
	if !result.Write.AppendedNewline {
		t.Fatalf("expected single-line text to append a newline by default")
	}
	if result.Write.BytesWritten == 0 {
		t.Fatalf("expected a non-zero byte count")
	}
	if result.Wait.Mode != string(WaitIdle) {
		t.Fatalf("expected wait mode %q, got %q", WaitIdle, result.Wait.Mode)
	}
	if !strings.Contains(result.CommandOutput, "hello-world") {
		t.Fatalf("expected command output to contain echoed text, got %q", result.CommandOutput)
	}
	if result.Delta.Text != result.CommandOutput {
		t.Fatalf("expected delta.text to mirror commandOutput")
	}
}

func TestInteractReusesExistingSession(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	first, err := o.Interact(ctx, Request{Name: "reuse", Shell: "/bin/sh", Wait: WaitSpec{Strategy: WaitIdle, TimeoutMs: 2000, IdleMs: 300}})
	if err != nil {
		t.Fatalf("first Interact: %v", err)
	}
	if !first.TerminalCreated {
		t.Fatalf("expected first call to create the session")
	}

	second, err := o.Interact(ctx, Request{Name: "reuse", InputKind: InputText, Text: "echo again", Wait: WaitSpec{Strategy: WaitIdle, TimeoutMs: 2000, IdleMs: 300}})
	if err != nil {
		t.Fatalf("second Interact: %v", err)
	}
	if second.TerminalCreated {
		t.Fatalf("expected second call to reuse the existing session")
	}
	if second.TerminalID != first.TerminalID {
		t.Fatalf("expected stable terminal id across calls")
	}
}

func TestInteractBlocksBlacklistedCommand(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.Interact(context.Background(), Request{
		Name:      "danger",
		Shell:     "/bin/sh",
		InputKind: InputText,
		Text:      "rm -rf /",
	})
	if err == nil {
		t.Fatalf("expected blacklisted command to be rejected")
	}
}

func TestInteractRejectsUUIDShapedName(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.Interact(context.Background(), Request{
		Name: "550e8400-e29b-41d4-a716-446655440000",
	})
	if err == nil {
		t.Fatalf("expected uuid-shaped name to be rejected")
	}
}

func TestInteractSpecialOperationIgnoresTextAndKeys(t *testing.T) {
	o := newTestOrchestrator(t)

	result, err := o.Interact(context.Background(), Request{
		Name:      "special-op",
		Shell:     "/bin/sh",
		InputKind: InputText,
		Text:      "this should be ignored",
		KeyTokens: []string{"text:also ignored", "enter"},
		SpecialOp: "ctrl+c",
		Wait:      WaitSpec{Strategy: WaitIdle, TimeoutMs: 2000, IdleMs: 300},
	})
	if err != nil {
		t.Fatalf("Interact: %v", err)
	}
	if result.Write.BytesWritten != 1 {
		t.Fatalf("expected a single control byte written for ctrl+c, got %d", result.Write.BytesWritten)
	}
}

func TestInteractKeySequenceHonorsPerItemDelay(t *testing.T) {
	o := newTestOrchestrator(t)
	delay := 5

	result, err := o.Interact(context.Background(), Request{
		Name:      "key-sequence",
		Shell:     "/bin/sh",
		InputKind: InputKeys,
		KeySequence: []KeySequenceItem{
			{Type: "text", Value: "echo hi"},
			{Type: "key", Value: "enter", DelayMsAfter: &delay},
		},
		Wait: WaitSpec{Strategy: WaitIdle, TimeoutMs: 2000, IdleMs: 300},
	})
	if err != nil {
		t.Fatalf("Interact: %v", err)
	}
	if result.Write.BytesWritten == 0 {
		t.Fatalf("expected key_sequence bytes to be written")
	}
	if !strings.Contains(result.CommandOutput, "hi") {
		t.Fatalf("expected command output to contain echoed text, got %q", result.CommandOutput)
	}
}

func TestInteractKeysWriteIsNotBlacklistChecked(t *testing.T) {
	o := newTestOrchestrator(t)

	result, err := o.Interact(context.Background(), Request{
		Name:      "keys-session",
		Shell:     "/bin/sh",
		InputKind: InputKeys,
		KeyTokens: []string{"text:rm -rf /", "enter"},
		Wait:      WaitSpec{Strategy: WaitIdle, TimeoutMs: 2000, IdleMs: 300},
	})
	if err != nil {
		t.Fatalf("Interact: %v", err)
	}
	if result.Write.BytesWritten == 0 {
		t.Fatalf("expected key sequence bytes to be written")
	}
}
