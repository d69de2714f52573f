package blacklist

import (
	"errors"
	"testing"

	"github.com/term-broker/termbroker/internal/broker"
)

func TestCheckBlocksDirectCommand(t *testing.T) {
	l := New(DefaultRules, true)
	err := l.Check("rm -rf /")
	if err == nil {
		t.Fatalf("expected blocked error")
	}
	var be *broker.Error
	if !errors.As(err, &be) || be.Kind != broker.KindBlocked {
		t.Fatalf("expected KindBlocked, got %v", err)
	}
	if be.Rule != "rm" {
		t.Fatalf("expected rule 'rm', got %q", be.Rule)
	}
}

func TestCheckBlocksAfterSeparator(t *testing.T) {
	l := New(DefaultRules, true)
	if err := l.Check("echo hi; rm -rf /"); err == nil {
		t.Fatalf("expected blocked error after ;")
	}
	if err := l.Check("echo hi | rm -rf /"); err == nil {
		t.Fatalf("expected blocked error after |")
	}
}

func TestCheckAllowsSafeCommand(t *testing.T) {
	l := New(DefaultRules, true)
	if err := l.Check("ls -la && echo done"); err != nil {
		t.Fatalf("unexpected block: %v", err)
	}
}

func TestCheckStripsCallOperatorAndQuotes(t *testing.T) {
	l := New(DefaultRules, true)
	if err := l.Check(`& "rm" -rf /`); err == nil {
		t.Fatalf("expected blocked error for quoted/call-prefixed command")
	}
}

func TestCheckUsesDefaultMessageWhenRuleHasNone(t *testing.T) {
	l := New([]Rule{{Command: "rm"}}, true)
	err := l.Check("rm -rf /")
	var be *broker.Error
	if !errors.As(err, &be) {
		t.Fatalf("expected broker.Error, got %v", err)
	}
	if be.Message != "rm is disabled by the user" {
		t.Fatalf("expected default refusal message, got %q", be.Message)
	}
}

func TestCheckUsesConfiguredMessage(t *testing.T) {
	l := New([]Rule{{Command: "curl", Message: "network access is disabled in this sandbox"}}, true)
	err := l.Check("curl https://example.com")
	var be *broker.Error
	if !errors.As(err, &be) {
		t.Fatalf("expected broker.Error, got %v", err)
	}
	if be.Message != "network access is disabled in this sandbox" {
		t.Fatalf("expected configured message, got %q", be.Message)
	}
}

func TestCheckCaseSensitiveModeRespectsCase(t *testing.T) {
	l := New([]Rule{{Command: "rm"}}, false)
	if err := l.Check("RM -rf /"); err != nil {
		t.Fatalf("expected uppercase command to pass in case-sensitive mode, got %v", err)
	}
	if err := l.Check("rm -rf /"); err == nil {
		t.Fatalf("expected lowercase command to still match")
	}
}
