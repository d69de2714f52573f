package interact

import (
	"strings"
	"testing"
)

func TestNormalizeCollapsesBlankLines(t *testing.T) {
	in := "a\n\n\n\n\n\nb"
	out := Normalize(in)
	if strings.Count(out, "\n\n\n\n") > 0 {
		t.Fatalf("expected blank run collapsed to 3 newlines, got %q", out)
	}
}

func TestNormalizeDedupsConsecutiveLines(t *testing.T) {
	in := "hello\nhello\nworld"
	out := Normalize(in)
	if out != "hello\nworld" {
		t.Fatalf("expected duplicate line collapsed, got %q", out)
	}
}

func TestNormalizeStripsSpinnerFrames(t *testing.T) {
	in := "loading ⣷ done"
	out := Normalize(in)
	if strings.Contains(out, "⣷") {
		t.Fatalf("expected spinner glyph stripped, got %q", out)
	}
}

func TestTruncateLeavesShortStringUntouched(t *testing.T) {
	s := "short output"
	out, truncated := Truncate(s)
	if truncated || out != s {
		t.Fatalf("short string should not be truncated")
	}
}

func TestTruncateSplitsHeadAndTail(t *testing.T) {
	s := strings.Repeat("x", 200000)
	out, truncated := Truncate(s)
	if !truncated {
		t.Fatalf("expected truncation for oversized input")
	}
	if !strings.HasPrefix(out, "xxxx") || !strings.HasSuffix(out, "xxxx") {
		t.Fatalf("expected head and tail of original content preserved")
	}
	if len(out) >= len(s) {
		t.Fatalf("expected truncated output shorter than input")
	}
}
