package terminal

import "testing"

func TestIsPromptLineRecognizesTrailers(t *testing.T) {
	cases := map[string]bool{
		"user@host:~$": true,
		"root#":        true,
		"# ":           false, // trailing space, not a trailer character
		"$":            true,  // single trailer char alone still counts
		"hello world":  false,
	}
	for line, want := range cases {
		if got := isPromptLine(line); got != want {
			t.Errorf("isPromptLine(%q) = %v, want %v", line, got, want)
		}
	}
}

func TestFirstLineStopsAtNewline(t *testing.T) {
	if got := firstLine("ls -la\nsecond line"); got != "ls -la" {
		t.Fatalf("got %q", got)
	}
	if got := firstLine("echo hi\r\n"); got != "echo hi" {
		t.Fatalf("got %q", got)
	}
}

func TestLooksLikeCommandRequiresEnterAndPrintableContent(t *testing.T) {
	cases := map[string]bool{
		"echo hello\r": true,
		"\x03":         false, // ctrl+c, no trailing Enter
		"\x1b[A":       false, // up arrow, no trailing Enter
		"\r":           false, // bare Enter, nothing printable to measure
		"\x01\x02\x03\r": false, // ends in Enter but mostly control bytes
		"echo hi":      false, // no trailing Enter at all
	}
	for input, want := range cases {
		if got := looksLikeCommand([]byte(input)); got != want {
			t.Errorf("looksLikeCommand(%q) = %v, want %v", input, got, want)
		}
	}
}
