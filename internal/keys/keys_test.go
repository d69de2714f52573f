package keys

import "testing"

func TestEncodeNamedTokens(t *testing.T) {
	cases := map[string]string{
		"ctrl+c": "\x03",
		"enter":  "\r",
		"esc":    "\x1b",
		"f5":     "\x1b[15~",
	}
	for tok, want := range cases {
		got, err := Encode(tok)
		if err != nil {
			t.Fatalf("Encode(%q): %v", tok, err)
		}
		if got != want {
			t.Fatalf("Encode(%q) = %q, want %q", tok, got, want)
		}
	}
}

func TestEncodeCtrlLetter(t *testing.T) {
	got, err := Encode("ctrl+a")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got != "\x01" {
		t.Fatalf("got %q, want \\x01", got)
	}
}

func TestEncodeAltPrefixRecurses(t *testing.T) {
	got, err := Encode("alt+enter")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got != "\x1b\r" {
		t.Fatalf("got %q, want ESC + CR", got)
	}
}

func TestEncodeUnicodeEscape(t *testing.T) {
	got, err := Encode("u+0041")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got != "A" {
		t.Fatalf("got %q, want A", got)
	}
}

func TestEncodeUnknownTokenFails(t *testing.T) {
	_, err := Encode("not_a_real_key")
	if err == nil {
		t.Fatalf("expected error for unknown token")
	}
}

func TestParseCommaSeparatedAppliesDefaultDelay(t *testing.T) {
	items, err := ParseCommaSeparated("ctrl+c, enter", 0)
	if err != nil {
		t.Fatalf("ParseCommaSeparated: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].DelayMs != DefaultInterItemDelayMs {
		t.Fatalf("expected default delay %d, got %d", DefaultInterItemDelayMs, items[0].DelayMs)
	}
}
