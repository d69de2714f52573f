// Package keys translates declarative key tokens ("ctrl+c", "F5",
// "enter") into the raw byte sequences a PTY expects on its input
// side, per spec.md §4.D.
package keys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/term-broker/termbroker/internal/broker"
)

// named holds every multi-character token whose encoding isn't
// computed, keyed by its normalized ("+"-joined) form.
var named = map[string]string{
	"ctrl+c":      "\x03",
	"ctrl+z":      "\x1a",
	"ctrl+d":      "\x04",
	"esc":         "\x1b",
	"escape":      "\x1b",
	"double+esc":  "\x1b\x1b",
	"enter":       "\r",
	"return":      "\r",
	"tab":         "\t",
	"shift+tab":   "\x1b[Z",
	"backspace":   "\x7f",
	"space":       " ",
	"up":          "\x1b[A",
	"down":        "\x1b[B",
	"right":       "\x1b[C",
	"left":        "\x1b[D",
	"home":        "\x1b[H",
	"end":         "\x1b[F",
	"pageup":      "\x1b[5~",
	"pgup":        "\x1b[5~",
	"pagedown":    "\x1b[6~",
	"pgdn":        "\x1b[6~",
	"insert":      "\x1b[2~",
	"ins":         "\x1b[2~",
	"delete":      "\x1b[3~",
	"del":         "\x1b[3~",
	"f1":          "\x1bOP",
	"f2":          "\x1bOQ",
	"f3":          "\x1bOR",
	"f4":          "\x1bOS",
	"f5":          "\x1b[15~",
	"f6":          "\x1b[17~",
	"f7":          "\x1b[18~",
	"f8":          "\x1b[19~",
	"f9":          "\x1b[20~",
	"f10":         "\x1b[21~",
	"f11":         "\x1b[23~",
	"f12":         "\x1b[24~",
}

// DefaultInterItemDelayMs is the pause between successive key tokens
// absent an explicit delay_ms override, per spec.md §4.D.
const DefaultInterItemDelayMs = 30

// textPrefix marks a comma-separated token as literal text rather
// than a key token, per spec.md §4.D.
const textPrefix = "text:"

// normalize lowercases a token and folds "_", "-", and spaces to "+",
// per spec.md §4.D's "case-insensitive; `_`, `-`, spaces equivalent to
// `+`" rule. Hex/unicode escapes (u+0041, 0x41) already use digits and
// letters only, so folding never disturbs them.
func normalize(token string) string {
	t := strings.ToLower(strings.TrimSpace(token))
	t = strings.NewReplacer("_", "+", "-", "+", " ", "+").Replace(t)
	return t
}

// Encode translates one key token into its raw byte sequence. Unicode
// and hex escapes (u+0041, 0x41), ctrl+<letter>/ctrl+space, and
// alt+<x> forms are computed rather than looked up; a single
// character outside those forms passes through unchanged.
func Encode(token string) (string, error) {
	raw := strings.TrimSpace(token)
	t := normalize(raw)
	if t == "" {
		return "", broker.New(broker.KindUnknownKeyToken, "empty key token")
	}

	if seq, ok := named[t]; ok {
		return seq, nil
	}

	if t == "ctrl+space" {
		return "\x00", nil
	}
	if strings.HasPrefix(t, "ctrl+") && len(t) == 6 {
		c := t[5]
		if c >= 'a' && c <= 'z' {
			return string(rune(c - 'a' + 1)), nil
		}
	}

	if strings.HasPrefix(t, "alt+") {
		rest := strings.TrimPrefix(raw, raw[:4]) // preserve original case/sep of the remainder
		inner, err := Encode(rest)
		if err != nil {
			return "", err
		}
		return "\x1b" + inner, nil
	}

	if strings.HasPrefix(t, "u+") {
		code, err := strconv.ParseInt(t[2:], 16, 32)
		if err != nil {
			return "", broker.New(broker.KindUnknownKeyToken, fmt.Sprintf("invalid unicode escape %q", token))
		}
		return string(rune(code)), nil
	}

	if strings.HasPrefix(t, "0x") {
		code, err := strconv.ParseInt(t[2:], 16, 32)
		if err != nil {
			return "", broker.New(broker.KindUnknownKeyToken, fmt.Sprintf("invalid hex escape %q", token))
		}
		return string([]byte{byte(code)}), nil
	}

	// Single character: passed through as-is (original case preserved).
	if len([]rune(raw)) == 1 {
		return raw, nil
	}

	return "", broker.New(broker.KindUnknownKeyToken, fmt.Sprintf("unknown key token %q", token))
}

// Item is one entry of a parsed key sequence, carrying the delay that
// should follow it once it has been written.
type Item struct {
	Sequence string
	DelayMs  int
}

// ParseList parses an explicit ordered list of tokens, one token per
// element, applying DefaultInterItemDelayMs unless overridden. It does
// not split elements on commas; ParseCommaSeparated does that.
func ParseList(tokens []string, delayMs int) ([]Item, error) {
	if delayMs <= 0 {
		delayMs = DefaultInterItemDelayMs
	}
	items := make([]Item, 0, len(tokens))
	for _, tok := range tokens {
		seq, err := encodeToken(tok)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{Sequence: seq, DelayMs: delayMs})
	}
	return items, nil
}

// encodeToken resolves one token to a byte sequence, honoring the
// text: literal-text prefix alongside key tokens.
func encodeToken(tok string) (string, error) {
	trimmed := strings.TrimSpace(tok)
	if rest, ok := cutPrefixFold(trimmed, textPrefix); ok {
		return rest, nil
	}
	return Encode(trimmed)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

// ParseCommaSeparated splits a single "ctrl+c,enter" or
// "text:hello,enter" style string and parses each comma-delimited
// token.
func ParseCommaSeparated(s string, delayMs int) ([]Item, error) {
	parts := strings.Split(s, ",")
	return ParseList(parts, delayMs)
}
