package interact

import (
	"fmt"
	"regexp"
	"strings"
)

// spinnerFrames recognizes the Unicode braille-dot spinner glyphs used
// by most CLI progress indicators, per spec.md §4.F's normalization step.
var spinnerFrames = regexp.MustCompile(`[\x{2800}-\x{28FF}]`)

var manyBlankLines = regexp.MustCompile(`\n{4,}`)

// Normalize applies spec.md §4.F's output cleanup: strip spinner
// frames, collapse runs of 4+ consecutive newlines down to 3, then collapse
// consecutive duplicate lines (command-echo doubling) into one.
func Normalize(s string) string {
	s = spinnerFrames.ReplaceAllString(s, "")
	s = manyBlankLines.ReplaceAllString(s, "\n\n\n")
	return dedupConsecutiveLines(s)
}

func dedupConsecutiveLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 && line == lines[i-1] && strings.TrimSpace(line) != "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// headRatio is the head share of the 55%/45% split spec.md §4.F
// mandates for truncating an oversized response.
const (
	headRatio     = 0.55
	truncateLimit = 128000
)

// Truncate shortens s to approximately truncateLimit characters,
// keeping the first 55% and the last 45%, when s exceeds the limit.
func Truncate(s string) (string, bool) {
	if len(s) <= truncateLimit {
		return s, false
	}
	r := []rune(s)
	if len(r) <= truncateLimit {
		return s, false
	}
	headLen := int(float64(truncateLimit) * headRatio)
	tailLen := truncateLimit - headLen
	omitted := len(r) - headLen - tailLen
	notice := fmt.Sprintf("\n\n... [%d characters omitted] ...\n\n", omitted)
	return string(r[:headLen]) + notice + string(r[len(r)-tailLen:]), true
}
