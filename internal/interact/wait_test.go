package interact

import "testing"

func TestCompilePatternDefaultsToLiteralCaseInsensitive(t *testing.T) {
	re := compilePattern(WaitSpec{Strategy: WaitPattern, Pattern: "a.b"})
	if re == nil {
		t.Fatalf("expected a compiled pattern")
	}
	if !re.MatchString("xA.Bx") {
		t.Fatalf("expected case-insensitive literal match of 'a.b'")
	}
	if re.MatchString("axxxb") {
		t.Fatalf("literal pattern should not treat '.' as a wildcard")
	}
}

func TestCompilePatternRegexAndCaseSensitive(t *testing.T) {
	re := compilePattern(WaitSpec{
		Strategy:             WaitPattern,
		Pattern:              "done\\d+",
		PatternRegex:         true,
		PatternCaseSensitive: true,
	})
	if re == nil {
		t.Fatalf("expected a compiled pattern")
	}
	if !re.MatchString("build done42") {
		t.Fatalf("expected regex match")
	}
	if re.MatchString("build DONE42") {
		t.Fatalf("expected case-sensitive match to reject differently-cased text")
	}
}

func TestSatisfiedPatternOnlyMatchesAccumulatedDelta(t *testing.T) {
	re := compilePattern(WaitSpec{Strategy: WaitPattern, Pattern: "ready"})
	if satisfied(nil, WaitPattern, 0, re, true, "still building") {
		t.Fatalf("expected no match before the pattern appears in the delta")
	}
	if !satisfied(nil, WaitPattern, 0, re, true, "still building\nready\n") {
		t.Fatalf("expected match once the pattern appears in the accumulated delta")
	}
}
