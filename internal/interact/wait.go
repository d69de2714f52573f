package interact

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/term-broker/termbroker/internal/terminal"
)

// Strategy selects how the orchestrator decides a command has
// produced enough output to stop waiting, per spec.md §4.F.
type Strategy string

const (
	WaitNone    Strategy = "none"
	WaitIdle    Strategy = "idle"
	WaitPrompt  Strategy = "prompt"
	WaitPattern Strategy = "pattern"
	WaitExit    Strategy = "exit"
)

// pollInterval is how often the wait loop re-examines session state.
const pollInterval = 150 * time.Millisecond

// defaultIdleMs is how long output must go quiet for WaitIdle to
// consider the command settled, per spec.md §4.F.
const defaultIdleMs = 900

// WaitSpec configures one interact call's wait behavior.
type WaitSpec struct {
	Strategy                  Strategy
	TimeoutMs                 int
	IdleMs                    int
	Pattern                   string
	PatternRegex              bool
	PatternCaseSensitive      bool
	IncludeIntermediateOutput *bool // nil means the spec.md §4.F default of true
}

func (w WaitSpec) includeIntermediateOutput() bool {
	if w.IncludeIntermediateOutput == nil {
		return true
	}
	return *w.IncludeIntermediateOutput
}

// Outcome reports how a wait loop ended: which condition fired (or
// "timeout"/"none") and whether the configured strategy was actually
// met, per spec.md §4.F's `wait: { met, reason }` result fields.
type Outcome struct {
	Reason string
	Met    bool
}

// awaitCompletion blocks until the configured wait strategy is
// satisfied or the timeout elapses, whichever comes first. It never
// overruns TimeoutMs by more than one poll interval. A strategy of
// "none", or a non-positive timeout, skips polling entirely.
func awaitCompletion(ctx context.Context, sess *terminal.Session, baseline int64, spec WaitSpec) Outcome {
	if spec.Strategy == "" || spec.Strategy == WaitNone || spec.TimeoutMs <= 0 {
		return Outcome{Reason: "none", Met: false}
	}

	deadline := time.Now().Add(time.Duration(spec.TimeoutMs) * time.Millisecond)

	idleMs := spec.IdleMs
	if idleMs <= 0 {
		idleMs = defaultIdleMs
	}
	idleFor := time.Duration(idleMs) * time.Millisecond

	pattern := compilePattern(spec)
	includeIntermediate := spec.includeIntermediateOutput()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// next_since advances on every tick's incremental read, and
	// accumulated_delta is built from those increments only, never from
	// the ring buffer's full backlog, so a pattern already present
	// before baseline_cursor can never produce a false-positive match.
	nextSince := baseline
	var accumulated strings.Builder
	deltaSeen := false

	for {
		res := sess.Buffer().Read(nextSince, 0)
		if len(res.Entries) > 0 {
			deltaSeen = true
			nextSince = res.Entries[len(res.Entries)-1].Sequence
			if includeIntermediate {
				accumulated.WriteString(Normalize(entriesText(res.Entries)))
				accumulated.WriteByte('\n')
			}
		}

		if satisfied(sess, spec.Strategy, idleFor, pattern, deltaSeen, accumulated.String()) {
			return Outcome{Reason: string(spec.Strategy), Met: true}
		}
		if time.Now().After(deadline) {
			return Outcome{Reason: "timeout", Met: false}
		}
		select {
		case <-ctx.Done():
			return Outcome{Reason: "timeout", Met: false}
		case <-ticker.C:
		}
	}
}

func entriesText(entries []terminal.Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Content)
	}
	return b.String()
}

// compilePattern builds the matcher for the pattern wait strategy.
// pattern_regex (default false) selects literal-substring vs. regular
// expression matching; pattern_case_sensitive (default false) controls
// case folding in either mode.
func compilePattern(spec WaitSpec) *regexp.Regexp {
	if spec.Strategy != WaitPattern || spec.Pattern == "" {
		return nil
	}
	pat := spec.Pattern
	if !spec.PatternRegex {
		pat = regexp.QuoteMeta(pat)
	}
	if !spec.PatternCaseSensitive {
		pat = "(?i)" + pat
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil
	}
	return re
}

func satisfied(sess *terminal.Session, strategy Strategy, idleFor time.Duration, pattern *regexp.Regexp, deltaSeen bool, accumulatedDelta string) bool {
	switch strategy {
	case WaitExit:
		return !sess.IsActive() && deltaSeen
	case WaitPrompt:
		return sess.Snapshot().HasPrompt || sess.AwaitingInput()
	case WaitIdle:
		return deltaSeen && sess.IdleSinceOutput() >= idleFor
	case WaitPattern:
		if pattern == nil {
			return false
		}
		return pattern.MatchString(accumulatedDelta)
	default:
		return true
	}
}
