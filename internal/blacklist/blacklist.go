// Package blacklist rejects dangerous shell commands before they
// reach a PTY, per spec.md §4.E.
package blacklist

import (
	"fmt"
	"strings"

	"github.com/term-broker/termbroker/internal/broker"
)

// Rule is one configured blacklist entry: a command to block and an
// optional custom refusal message, per spec.md §6's
// `mcp.command_blacklist.rules` shape (`{command, message?}`).
type Rule struct {
	Command string
	Message string
}

// DefaultRules mirrors spec.md §4.E's baseline denylist of
// destructive or sandbox-escaping commands.
var DefaultRules = []Rule{
	{Command: "rm"}, {Command: "dd"}, {Command: "mkfs"},
	{Command: "shutdown"}, {Command: "reboot"}, {Command: "halt"},
	{Command: "poweroff"}, {Command: "init"}, {Command: "telinit"},
}

// List matches a command line's leading token, after tokenizing on
// statement separators, against a configured set of blocked commands.
type List struct {
	rules           map[string]string // lookup key -> refusal message
	caseInsensitive bool
}

// New builds a List from configured rules. caseInsensitive mirrors
// spec.md §6's `mcp.command_blacklist.case_insensitive` (default true).
func New(rules []Rule, caseInsensitive bool) *List {
	l := &List{rules: make(map[string]string, len(rules)), caseInsensitive: caseInsensitive}
	for _, r := range rules {
		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("%s is disabled by the user", r.Command)
		}
		l.rules[l.key(r.Command)] = msg
	}
	return l
}

func (l *List) key(cmd string) string {
	if l.caseInsensitive {
		return strings.ToLower(cmd)
	}
	return cmd
}

// Check tokenizes input into individual commands (splitting on
// newlines, ';', and '|', and stripping a leading call operator '&')
// and returns a *broker.Error with Kind=KindBlocked naming the first
// matched rule and its configured message, or nil if nothing matched.
func (l *List) Check(input string) error {
	for _, cmd := range tokenize(input) {
		if cmd == "" {
			continue
		}
		if msg, ok := l.rules[l.key(cmd)]; ok {
			return &broker.Error{
				Kind:    broker.KindBlocked,
				Message: msg,
				Rule:    cmd,
			}
		}
	}
	return nil
}

// tokenize splits a raw line into candidate leading commands. Each
// statement is split on ';' and '|', trimmed of a leading '&' call
// operator and surrounding whitespace/quotes, and reduced to its
// first whitespace-delimited word.
func tokenize(input string) []string {
	var out []string
	for _, line := range strings.Split(input, "\n") {
		for _, stmt := range splitAny(line, ";|") {
			stmt = strings.TrimSpace(stmt)
			stmt = strings.TrimLeft(stmt, "&")
			stmt = strings.TrimSpace(stmt)
			stmt = stripQuotes(stmt)
			if stmt == "" {
				continue
			}
			fields := strings.Fields(stmt)
			if len(fields) == 0 {
				continue
			}
			out = append(out, stripQuotes(fields[0]))
		}
	}
	return out
}

func splitAny(s string, seps string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
}

// stripQuotes removes one layer of matching surrounding quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
