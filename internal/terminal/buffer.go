package terminal

import (
	"strings"
	"sync"
	"time"
)

// Entry is one line produced by a session's PTY. Sequence is the sole
// cursor external callers exchange with the buffer.
type Entry struct {
	Timestamp  time.Time
	Content    string
	LineNumber int64
	Sequence   int64
}

// ReadMode selects how read_smart slices the matched range. "auto" is
// kept as a synonym of "smart" for legacy callers per spec.md's
// REDESIGN FLAGS note on duck-typed read modes.
type ReadMode string

const (
	ModeHead     ReadMode = "head"
	ModeTail     ReadMode = "tail"
	ModeHeadTail ReadMode = "head-tail"
	ModeSmart    ReadMode = "smart"
	ModeAuto     ReadMode = "auto" // synonym of ModeSmart
	ModeRaw      ReadMode = "raw"
)

// ReadResult is the response shape of Buffer.Read.
type ReadResult struct {
	Entries    []Entry
	TotalLines int64
	HasMore    bool
	NextCursor int64
	Truncated  bool
}

// SmartReadOptions configures Buffer.ReadSmart.
type SmartReadOptions struct {
	Since     int64
	Mode      ReadMode
	MaxLines  int
	HeadLines int
	TailLines int
}

// SmartReadResult adds a head/tail split summary to ReadResult.
type SmartReadResult struct {
	ReadResult
	LinesOmitted int64
}

// Stats is the observational snapshot returned by GetStats.
type Stats struct {
	TotalLines    int64
	RetainedLines int
	OldestSeq     int64
	NewestSeq     int64
}

const defaultAnimationThrottle = 80 * time.Millisecond

// Buffer is a bounded, line-addressable append buffer with a
// strictly-monotonic per-entry sequence cursor. It never rewinds or
// repeats a sequence value even as old entries are evicted.
//
// Grounded on src/handler/terminal/session_manager.go's ManagedSession
// ring byte buffer (appendBuffer/GetBuffer), generalized from a raw
// byte window to line/sequence-addressed entries per spec.md §4.A.
type Buffer struct {
	mu sync.Mutex

	maxSize           int
	coalesceSpinners  bool
	animationThrottle time.Duration

	entries    []Entry // ring contents, oldest first
	nextSeq    int64
	totalLines int64
	oldestSeq  int64 // seq of the oldest retained entry as of the latest eviction; 0 if nothing dropped yet

	partial       strings.Builder // held-over partial final line
	lastTrimmed   string
	lastCoalesced time.Time
	coalescedIdx  int // index into entries of the last coalesced entry, -1 if none

	listeners []func([]Entry)
}

// NewBuffer creates a ring buffer retaining at most maxSize entries.
func NewBuffer(maxSize int, coalesceSpinners bool) *Buffer {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Buffer{
		maxSize:           maxSize,
		coalesceSpinners:  coalesceSpinners,
		animationThrottle: defaultAnimationThrottle,
		coalescedIdx:      -1,
	}
}

// OnData registers a listener invoked with each newly appended batch
// of entries. Never called while holding the buffer's lock.
func (b *Buffer) OnData(fn func([]Entry)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Append splits raw bytes into completed lines, normalizing \r\n and
// bare \r to \n first. A partial trailing line is held over to the
// next call.
func (b *Buffer) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	normalized := normalizeNewlines(string(data))

	b.mu.Lock()
	var emitted []Entry
	start := 0
	for i := 0; i < len(normalized); i++ {
		if normalized[i] != '\n' {
			continue
		}
		line := b.partial.String() + normalized[start:i]
		b.partial.Reset()
		start = i + 1
		if e, ok := b.appendLineLocked(line); ok {
			emitted = append(emitted, e)
		}
	}
	if start < len(normalized) {
		b.partial.WriteString(normalized[start:])
	}
	listeners := append([]func([]Entry){}, b.listeners...)
	b.mu.Unlock()

	if len(emitted) > 0 {
		for _, fn := range listeners {
			fn(emitted)
		}
	}
}

// appendLineLocked appends one completed line, applying spinner
// coalescing and ring eviction. Must be called with mu held. Returns
// the entry that should be reported as "emitted" to listeners (a
// coalesced update is reported too, carrying its original sequence).
func (b *Buffer) appendLineLocked(line string) (Entry, bool) {
	trimmed := strings.TrimSpace(line)
	now := time.Now()

	if b.coalesceSpinners && trimmed != "" && b.coalescedIdx >= 0 &&
		trimmed == b.lastTrimmed &&
		now.Sub(b.lastCoalesced) < b.animationThrottle {
		// Replace the previous entry's content in place; sequence and
		// line number are unchanged, matching spec.md §4.A.
		b.entries[b.coalescedIdx].Content = line
		b.entries[b.coalescedIdx].Timestamp = now
		b.lastCoalesced = now
		return b.entries[b.coalescedIdx], true
	}

	b.nextSeq++
	b.totalLines++
	e := Entry{
		Timestamp:  now,
		Content:    line,
		LineNumber: b.totalLines,
		Sequence:   b.nextSeq,
	}
	b.entries = append(b.entries, e)
	b.coalescedIdx = len(b.entries) - 1
	b.lastTrimmed = trimmed
	b.lastCoalesced = now

	if len(b.entries) > b.maxSize {
		dropped := len(b.entries) - b.maxSize
		b.oldestSeq = b.entries[dropped].Sequence
		b.entries = append([]Entry{}, b.entries[dropped:]...)
		b.coalescedIdx -= dropped
	}
	return e, true
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

// Read returns entries with Sequence > since, capped at maxLines.
func (b *Buffer) Read(since int64, maxLines int) ReadResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked(since, maxLines)
}

func (b *Buffer) readLocked(since int64, maxLines int) ReadResult {
	truncated := since > 0 && len(b.entries) > 0 && since < b.entries[0].Sequence
	if since == 0 && b.oldestSeq > 1 {
		truncated = true
	}

	idx := 0
	for idx < len(b.entries) && b.entries[idx].Sequence <= since {
		idx++
	}
	rest := b.entries[idx:]

	hasMore := false
	if maxLines > 0 && len(rest) > maxLines {
		hasMore = true
		rest = rest[:maxLines]
	}

	next := since
	if len(rest) > 0 {
		next = rest[len(rest)-1].Sequence
	}

	return ReadResult{
		Entries:    append([]Entry{}, rest...),
		TotalLines: b.totalLines,
		HasMore:    hasMore,
		NextCursor: next,
		Truncated:  truncated,
	}
}

// ReadSmart implements head/tail/head-tail slicing over the entries
// matched by Since, never fabricating content for the omitted gap.
func (b *Buffer) ReadSmart(opts SmartReadOptions) SmartReadResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	base := b.readLocked(opts.Since, 0) // unbounded match set, sliced below
	entries := base.Entries

	mode := opts.Mode
	if mode == ModeAuto {
		mode = ModeSmart
	}

	switch mode {
	case ModeHead:
		n := opts.MaxLines
		if n <= 0 || n > len(entries) {
			n = len(entries)
		}
		base.Entries = entries[:n]
		base.HasMore = n < len(entries)
	case ModeTail:
		n := opts.MaxLines
		if n <= 0 || n > len(entries) {
			n = len(entries)
		}
		base.Entries = entries[len(entries)-n:]
		base.HasMore = n < len(entries)
	case ModeHeadTail:
		head := opts.HeadLines
		tail := opts.TailLines
		if head+tail >= len(entries) {
			base.Entries = entries
			return SmartReadResult{ReadResult: base}
		}
		result := make([]Entry, 0, head+tail)
		result = append(result, entries[:head]...)
		result = append(result, entries[len(entries)-tail:]...)
		base.Entries = result
		base.HasMore = true
		return SmartReadResult{ReadResult: base, LinesOmitted: int64(len(entries) - head - tail)}
	default:
		if opts.MaxLines > 0 && len(entries) > opts.MaxLines {
			base.Entries = entries[:opts.MaxLines]
			base.HasMore = true
		}
	}

	if len(base.Entries) > 0 {
		base.NextCursor = base.Entries[len(base.Entries)-1].Sequence
	}
	return SmartReadResult{ReadResult: base}
}

// GetLatest returns the most recent n entries currently retained.
func (b *Buffer) GetLatest(n int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.entries) {
		n = len(b.entries)
	}
	return append([]Entry{}, b.entries[len(b.entries)-n:]...)
}

// GetStats returns an observational snapshot of the buffer.
func (b *Buffer) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Stats{TotalLines: b.totalLines, RetainedLines: len(b.entries)}
	if len(b.entries) > 0 {
		s.OldestSeq = b.entries[0].Sequence
		s.NewestSeq = b.entries[len(b.entries)-1].Sequence
	}
	return s
}

// Cursor returns the sequence of the most recently appended entry, or
// 0 if the buffer is empty.
func (b *Buffer) Cursor() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return b.nextSeq
	}
	return b.entries[len(b.entries)-1].Sequence
}
