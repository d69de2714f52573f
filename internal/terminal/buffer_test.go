package terminal

import "testing"

func TestBufferSequenceNeverRewinds(t *testing.T) {
	b := NewBuffer(3, false)
	for i := 0; i < 4; i++ {
		b.Append([]byte("line\n"))
	}
	r := b.Read(0, 100)
	if len(r.Entries) != 3 {
		t.Fatalf("expected 3 retained entries, got %d", len(r.Entries))
	}
	if r.Entries[0].Sequence != 2 || r.Entries[2].Sequence != 4 {
		t.Fatalf("unexpected sequences: %+v", r.Entries)
	}
	if !r.Truncated {
		t.Fatalf("expected truncated=true when since=0 after eviction")
	}
}

func TestBufferReadSinceExcludesAtOrBelow(t *testing.T) {
	b := NewBuffer(10, false)
	b.Append([]byte("a\nb\nc\n"))
	r := b.Read(1, 100)
	for _, e := range r.Entries {
		if e.Sequence <= 1 {
			t.Fatalf("entry %+v should have sequence > 1", e)
		}
	}
	if len(r.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(r.Entries))
	}
}

func TestBufferSinceBelowRetainedSignalsTruncated(t *testing.T) {
	b := NewBuffer(3, false)
	b.Append([]byte("l1\nl2\nl3\nl4\n"))
	r := b.Read(0, 100)
	if !r.Truncated {
		t.Fatalf("expected truncated=true when since=0 but entry 1 was already evicted")
	}
	// Oldest retained sequence is 2 (entry 1 was evicted). Per spec.md
	// §4.A/§8's literal boundary test, since=1 is still below the oldest
	// retained sequence, so it must also report truncated=true.
	r2 := b.Read(1, 100)
	if !r2.Truncated {
		t.Fatalf("expected truncated=true: since=1 is below the oldest retained sequence 2")
	}
	r3 := b.Read(2, 100)
	if r3.Truncated {
		t.Fatalf("expected truncated=false: since=2 equals the oldest retained sequence")
	}
}

func TestBufferSpinnerCoalescing(t *testing.T) {
	b := NewBuffer(10, true)
	b.Append([]byte("spinning...\n"))
	b.Append([]byte("spinning...\n"))
	r := b.Read(0, 100)
	if len(r.Entries) != 1 {
		t.Fatalf("expected spinner frames coalesced into one entry, got %d", len(r.Entries))
	}
}

func TestBufferPartialLineHeldOver(t *testing.T) {
	b := NewBuffer(10, false)
	b.Append([]byte("partial"))
	if r := b.Read(0, 100); len(r.Entries) != 0 {
		t.Fatalf("partial line without newline should not be emitted yet")
	}
	b.Append([]byte(" line\n"))
	r := b.Read(0, 100)
	if len(r.Entries) != 1 || r.Entries[0].Content != "partial line" {
		t.Fatalf("expected combined partial line, got %+v", r.Entries)
	}
}
