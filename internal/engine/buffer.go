package engine

import (
	"sync"
	"time"

	"codeberg.org/renedaq/hvmond/internal/crate"
)

// Entry is one timestamped snapshot awaiting durable commit.
type Entry struct {
	Taken    time.Time
	Snapshot *crate.Snapshot
}

// Buffer stages snapshots between commit cycles. Append and Drain are
// mutually exclusive: a drain sees a consistent set, an append is
// never lost, and the poller never waits on a commit in progress.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append stages one snapshot. O(1), never blocks on storage.
func (b *Buffer) Append(snap *crate.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, Entry{Taken: snap.Taken, Snapshot: snap})
}

// Drain atomically removes and returns every entry present at call
// time. Entries appended concurrently with the drain stay behind for
// the next cycle.
func (b *Buffer) Drain() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := b.entries
	b.entries = nil

	return drained
}

// Requeue restores a failed batch in front of anything appended since
// the drain began, preserving original order for the retry.
func (b *Buffer) Requeue(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(entries, b.entries...)
}

// Len returns the number of staged entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.entries)
}
