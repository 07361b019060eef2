package gateway

import (
	"sync"
	"time"
)

// backlogEntry is one pushed envelope of a series.
type backlogEntry struct {
	seq  int64
	at   time.Time // row time (candle open)
	data []byte
}

// backlog keeps the newest envelopes of one series, oldest first, so a
// client can recover from a seq gap or catch up after a reconnect.
type backlog struct {
	mu      sync.RWMutex
	entries []backlogEntry
	limit   int
}

func newBacklog(limit int) *backlog {
	if limit <= 0 {
		limit = backlogLimit
	}
	return &backlog{limit: limit}
}

// push appends an envelope. Seqs and row times are increasing per series.
func (b *backlog) push(seq int64, at time.Time, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == b.limit {
		// shift in place; the backing array never grows past limit
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:b.limit-1]
	}
	b.entries = append(b.entries, backlogEntry{seq: seq, at: at, data: data})
}

// seqRange returns envelopes with seq in [from, to].
func (b *backlog) seqRange(from, to int64) [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out [][]byte
	for _, e := range b.entries {
		if e.seq >= from && e.seq <= to {
			out = append(out, e.data)
		}
	}
	return out
}

// after returns envelopes of rows strictly after t.
func (b *backlog) after(t time.Time) [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out [][]byte
	for _, e := range b.entries {
		if e.at.After(t) {
			out = append(out, e.data)
		}
	}
	return out
}

func (b *backlog) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
