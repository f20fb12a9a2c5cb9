// Package logtail incrementally tails named log files into a bounded,
// monotonically-IDed ring buffer served to the UI via a since-id cursor
// (spec §4.7).
package logtail

import (
	"sync"
	"time"
)

// Entry is a single ring-buffer line.
type Entry struct {
	ID     int64     `json:"id"`
	Source string    `json:"source"`
	Line   string    `json:"line"`
	Time   time.Time `json:"ts"`
}

const (
	MinCapacity     = 100
	DefaultCapacity = 2000
	maxQueryLimit   = 2000
)

// Ring is a fixed-capacity circular buffer of log entries shared across
// every tailed source, ordered by monotonically increasing ID.
type Ring struct {
	mu       sync.Mutex
	cap      int
	entries  []Entry
	nextID   int64
	lastID   int64
	lastSeen bool
}

// NewRing builds a ring buffer with capacity clamped to [MinCapacity, +inf).
func NewRing(capacity int) *Ring {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	return &Ring{cap: capacity, nextID: 1}
}

// Append assigns the next monotonic id to line and stores it, evicting the
// oldest entry once the buffer is at capacity.
func (r *Ring) Append(source, line string, at time.Time) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := Entry{ID: r.nextID, Source: source, Line: line, Time: at}
	r.nextID++
	r.lastID = e.ID
	r.lastSeen = true

	r.entries = append(r.entries, e)
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}
	return e
}

// Since returns ascending entries with ID > cursor, optionally filtered by
// source, up to limit (clamped to [1, maxQueryLimit]). next is the ID of
// the last returned entry, or cursor unchanged when nothing matched (spec
// §4.7: "giving a monotonic resumable cursor").
func (r *Ring) Since(cursor int64, source string, limit int) (out []Entry, next int64) {
	if limit < 1 {
		limit = 1
	} else if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next = cursor
	for _, e := range r.entries {
		if e.ID <= cursor {
			continue
		}
		if source != "" && e.Source != source {
			continue
		}
		out = append(out, e)
		next = e.ID
		if len(out) >= limit {
			break
		}
	}
	return out, next
}
