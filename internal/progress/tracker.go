// Package progress publishes per-session status snapshots for polling.
// It is the only state shared between stitch sessions and the HTTP layer.
package progress

import (
	"sync"
	"time"
)

// Record is the latest status snapshot for one stitch session. Every
// update replaces the whole record; no history is kept.
type Record struct {
	Message   string    `json:"message"`
	Progress  *float64  `json:"progress"`
	Error     string    `json:"error,omitempty"`
	Completed bool      `json:"completed"`
	FilePath  string    `json:"filePath,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Percent returns a pointer to v, for Record.Progress.
func Percent(v float64) *float64 {
	return &v
}

// Tracker maps session IDs to their current Record. Safe for concurrent
// use by session goroutines and polling readers. Records are never
// evicted; they live for the life of the process.
type Tracker struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{records: make(map[string]Record)}
}

// Update replaces the record for sessionID with rec, stamping it with the
// current time. Last write wins.
func (t *Tracker) Update(sessionID string, rec Record) {
	rec.Timestamp = time.Now()
	t.mu.Lock()
	t.records[sessionID] = rec
	t.mu.Unlock()
}

// Get returns the current record for sessionID, or false if the session
// is unknown.
func (t *Tracker) Get(sessionID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[sessionID]
	return rec, ok
}
