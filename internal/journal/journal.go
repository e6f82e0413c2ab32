package journal

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// defaultCapacity bounds how many entries a Journal retains. Old entries
// are dropped first; the bootstrap flow records well under this in total.
const defaultCapacity = 256

// Entry represents one recorded operation outcome.
//
// Entry is immutable after creation and optimised for rendering into
// human-readable diagnostics.
type Entry struct {
	// Step is the logical operation name (e.g. "create-cluster").
	Step string

	// Detail is a short rendering of what ran (argv or watch summary).
	Detail string

	// Status is the observed terminal state ("ok", "failed", "skipped",
	// or a poll outcome).
	Status string

	// ExitCode is the process exit code for command steps, 0 otherwise.
	ExitCode int

	// Duration is how long the operation took.
	Duration time.Duration

	// At is when the entry was recorded.
	At time.Time

	// Err holds the error message for failed operations. Empty otherwise.
	Err string
}

// String renders the entry as a single diagnostic line.
func (e Entry) String() string {
	line := fmt.Sprintf("%s %s [%s] (%s)", e.At.Format(time.TimeOnly), e.Step, e.Status, e.Duration.Round(time.Millisecond))
	if e.Err != "" {
		line += ": " + e.Err
	}
	return line
}

// Journal is a bounded, append-only log of [Entry] values.
//
// Journal is safe for concurrent use. When capacity is exceeded the
// oldest entries are discarded.
type Journal struct {
	mu      sync.RWMutex
	entries []Entry
	cap     int
}

// New creates an empty [Journal] with the default capacity.
func New() *Journal {
	return &Journal{cap: defaultCapacity}
}

// Record appends an entry, stamping it with the current time if unset.
func (j *Journal) Record(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, e)
	if len(j.entries) > j.cap {
		j.entries = j.entries[len(j.entries)-j.cap:]
	}
}

// Recent returns up to n of the most recent entries, oldest first.
//
// The returned slice is a copy; modifications do not affect the journal.
func (j *Journal) Recent(n int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if n <= 0 || len(j.entries) == 0 {
		return nil
	}
	if n > len(j.entries) {
		n = len(j.entries)
	}
	out := make([]Entry, n)
	copy(out, j.entries[len(j.entries)-n:])
	return out
}

// All returns a copy of every retained entry, oldest first.
func (j *Journal) All() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Render formats up to n recent entries as an indented block for
// attaching to a fatal error message.
func (j *Journal) Render(n int) string {
	entries := j.Recent(n)
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString("  ")
		b.WriteString(e.String())
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
