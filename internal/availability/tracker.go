// Package availability keeps the TTL-windowed registry of recently
// observed object labels.
//
// Correctness does not depend on any sweep timer: every read purges
// expired entries first, so the invariant "no returned label was last
// seen more than TTL ago" holds at query time by construction.
package availability

import (
	"sync"
	"time"

	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

// DefaultTTL is the trailing window a label stays available after it
// was last observed.
const DefaultTTL = 30 * time.Second

// Tracker maps label text to its last-seen timestamp.
//
// The game state loop is the only writer, but the mutex keeps Stats
// and test access safe from any goroutine.
type Tracker struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// New creates a tracker with the given TTL (DefaultTTL if zero).
func New(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[string]time.Time),
	}
}

// Observe upserts each label's last-seen timestamp to now. Duplicate
// labels in the batch collapse to a single entry.
func (t *Tracker) Observe(batch []types.DetectedLabel) {
	if len(batch) == 0 {
		return
	}

	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, label := range batch {
		if label.Text == "" {
			continue
		}
		t.seen[label.Text] = now
	}
}

// Available purges entries older than now−TTL and returns the
// remaining label texts. Order is unspecified.
func (t *Tracker) Available() []string {
	now := t.now()
	cutoff := now.Add(-t.ttl)

	t.mu.Lock()
	defer t.mu.Unlock()

	labels := make([]string, 0, len(t.seen))
	for text, lastSeen := range t.seen {
		if lastSeen.Before(cutoff) {
			delete(t.seen, text)
			continue
		}
		labels = append(labels, text)
	}
	return labels
}

// Len returns the number of live entries (purging first).
func (t *Tracker) Len() int {
	return len(t.Available())
}

// setClock overrides the time source (tests only).
func (t *Tracker) setClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}
