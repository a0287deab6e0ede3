// Package throttle suppresses repeat processing of the same physical face.
// Two layers: a per-identity cooldown across frames and a per-frame seen-key
// set. Both are in-memory only; a process restart resets them.
package throttle

import (
	"sync"
	"time"
)

// Cooldown tracks the last ledger-triggering detection per identity and
// suppresses re-triggering within the configured interval.
type Cooldown struct {
	interval time.Duration
	mu       sync.Mutex
	lastSeen map[int64]time.Time
}

// NewCooldown creates a cooldown tracker with the given minimum interval.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		lastSeen: make(map[int64]time.Time),
	}
}

// ShouldProcess reports whether the identity is outside its cooldown
// window. It does not record anything: the caller marks processing with
// MarkProcessed atomically with the ledger write so concurrent detections
// of the same identity cannot double-count.
func (c *Cooldown) ShouldProcess(id int64, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.lastSeen[id]
	return !ok || now.Sub(last) >= c.interval
}

// MarkProcessed records a ledger-triggering detection for the identity.
func (c *Cooldown) MarkProcessed(id int64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen[id] = now
}

// Reset clears the cooldown state for an identity.
func (c *Cooldown) Reset(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lastSeen, id)
}
