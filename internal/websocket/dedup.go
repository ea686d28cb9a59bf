package websocket

import (
	"sync"
	"time"
)

// Deduplicator remembers message ids for a while so a client retry is not
// applied twice.
type Deduplicator struct {
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewDeduplicator remembers ids for ttl.
func NewDeduplicator(ttl time.Duration) *Deduplicator {
	return &Deduplicator{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

// IsDuplicate reports whether msgID was seen within the ttl and records it
// otherwise. An empty id is never a duplicate.
func (d *Deduplicator) IsDuplicate(msgID string) bool {
	if msgID == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if ts, ok := d.seen[msgID]; ok && now.Sub(ts) < d.ttl {
		return true
	}
	d.seen[msgID] = now

	// Cleanup old entries if map gets too big
	if len(d.seen) > 10000 {
		for k, v := range d.seen {
			if now.Sub(v) > 2*d.ttl {
				delete(d.seen, k)
			}
		}
	}
	return false
}
