package httpapi

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Slack retries an unacknowledged event three times within about five
// minutes. Ids are remembered well past that.
const (
	eventTTL     = time.Hour
	eventMaxSeen = 10000
)

// EventDeduper remembers Events API event ids so a redelivered event is
// applied at most once. It is safe for concurrent use.
type EventDeduper struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

// NewEventDeduper creates a deduper holding up to size ids for ttl each.
func NewEventDeduper(size int, ttl time.Duration) *EventDeduper {
	return &EventDeduper{seen: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// Claim records id and reports whether it had not been seen. An empty id
// is always new.
func (d *EventDeduper) Claim(id string) bool {
	if id == "" {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen.Get(id); ok {
		return false
	}
	d.seen.Add(id, struct{}{})
	return true
}

// Release forgets id so the next delivery of it is applied.
func (d *EventDeduper) Release(id string) {
	if id == "" {
		return
	}
	d.seen.Remove(id)
}

// Len returns the number of remembered ids.
func (d *EventDeduper) Len() int {
	return d.seen.Len()
}
