package turnqueue

import (
	"slices"
	"sync"
	"time"
)

// Queue is the state of one turn queue. Fields are only touched by the
// Engine while mu is held.
type Queue struct {
	mu      sync.Mutex
	key     Key
	members []string

	// armed is the scheduler generation of the live timeout, 0 when none.
	armed    uint64
	deadline time.Time
}

func newQueue(key Key) *Queue {
	return &Queue{key: key, members: []string{}}
}

// Key returns the queue's identity.
func (q *Queue) Key() Key { return q.key }

// current returns the holder, or "" when empty. Must be called with q.mu held.
func (q *Queue) current() string {
	if len(q.members) == 0 {
		return ""
	}
	return q.members[0]
}

// contains must be called with q.mu held.
func (q *Queue) contains(participant string) bool {
	return slices.Contains(q.members, participant)
}

// popFront removes and returns the holder. Must be called with q.mu held
// on a non-empty queue.
func (q *Queue) popFront() string {
	front := q.members[0]
	q.members = slices.Delete(q.members, 0, 1)
	return front
}

// disarm clears the timeout bookkeeping. Must be called with q.mu held.
func (q *Queue) disarm() {
	q.armed = 0
	q.deadline = time.Time{}
}

// snapshot must be called with q.mu held.
func (q *Queue) snapshot() Snapshot {
	return Snapshot{
		Key:      q.key,
		Members:  slices.Clone(q.members),
		Current:  q.current(),
		Deadline: q.deadline,
	}
}
