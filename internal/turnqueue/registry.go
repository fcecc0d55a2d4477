package turnqueue

import (
	"sort"
	"sync"
)

// Registry maps keys to queues, creating them on first reference.
// It is safe for concurrent use; creation is atomic so a key never maps
// to two different queues.
type Registry struct {
	mu     sync.RWMutex
	queues map[Key]*Queue
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{queues: make(map[Key]*Queue)}
}

// GetOrCreate returns the queue for key, creating an empty one if absent.
func (r *Registry) GetOrCreate(key Key) *Queue {
	r.mu.RLock()
	q, ok := r.queues[key]
	r.mu.RUnlock()
	if ok {
		return q
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have created it between the locks.
	if q, ok := r.queues[key]; ok {
		return q
	}
	q = newQueue(key)
	r.queues[key] = q
	return q
}

// Lookup returns the queue for key without creating it.
func (r *Registry) Lookup(key Key) (*Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.queues[key]
	return q, ok
}

// Len returns the number of queues.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}

// Keys returns every registered key, sorted by container then thread.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	keys := make([]Key, 0, len(r.queues))
	for k := range r.queues {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ContainerID != keys[j].ContainerID {
			return keys[i].ContainerID < keys[j].ContainerID
		}
		return keys[i].ThreadID < keys[j].ThreadID
	})
	return keys
}
