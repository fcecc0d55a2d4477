// Package scheduler provides keyed single-shot deferred calls.
//
// A [Scheduler] holds at most one armed call per key. Arming a key cancels
// whatever was armed for it before, so a key never has two live calls.
// Every arm is stamped with a monotonically increasing generation; the
// generation travels with the [Ticket] handed to the fire callback so the
// receiver can tell a superseded firing from a live one.
//
// The scheduler knows nothing about what it is deferring. It is safe for
// concurrent use, and the fire callback is never invoked while the
// scheduler's internal lock is held, so callbacks may re-arm freely.
package scheduler

import (
	"sync"
	"time"

	"github.com/Iron-Ham/turnq/internal/clock"
)

// Ticket describes one armed call.
type Ticket struct {
	// Holder is the opaque identity the call was armed for.
	Holder string
	// Generation is unique per Arm across the whole scheduler.
	Generation uint64
	// Deadline is when the call is due.
	Deadline time.Time
}

// FireFunc is invoked when an armed call comes due.
type FireFunc[K comparable] func(key K, ticket Ticket)

type entry struct {
	ticket Ticket
	timer  clock.Timer
}

// Scheduler manages one deferred call per key.
type Scheduler[K comparable] struct {
	mu      sync.Mutex
	clock   clock.Clock
	fire    FireFunc[K]
	entries map[K]*entry
	gen     uint64
	stopped bool
}

// New creates a Scheduler that calls fire when an armed call comes due.
func New[K comparable](c clock.Clock, fire FireFunc[K]) *Scheduler[K] {
	if c == nil {
		c = clock.Real()
	}
	return &Scheduler[K]{
		clock:   c,
		fire:    fire,
		entries: make(map[K]*entry),
	}
}

// Arm schedules a call for key after d, replacing any call already armed
// for key. After Stop, Arm is a no-op and returns a zero Ticket.
func (s *Scheduler[K]) Arm(key K, holder string, d time.Duration) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return Ticket{}
	}

	s.cancelLocked(key)

	s.gen++
	ticket := Ticket{
		Holder:     holder,
		Generation: s.gen,
		Deadline:   s.clock.Now().Add(d),
	}
	e := &entry{ticket: ticket}
	e.timer = s.clock.AfterFunc(d, func() { s.due(key, ticket.Generation) })
	s.entries[key] = e
	return ticket
}

// Cancel disarms the call for key. It reports whether a call was armed.
// Canceling a key with nothing armed is a no-op.
func (s *Scheduler[K]) Cancel(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(key)
}

// Armed returns the ticket currently armed for key.
func (s *Scheduler[K]) Armed(key K) (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Ticket{}, false
	}
	return e.ticket, true
}

// Len returns the number of keys with an armed call.
func (s *Scheduler[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop disarms every call and rejects further arming.
func (s *Scheduler[K]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.entries {
		s.cancelLocked(key)
	}
	s.stopped = true
}

// cancelLocked must be called with s.mu held.
func (s *Scheduler[K]) cancelLocked(key K) bool {
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

// due runs on the clock's goroutine when a timer fires. A timer whose
// generation no longer matches the armed entry lost a race with Cancel or
// Arm and is dropped.
func (s *Scheduler[K]) due(key K, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.ticket.Generation != gen {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	ticket := e.ticket
	s.mu.Unlock()

	if s.fire != nil {
		s.fire(key, ticket)
	}
}
