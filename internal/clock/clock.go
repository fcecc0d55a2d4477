// Package clock abstracts wall time and deferred calls so timeout-driven
// code can be tested without sleeping. Both implementations are backed by
// clockwork.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a handle to a pending deferred call.
type Timer interface {
	// Stop prevents the call from firing. It returns false if the call has
	// already fired or was already stopped.
	Stop() bool
}

// Clock provides the current time and single-shot deferred calls.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real returns a Clock backed by the system clock.
func Real() Clock { return realClock{clockwork.NewRealClock()} }

type realClock struct {
	c clockwork.Clock
}

func (r realClock) Now() time.Time { return r.c.Now() }

func (r realClock) AfterFunc(d time.Duration, f func()) Timer {
	return r.c.AfterFunc(d, f)
}

// Fake is a manually advanced Clock. Time is kept by a clockwork fake
// clock; deferred calls run synchronously on the goroutine calling
// Advance, in deadline order, with ties broken by scheduling order.
type Fake struct {
	mu      sync.Mutex
	fc      *clockwork.FakeClock
	seq     uint64
	pending map[*fakeTimer]struct{}
}

// NewFake creates a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{
		fc:      clockwork.NewFakeClockAt(start),
		pending: make(map[*fakeTimer]struct{}),
	}
}

// fakeTimer pairs a clockwork timer with the call it guards. clockwork
// only signals expiry; the call itself runs inside Advance.
type fakeTimer struct {
	clock *Fake
	inner clockwork.Timer
	when  time.Time
	seq   uint64
	f     func()
	fired chan struct{}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if _, ok := t.clock.pending[t]; !ok {
		return false
	}
	t.inner.Stop()
	delete(t.clock.pending, t)
	return true
}

// Now returns the fake current time.
func (c *Fake) Now() time.Time {
	return c.fc.Now()
}

// AfterFunc schedules f to run once the clock has been advanced by d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &fakeTimer{
		clock: c,
		when:  c.fc.Now().Add(d),
		seq:   c.seq,
		f:     f,
		fired: make(chan struct{}),
	}
	t.inner = c.fc.AfterFunc(d, func() { close(t.fired) })
	c.pending[t] = struct{}{}
	return t
}

// Advance moves the clock forward by d and runs every call that became due.
func (c *Fake) Advance(d time.Duration) {
	target := c.fc.Now().Add(d)

	for {
		next := c.takeDue(target)
		if next == nil {
			break
		}
		<-next.fired
		next.f()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if now := c.fc.Now(); now.Before(target) {
		c.fc.Advance(target.Sub(now))
	}
}

// Pending returns the number of scheduled calls that have not fired or
// been stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// takeDue removes and returns the earliest timer due at or before target,
// first moving the clock to that timer's deadline.
func (c *Fake) takeDue(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next *fakeTimer
	for t := range c.pending {
		if t.when.After(target) {
			continue
		}
		if next == nil || t.when.Before(next.when) || (t.when.Equal(next.when) && t.seq < next.seq) {
			next = t
		}
	}
	if next == nil {
		return nil
	}
	delete(c.pending, next)
	if now := c.fc.Now(); now.Before(next.when) {
		c.fc.Advance(next.when.Sub(now))
	}
	return next
}
