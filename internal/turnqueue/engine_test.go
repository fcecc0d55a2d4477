package turnqueue

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/turnq/internal/clock"
	"github.com/Iron-Ham/turnq/internal/scheduler"
	"github.com/sourcegraph/conc"
)

var testKey = NewKey("C1", "T1")

type timeoutRecorder struct {
	mu  sync.Mutex
	got []TimeoutOutcome
}

func (r *timeoutRecorder) handle(_ Key, out TimeoutOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, out)
}

func (r *timeoutRecorder) outcomes() []TimeoutOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.got)
}

func newTestEngine(t *testing.T) (*Engine, *clock.Fake, *timeoutRecorder) {
	t.Helper()
	fc := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	rec := &timeoutRecorder{}
	e := NewEngine(WithClock(fc), WithTimeoutHandler(rec.handle))
	t.Cleanup(e.Close)
	return e, fc, rec
}

// assertInvariants checks uniqueness, and that a timeout is armed exactly
// when the queue is non-empty and for the current holder.
func assertInvariants(t *testing.T, e *Engine, key Key) {
	t.Helper()

	q, ok := e.registry.Lookup(key)
	if !ok {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]bool)
	for _, m := range q.members {
		if seen[m] {
			t.Errorf("duplicate member %q in %v", m, q.members)
		}
		seen[m] = true
	}

	ticket, armed := e.sched.Armed(key)
	if len(q.members) == 0 {
		if armed {
			t.Errorf("empty queue has armed timeout %+v", ticket)
		}
		if q.armed != 0 {
			t.Errorf("empty queue records armed generation %d", q.armed)
		}
		return
	}
	if !armed {
		t.Fatalf("non-empty queue %v has no armed timeout", q.members)
	}
	if ticket.Holder != q.members[0] {
		t.Errorf("timeout armed for %q, holder is %q", ticket.Holder, q.members[0])
	}
	if ticket.Generation != q.armed {
		t.Errorf("scheduler generation %d, queue records %d", ticket.Generation, q.armed)
	}
}

func mustJoin(t *testing.T, e *Engine, key Key, p string) JoinOutcome {
	t.Helper()
	out, err := e.Join(key, p)
	if err != nil {
		t.Fatalf("Join(%q): %v", p, err)
	}
	return out
}

func mustComplete(t *testing.T, e *Engine, key Key, p string) CompleteOutcome {
	t.Helper()
	out, err := e.Complete(key, p)
	if err != nil {
		t.Fatalf("Complete(%q): %v", p, err)
	}
	return out
}

func mustList(t *testing.T, e *Engine, key Key) []string {
	t.Helper()
	members, err := e.List(key)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return members
}

func TestJoin_FirstBecomesCurrentSecondWaits(t *testing.T) {
	e, _, _ := newTestEngine(t)

	out := mustJoin(t, e, testKey, "alice")
	if out.Kind != JoinBecameCurrent || out.Participant != "alice" {
		t.Errorf("Join(alice) = %+v, want BecameCurrent(alice)", out)
	}

	out = mustJoin(t, e, testKey, "bob")
	if out.Kind != JoinWaiting || out.Position != 2 {
		t.Errorf("Join(bob) = %+v, want Waiting(2)", out)
	}

	assertInvariants(t, e, testKey)
}

func TestJoin_AlreadyQueued(t *testing.T) {
	e, _, _ := newTestEngine(t)

	mustJoin(t, e, testKey, "alice")
	mustJoin(t, e, testKey, "bob")

	for _, p := range []string{"alice", "bob"} {
		out := mustJoin(t, e, testKey, p)
		if out.Kind != JoinAlreadyQueued {
			t.Errorf("repeat Join(%q) = %+v, want AlreadyQueued", p, out)
		}
	}

	if got := mustList(t, e, testKey); !slices.Equal(got, []string{"alice", "bob"}) {
		t.Errorf("members = %v, want [alice bob]", got)
	}
	assertInvariants(t, e, testKey)
}

func TestJoin_FIFOPositions(t *testing.T) {
	e, _, _ := newTestEngine(t)

	for n := 1; n <= 6; n++ {
		p := fmt.Sprintf("user-%d", n)
		out := mustJoin(t, e, testKey, p)
		if n == 1 {
			if out.Kind != JoinBecameCurrent {
				t.Errorf("first join = %+v, want BecameCurrent", out)
			}
			continue
		}
		if out.Kind != JoinWaiting || out.Position != n {
			t.Errorf("join #%d = %+v, want Waiting(%d)", n, out, n)
		}
	}
	assertInvariants(t, e, testKey)
}

func TestComplete_NotCurrent(t *testing.T) {
	e, fc, _ := newTestEngine(t)

	out := mustComplete(t, e, testKey, "alice")
	if out.Kind != CompleteNotCurrent {
		t.Errorf("Complete on empty queue = %+v, want NotCurrent", out)
	}

	mustJoin(t, e, testKey, "alice")
	mustJoin(t, e, testKey, "bob")
	before, _ := e.sched.Armed(testKey)

	for _, p := range []string{"bob", "carol"} {
		out := mustComplete(t, e, testKey, p)
		if out.Kind != CompleteNotCurrent {
			t.Errorf("Complete(%q) = %+v, want NotCurrent", p, out)
		}
	}

	if got := mustList(t, e, testKey); !slices.Equal(got, []string{"alice", "bob"}) {
		t.Errorf("members = %v, want [alice bob]", got)
	}
	after, _ := e.sched.Armed(testKey)
	if before != after {
		t.Errorf("rejected completion re-armed timeout: %+v -> %+v", before, after)
	}
	if fc.Pending() != 1 {
		t.Errorf("clock pending = %d, want 1", fc.Pending())
	}
}

func TestComplete_Advances(t *testing.T) {
	e, fc, _ := newTestEngine(t)

	mustJoin(t, e, testKey, "alice")
	mustJoin(t, e, testKey, "bob")
	fc.Advance(10 * time.Minute)

	out := mustComplete(t, e, testKey, "alice")
	want := CompleteOutcome{Kind: CompleteAdvanced, Previous: "alice", Next: "bob"}
	if out != want {
		t.Errorf("Complete(alice) = %+v, want %+v", out, want)
	}

	if got := mustList(t, e, testKey); !slices.Equal(got, []string{"bob"}) {
		t.Errorf("members = %v, want [bob]", got)
	}

	ticket, ok := e.sched.Armed(testKey)
	if !ok || ticket.Holder != "bob" {
		t.Fatalf("armed = %+v, %v; want timeout for bob", ticket, ok)
	}
	if wantDeadline := fc.Now().Add(DefaultTurnTimeout); !ticket.Deadline.Equal(wantDeadline) {
		t.Errorf("deadline = %v, want %v", ticket.Deadline, wantDeadline)
	}
	if fc.Pending() != 1 {
		t.Errorf("clock pending = %d, want exactly one live timer", fc.Pending())
	}
	assertInvariants(t, e, testKey)
}

func TestComplete_Empties(t *testing.T) {
	e, fc, rec := newTestEngine(t)

	mustJoin(t, e, testKey, "alice")
	out := mustComplete(t, e, testKey, "alice")
	if out.Kind != CompleteEmptied || out.Previous != "alice" {
		t.Errorf("Complete(alice) = %+v, want Emptied(alice)", out)
	}
	if fc.Pending() != 0 {
		t.Errorf("clock pending = %d after emptying, want 0", fc.Pending())
	}

	// Duplicate "done" after the queue already advanced.
	if out := mustComplete(t, e, testKey, "alice"); out.Kind != CompleteNotCurrent {
		t.Errorf("second Complete(alice) = %+v, want NotCurrent", out)
	}

	fc.Advance(2 * DefaultTurnTimeout)
	if len(rec.outcomes()) != 0 {
		t.Errorf("timeout fired after completion: %+v", rec.outcomes())
	}
	assertInvariants(t, e, testKey)
}

func TestTimeout_SkipsAndEmpties(t *testing.T) {
	e, fc, rec := newTestEngine(t)

	mustJoin(t, e, testKey, "alice")
	fc.Advance(DefaultTurnTimeout)

	got := rec.outcomes()
	if len(got) != 1 {
		t.Fatalf("timeouts = %+v, want 1", got)
	}
	if got[0] != (TimeoutOutcome{Kind: TimeoutSkippedAndEmptied, Skipped: "alice"}) {
		t.Errorf("timeout = %+v, want SkippedAndEmptied(alice)", got[0])
	}
	if members := mustList(t, e, testKey); len(members) != 0 {
		t.Errorf("members = %v, want empty", members)
	}
	assertInvariants(t, e, testKey)
}

func TestTimeout_SkipsAndAdvancesThenRearms(t *testing.T) {
	e, fc, rec := newTestEngine(t)

	mustJoin(t, e, testKey, "alice")
	mustJoin(t, e, testKey, "bob")
	mustJoin(t, e, testKey, "carol")

	fc.Advance(DefaultTurnTimeout)
	assertInvariants(t, e, testKey)
	fc.Advance(DefaultTurnTimeout)
	assertInvariants(t, e, testKey)

	want := []TimeoutOutcome{
		{Kind: TimeoutSkippedAndAdvanced, Skipped: "alice", Next: "bob"},
		{Kind: TimeoutSkippedAndAdvanced, Skipped: "bob", Next: "carol"},
	}
	if got := rec.outcomes(); !slices.Equal(got, want) {
		t.Errorf("timeouts = %+v, want %+v", got, want)
	}

	fc.Advance(DefaultTurnTimeout)
	got := rec.outcomes()
	if last := got[len(got)-1]; last != (TimeoutOutcome{Kind: TimeoutSkippedAndEmptied, Skipped: "carol"}) {
		t.Errorf("last timeout = %+v, want SkippedAndEmptied(carol)", last)
	}
	if fc.Pending() != 0 {
		t.Errorf("clock pending = %d, want 0", fc.Pending())
	}
}

func TestTimeout_HolderCompletingResetsClock(t *testing.T) {
	e, fc, rec := newTestEngine(t)

	mustJoin(t, e, testKey, "alice")
	mustJoin(t, e, testKey, "bob")

	fc.Advance(DefaultTurnTimeout - time.Minute)
	mustComplete(t, e, testKey, "alice")

	// Alice's original deadline passes; bob's fresh turn must not be cut short.
	fc.Advance(2 * time.Minute)
	if len(rec.outcomes()) != 0 {
		t.Fatalf("bob timed out early: %+v", rec.outcomes())
	}

	fc.Advance(DefaultTurnTimeout)
	got := rec.outcomes()
	if len(got) != 1 || got[0].Skipped != "bob" {
		t.Errorf("timeouts = %+v, want bob skipped once", got)
	}
}

func TestTimeout_StaleTicketIsNoOp(t *testing.T) {
	e, _, rec := newTestEngine(t)

	mustJoin(t, e, testKey, "alice")
	mustJoin(t, e, testKey, "bob")
	aliceTicket, _ := e.sched.Armed(testKey)

	mustComplete(t, e, testKey, "alice")

	// Alice's timer fired just before Complete took the lock and is only
	// now delivered.
	out := e.advanceOnTimeout(testKey, aliceTicket)
	if out.Kind != TimeoutNoOp {
		t.Errorf("stale timeout = %+v, want NoOp", out)
	}
	e.timeoutAdvance(testKey, aliceTicket)
	if len(rec.outcomes()) != 0 {
		t.Errorf("NoOp reached the handler: %+v", rec.outcomes())
	}

	if got := mustList(t, e, testKey); !slices.Equal(got, []string{"bob"}) {
		t.Errorf("members = %v, want [bob]", got)
	}
	assertInvariants(t, e, testKey)
}

func TestTimeout_AfterQueueEmptiedIsNoOp(t *testing.T) {
	e, _, _ := newTestEngine(t)

	mustJoin(t, e, testKey, "alice")
	ticket, _ := e.sched.Armed(testKey)
	mustComplete(t, e, testKey, "alice")

	if out := e.advanceOnTimeout(testKey, ticket); out.Kind != TimeoutNoOp {
		t.Errorf("timeout on emptied queue = %+v, want NoOp", out)
	}
	if out := e.advanceOnTimeout(NewKey("unknown", ""), scheduler.Ticket{Holder: "x", Generation: 99}); out.Kind != TimeoutNoOp {
		t.Errorf("timeout on unknown key = %+v, want NoOp", out)
	}
}

func TestTimeout_SameHolderRejoinedGetsNewTicket(t *testing.T) {
	e, _, _ := newTestEngine(t)

	mustJoin(t, e, testKey, "alice")
	old, _ := e.sched.Armed(testKey)
	mustComplete(t, e, testKey, "alice")
	mustJoin(t, e, testKey, "alice")

	if out := e.advanceOnTimeout(testKey, old); out.Kind != TimeoutNoOp {
		t.Errorf("previous turn's timeout = %+v, want NoOp", out)
	}
	if got := mustList(t, e, testKey); !slices.Equal(got, []string{"alice"}) {
		t.Errorf("members = %v, want [alice]", got)
	}
}

func TestList_EmptyQueue(t *testing.T) {
	e, _, _ := newTestEngine(t)

	members := mustList(t, e, testKey)
	if members == nil || len(members) != 0 {
		t.Errorf("List on new queue = %#v, want empty non-nil slice", members)
	}
	if e.Stats().Queues != 1 {
		t.Errorf("List should create the queue lazily, Stats = %+v", e.Stats())
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	e, _, _ := newTestEngine(t)

	mustJoin(t, e, testKey, "alice")
	members := mustList(t, e, testKey)
	members[0] = "mallory"

	if got := mustList(t, e, testKey); got[0] != "alice" {
		t.Errorf("List result aliases internal state: %v", got)
	}
}

func TestSnapshot(t *testing.T) {
	e, fc, _ := newTestEngine(t)

	snap, err := e.Snapshot(testKey)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Current != "" || len(snap.Members) != 0 || !snap.Deadline.IsZero() {
		t.Errorf("Snapshot of unknown queue = %+v, want empty", snap)
	}
	if e.Stats().Queues != 0 {
		t.Errorf("Snapshot should not create queues, Stats = %+v", e.Stats())
	}

	mustJoin(t, e, testKey, "alice")
	mustJoin(t, e, testKey, "bob")

	snap, err = e.Snapshot(testKey)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Current != "alice" || !slices.Equal(snap.Members, []string{"alice", "bob"}) {
		t.Errorf("Snapshot = %+v, want alice holding [alice bob]", snap)
	}
	if want := fc.Now().Add(DefaultTurnTimeout); !snap.Deadline.Equal(want) {
		t.Errorf("Deadline = %v, want %v", snap.Deadline, want)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	e, fc, rec := newTestEngine(t)

	thread := NewKey("C1", "T1")
	other := NewKey("C1", "T2")
	channel := ContainerKey("C1")

	mustJoin(t, e, thread, "alice")
	mustJoin(t, e, other, "alice")
	mustJoin(t, e, channel, "bob")

	mustComplete(t, e, thread, "alice")

	if got := mustList(t, e, other); !slices.Equal(got, []string{"alice"}) {
		t.Errorf("other thread members = %v, want [alice]", got)
	}
	if stats := e.Stats(); stats.Queues != 3 || stats.Armed != 2 {
		t.Errorf("Stats = %+v, want 3 queues, 2 armed", stats)
	}

	fc.Advance(DefaultTurnTimeout)
	if len(rec.outcomes()) != 2 {
		t.Errorf("timeouts = %+v, want 2", rec.outcomes())
	}
	for _, k := range []Key{thread, other, channel} {
		assertInvariants(t, e, k)
	}
}

func TestInvalidInput(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if _, err := e.Join(Key{}, "alice"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Join with empty key: err = %v, want ErrInvalidKey", err)
	}
	if _, err := e.Join(testKey, ""); !errors.Is(err, ErrInvalidParticipant) {
		t.Errorf("Join with empty participant: err = %v, want ErrInvalidParticipant", err)
	}
	if _, err := e.Complete(testKey, ""); !errors.Is(err, ErrInvalidParticipant) {
		t.Errorf("Complete with empty participant: err = %v, want ErrInvalidParticipant", err)
	}
	if _, err := e.List(Key{ThreadID: "T1"}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("List with empty container: err = %v, want ErrInvalidKey", err)
	}
	if e.Stats().Queues != 0 {
		t.Errorf("invalid input created queues: %+v", e.Stats())
	}
}

func TestClose(t *testing.T) {
	e, fc, rec := newTestEngine(t)

	mustJoin(t, e, testKey, "alice")
	e.Close()
	e.Close()

	if _, err := e.Join(testKey, "bob"); !errors.Is(err, ErrClosed) {
		t.Errorf("Join after Close: err = %v, want ErrClosed", err)
	}
	if _, err := e.Complete(testKey, "alice"); !errors.Is(err, ErrClosed) {
		t.Errorf("Complete after Close: err = %v, want ErrClosed", err)
	}

	fc.Advance(DefaultTurnTimeout)
	if len(rec.outcomes()) != 0 {
		t.Errorf("timeout fired after Close: %+v", rec.outcomes())
	}
}

func TestWithTurnTimeout(t *testing.T) {
	fc := clock.NewFake(time.Now())
	rec := &timeoutRecorder{}
	e := NewEngine(WithClock(fc), WithTurnTimeout(time.Minute), WithTimeoutHandler(rec.handle))
	defer e.Close()

	if e.TurnTimeout() != time.Minute {
		t.Errorf("TurnTimeout() = %v, want 1m", e.TurnTimeout())
	}

	mustJoin(t, e, testKey, "alice")
	fc.Advance(time.Minute)
	if len(rec.outcomes()) != 1 {
		t.Errorf("timeouts = %d, want 1", len(rec.outcomes()))
	}

	if NewEngine(WithTurnTimeout(-time.Second)).TurnTimeout() != DefaultTurnTimeout {
		t.Error("non-positive timeout should keep the default")
	}
}

func TestSetTimeoutHandler(t *testing.T) {
	fc := clock.NewFake(time.Now())
	e := NewEngine(WithClock(fc))
	defer e.Close()

	var got []TimeoutOutcome
	e.SetTimeoutHandler(func(_ Key, out TimeoutOutcome) { got = append(got, out) })

	mustJoin(t, e, testKey, "alice")
	fc.Advance(DefaultTurnTimeout)

	if len(got) != 1 || got[0].Skipped != "alice" {
		t.Errorf("handler got %+v, want alice skipped", got)
	}
}

func TestConcurrentJoinsAndCompletes(t *testing.T) {
	e := NewEngine(WithTurnTimeout(time.Hour))
	defer e.Close()

	const participants = 50
	var wg conc.WaitGroup
	for i := 0; i < participants; i++ {
		p := fmt.Sprintf("user-%d", i)
		wg.Go(func() {
			// Each participant joins twice; only one can be admitted.
			e.Join(testKey, p)
			e.Join(testKey, p)
		})
	}
	wg.Wait()

	members := mustList(t, e, testKey)
	if len(members) != participants {
		t.Fatalf("members = %d, want %d", len(members), participants)
	}
	assertInvariants(t, e, testKey)

	// Everyone hammers Complete; each call succeeds only for the holder.
	var mu sync.Mutex
	var completed []string
	for round := 0; round < participants; round++ {
		var wg conc.WaitGroup
		for _, p := range members {
			wg.Go(func() {
				out, err := e.Complete(testKey, p)
				if err != nil {
					t.Errorf("Complete(%q): %v", p, err)
					return
				}
				if out.Kind != CompleteNotCurrent {
					mu.Lock()
					completed = append(completed, out.Previous)
					mu.Unlock()
				}
			})
		}
		wg.Wait()
		assertInvariants(t, e, testKey)
	}

	if !slices.Equal(completed, members) {
		t.Errorf("completion order = %v, want join order %v", completed, members)
	}
	if stats := e.Stats(); stats.Armed != 0 {
		t.Errorf("armed = %d after draining, want 0", stats.Armed)
	}
}

func TestRaceBetweenTimeoutAndComplete(t *testing.T) {
	countAlice := func(out CompleteOutcome, rec *timeoutRecorder) int {
		n := 0
		if out.Kind != CompleteNotCurrent && out.Previous == "alice" {
			n++
		}
		for _, to := range rec.outcomes() {
			if to.Skipped == "alice" {
				n++
			}
		}
		return n
	}

	for i := 0; i < 100; i++ {
		rec := &timeoutRecorder{}
		e := NewEngine(WithTurnTimeout(time.Millisecond), WithTimeoutHandler(rec.handle))

		mustJoin(t, e, testKey, "alice")
		mustJoin(t, e, testKey, "bob")
		out := mustComplete(t, e, testKey, "alice")

		// The handler runs after the queue lock is released, so a timeout
		// that won the race may still be on its way.
		deadline := time.Now().Add(2 * time.Second)
		for countAlice(out, rec) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(5 * time.Millisecond)

		n := countAlice(out, rec)
		e.Close()

		if n != 1 {
			t.Fatalf("iteration %d: alice left the turn %d times (complete=%+v timeouts=%+v)",
				i, n, out, rec.outcomes())
		}
	}
}
