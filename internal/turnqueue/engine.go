package turnqueue

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/turnq/internal/clock"
	"github.com/Iron-Ham/turnq/internal/logging"
	"github.com/Iron-Ham/turnq/internal/scheduler"
)

// Engine applies queue transitions and keeps each queue's timeout in step
// with its holder. All methods are safe for concurrent use.
type Engine struct {
	registry  *Registry
	sched     *scheduler.Scheduler[Key]
	clock     clock.Clock
	timeout   time.Duration
	logger    *logging.Logger
	onTimeout TimeoutHandler

	handlerMu sync.RWMutex
	closed    atomic.Bool
}

// NewEngine creates an Engine. By default it uses the real clock and
// DefaultTurnTimeout.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		registry: NewRegistry(),
		timeout:  DefaultTurnTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.logger == nil {
		e.logger = logging.NopLogger()
	}
	e.sched = scheduler.New[Key](e.clock, e.timeoutAdvance)
	return e
}

// SetTimeoutHandler replaces the timeout receiver. It exists for callers
// that must construct the engine before the handler's owner.
func (e *Engine) SetTimeoutHandler(h TimeoutHandler) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()
	e.onTimeout = h
}

// TurnTimeout returns the configured turn timeout.
func (e *Engine) TurnTimeout() time.Duration { return e.timeout }

// Join appends participant to the queue for key.
func (e *Engine) Join(key Key, participant string) (JoinOutcome, error) {
	if err := e.check(key, participant); err != nil {
		return JoinOutcome{}, err
	}

	q := e.registry.GetOrCreate(key)
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.contains(participant) {
		return JoinOutcome{Kind: JoinAlreadyQueued, Participant: participant}, nil
	}

	q.members = append(q.members, participant)

	if len(q.members) == 1 {
		e.arm(q, participant)
		e.queueLog(key).Debug("turn started", "participant", participant, "reason", "join")
		return JoinOutcome{Kind: JoinBecameCurrent, Participant: participant, Position: 1}, nil
	}

	e.queueLog(key).Debug("participant queued", "participant", participant, "position", len(q.members))
	return JoinOutcome{Kind: JoinWaiting, Participant: participant, Position: len(q.members)}, nil
}

// Complete releases the turn held by participant. Anyone other than the
// holder gets CompleteNotCurrent and the queue is left untouched.
func (e *Engine) Complete(key Key, participant string) (CompleteOutcome, error) {
	if err := e.check(key, participant); err != nil {
		return CompleteOutcome{}, err
	}

	q := e.registry.GetOrCreate(key)
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.members) == 0 || q.current() != participant {
		return CompleteOutcome{Kind: CompleteNotCurrent}, nil
	}

	e.sched.Cancel(key)
	q.disarm()
	previous := q.popFront()

	if len(q.members) == 0 {
		e.queueLog(key).Debug("queue emptied", "previous", previous, "reason", "complete")
		return CompleteOutcome{Kind: CompleteEmptied, Previous: previous}, nil
	}

	next := q.current()
	e.arm(q, next)
	e.queueLog(key).Debug("turn started", "participant", next, "previous", previous, "reason", "complete")
	return CompleteOutcome{Kind: CompleteAdvanced, Previous: previous, Next: next}, nil
}

// List returns the members of the queue for key in turn order. The first
// element, if any, holds the turn.
func (e *Engine) List(key Key) ([]string, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	q := e.registry.GetOrCreate(key)
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.members), nil
}

// Snapshot returns the state of the queue for key. Unlike List it does not
// create the queue; an unknown key yields an empty snapshot.
func (e *Engine) Snapshot(key Key) (Snapshot, error) {
	if err := key.Validate(); err != nil {
		return Snapshot{}, err
	}

	q, ok := e.registry.Lookup(key)
	if !ok {
		return Snapshot{Key: key, Members: []string{}}, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot(), nil
}

// Stats reports the number of queues and armed timeouts.
func (e *Engine) Stats() Stats {
	return Stats{
		Queues: e.registry.Len(),
		Armed:  e.sched.Len(),
	}
}

// Close disarms every timeout. Later operations return ErrClosed.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.sched.Stop()
}

// timeoutAdvance is the scheduler's fire callback. A ticket that no longer
// matches the queue's armed generation lost a race with Complete or a
// newer arm and is ignored.
func (e *Engine) timeoutAdvance(key Key, ticket scheduler.Ticket) {
	out := e.advanceOnTimeout(key, ticket)
	if out.Kind == TimeoutNoOp {
		return
	}

	e.handlerMu.RLock()
	h := e.onTimeout
	e.handlerMu.RUnlock()
	if h != nil {
		h(key, out)
	}
}

func (e *Engine) advanceOnTimeout(key Key, ticket scheduler.Ticket) TimeoutOutcome {
	if e.closed.Load() {
		return TimeoutOutcome{Kind: TimeoutNoOp}
	}

	q, ok := e.registry.Lookup(key)
	if !ok {
		return TimeoutOutcome{Kind: TimeoutNoOp}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	log := e.queueLog(key)
	if len(q.members) == 0 || q.armed != ticket.Generation || q.current() != ticket.Holder {
		log.Debug("stale timeout ignored", "holder", ticket.Holder, "generation", ticket.Generation)
		return TimeoutOutcome{Kind: TimeoutNoOp}
	}

	q.disarm()
	skipped := q.popFront()

	if len(q.members) == 0 {
		log.Info("turn timed out", "skipped", skipped, "next", "")
		return TimeoutOutcome{Kind: TimeoutSkippedAndEmptied, Skipped: skipped}
	}

	next := q.current()
	e.arm(q, next)
	log.Info("turn timed out", "skipped", skipped, "next", next)
	return TimeoutOutcome{Kind: TimeoutSkippedAndAdvanced, Skipped: skipped, Next: next}
}

// arm schedules the timeout for holder, replacing any previous one.
// Must be called with q.mu held.
func (e *Engine) arm(q *Queue, holder string) {
	ticket := e.sched.Arm(q.key, holder, e.timeout)
	q.armed = ticket.Generation
	q.deadline = ticket.Deadline
}

func (e *Engine) check(key Key, participant string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := key.Validate(); err != nil {
		return err
	}
	if participant == "" {
		return fmt.Errorf("%w: participant id must not be empty", ErrInvalidParticipant)
	}
	return nil
}

func (e *Engine) queueLog(key Key) *logging.Logger {
	return e.logger.WithQueue(key.ContainerID, key.ThreadID)
}
