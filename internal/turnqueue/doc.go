// Package turnqueue implements per-conversation turn queues: a FIFO line of
// participants where the participant at the front holds the turn.
//
// A [Queue] is identified by a [Key] (container × optional thread) and is
// created lazily by the [Registry] on first reference. All mutation goes
// through the [Engine], which applies three transitions:
//
//   - Join appends a participant; the first participant in an empty queue
//     becomes the holder immediately.
//   - Complete releases the turn, but only when called by the holder.
//   - A timeout advance skips a holder who kept the turn too long. It is
//     driven by a [scheduler.Scheduler] and never called directly.
//
// The front of the member list is the only record of who holds the turn.
// Whenever the holder changes to someone, exactly one timeout is armed for
// them; whenever the queue empties, none is.
//
// Each transition runs under the queue's own mutex, covering the
// read-modify-write and the timer re-arm together. Different queues never
// contend. The engine performs no I/O: it returns outcome values and the
// caller decides what to announce.
//
// Usage:
//
//	engine := turnqueue.NewEngine(
//	    turnqueue.WithTimeoutHandler(func(key turnqueue.Key, out turnqueue.TimeoutOutcome) {
//	        // announce out.Skipped timing out
//	    }),
//	)
//	defer engine.Close()
//
//	key := turnqueue.NewKey("C123", "1700000000.000100")
//	out, err := engine.Join(key, "U_ALICE") // out.Kind == turnqueue.JoinBecameCurrent
package turnqueue
