// Package event provides a pub-sub event bus for turn lifecycle
// notifications.
//
// The bot service publishes an event after every queue transition has been
// applied. Subscribers (access logging, metrics, tests) observe the queue
// without being wired into the engine.
//
// # Event Types
//
//   - [QueueJoinedEvent] (queue.joined): a participant is waiting
//   - [TurnStartedEvent] (turn.started): a participant became the holder
//   - [TurnCompletedEvent] (turn.completed): the holder finished
//   - [TurnTimedOutEvent] (turn.timeout): the holder was skipped
//   - [QueueEmptiedEvent] (queue.emptied): nobody is left
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers are called synchronously on
// the publishing goroutine and are protected against panics.
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeTurnTimedOut, func(e event.Event) {
//	    timedOut := e.(event.TurnTimedOutEvent)
//	    log.Printf("%s timed out", timedOut.Participant)
//	})
package event
