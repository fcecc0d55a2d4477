package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type names.
const (
	TypeQueueJoined   = "queue.joined"
	TypeTurnStarted   = "turn.started"
	TypeTurnCompleted = "turn.completed"
	TypeTurnTimedOut  = "turn.timeout"
	TypeQueueEmptied  = "queue.emptied"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// QueueRef names the queue an event belongs to. It mirrors the queue key
// without importing the queue package.
type QueueRef struct {
	ContainerID string
	ThreadID    string
}

// QueueJoinedEvent is emitted when a participant is appended behind others.
type QueueJoinedEvent struct {
	baseEvent
	Queue       QueueRef
	Participant string
	Position    int
}

// NewQueueJoinedEvent creates a QueueJoinedEvent.
func NewQueueJoinedEvent(queue QueueRef, participant string, position int) QueueJoinedEvent {
	return QueueJoinedEvent{
		baseEvent:   newBaseEvent(TypeQueueJoined),
		Queue:       queue,
		Participant: participant,
		Position:    position,
	}
}

// TurnStartedEvent is emitted when a participant becomes the holder.
type TurnStartedEvent struct {
	baseEvent
	Queue       QueueRef
	Participant string
	Deadline    time.Time // when the turn times out; zero if unknown
}

// NewTurnStartedEvent creates a TurnStartedEvent.
func NewTurnStartedEvent(queue QueueRef, participant string, deadline time.Time) TurnStartedEvent {
	return TurnStartedEvent{
		baseEvent:   newBaseEvent(TypeTurnStarted),
		Queue:       queue,
		Participant: participant,
		Deadline:    deadline,
	}
}

// TurnCompletedEvent is emitted when the holder finishes.
type TurnCompletedEvent struct {
	baseEvent
	Queue       QueueRef
	Participant string
}

// NewTurnCompletedEvent creates a TurnCompletedEvent.
func NewTurnCompletedEvent(queue QueueRef, participant string) TurnCompletedEvent {
	return TurnCompletedEvent{
		baseEvent:   newBaseEvent(TypeTurnCompleted),
		Queue:       queue,
		Participant: participant,
	}
}

// TurnTimedOutEvent is emitted when the holder is skipped for inactivity.
type TurnTimedOutEvent struct {
	baseEvent
	Queue       QueueRef
	Participant string
}

// NewTurnTimedOutEvent creates a TurnTimedOutEvent.
func NewTurnTimedOutEvent(queue QueueRef, participant string) TurnTimedOutEvent {
	return TurnTimedOutEvent{
		baseEvent:   newBaseEvent(TypeTurnTimedOut),
		Queue:       queue,
		Participant: participant,
	}
}

// QueueEmptiedEvent is emitted when the last member leaves the queue.
type QueueEmptiedEvent struct {
	baseEvent
	Queue QueueRef
}

// NewQueueEmptiedEvent creates a QueueEmptiedEvent.
func NewQueueEmptiedEvent(queue QueueRef) QueueEmptiedEvent {
	return QueueEmptiedEvent{
		baseEvent: newBaseEvent(TypeQueueEmptied),
		Queue:     queue,
	}
}
