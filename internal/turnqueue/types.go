package turnqueue

import (
	"errors"
	"time"
)

// Sentinel errors returned by engine operations.
var (
	ErrInvalidKey         = errors.New("invalid queue key")
	ErrInvalidParticipant = errors.New("invalid participant")
	ErrClosed             = errors.New("engine closed")
)

// JoinKind classifies the result of a join.
type JoinKind string

const (
	// JoinBecameCurrent means the queue was empty and the participant now
	// holds the turn.
	JoinBecameCurrent JoinKind = "became_current"

	// JoinWaiting means the participant was appended behind others.
	JoinWaiting JoinKind = "waiting"

	// JoinAlreadyQueued means the participant was already a member.
	JoinAlreadyQueued JoinKind = "already_queued"
)

func (k JoinKind) String() string { return string(k) }

// JoinOutcome is the result of Engine.Join.
type JoinOutcome struct {
	Kind        JoinKind `json:"kind"`
	Participant string   `json:"participant"`
	// Position is the 1-based rank in the queue, the holder being 1.
	// Zero for JoinAlreadyQueued.
	Position int `json:"position,omitempty"`
}

// CompleteKind classifies the result of a completion.
type CompleteKind string

const (
	// CompleteAdvanced means the holder finished and the next member took over.
	CompleteAdvanced CompleteKind = "advanced"

	// CompleteEmptied means the holder finished and nobody was waiting.
	CompleteEmptied CompleteKind = "emptied"

	// CompleteNotCurrent means the caller does not hold the turn.
	CompleteNotCurrent CompleteKind = "not_current"
)

func (k CompleteKind) String() string { return string(k) }

// CompleteOutcome is the result of Engine.Complete.
type CompleteOutcome struct {
	Kind     CompleteKind `json:"kind"`
	Previous string       `json:"previous,omitempty"`
	Next     string       `json:"next,omitempty"`
}

// TimeoutKind classifies the result of a timeout advance.
type TimeoutKind string

const (
	// TimeoutSkippedAndAdvanced means the holder was skipped and the next
	// member took over.
	TimeoutSkippedAndAdvanced TimeoutKind = "skipped_and_advanced"

	// TimeoutSkippedAndEmptied means the holder was skipped and nobody was
	// waiting.
	TimeoutSkippedAndEmptied TimeoutKind = "skipped_and_emptied"

	// TimeoutNoOp means the firing was stale and nothing changed.
	TimeoutNoOp TimeoutKind = "noop"
)

func (k TimeoutKind) String() string { return string(k) }

// TimeoutOutcome is the result of a timeout advance.
type TimeoutOutcome struct {
	Kind    TimeoutKind `json:"kind"`
	Skipped string      `json:"skipped,omitempty"`
	Next    string      `json:"next,omitempty"`
}

// TimeoutHandler receives every timeout advance that changed a queue.
// It is called after the queue lock is released.
type TimeoutHandler func(key Key, outcome TimeoutOutcome)

// Snapshot is a read-only copy of a queue's state.
type Snapshot struct {
	Key     Key      `json:"key"`
	Members []string `json:"members"`
	// Current is empty when the queue is empty.
	Current string `json:"current,omitempty"`
	// Deadline is when the current holder's turn times out.
	Deadline time.Time `json:"deadline,omitzero"`
}

// Stats summarizes the engine.
type Stats struct {
	Queues int `json:"queues"`
	Armed  int `json:"armed"`
}
