package turnqueue

import (
	"time"

	"github.com/Iron-Ham/turnq/internal/clock"
	"github.com/Iron-Ham/turnq/internal/logging"
)

// DefaultTurnTimeout is how long a holder keeps the turn without completing.
const DefaultTurnTimeout = 30 * time.Minute

// Option configures an Engine.
type Option func(*Engine)

// WithTurnTimeout overrides the process-wide turn timeout. Non-positive
// values are ignored.
func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithClock sets the clock used to schedule timeouts.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTimeoutHandler registers the receiver for timeout advances.
func WithTimeoutHandler(h TimeoutHandler) Option {
	return func(e *Engine) {
		e.onTimeout = h
	}
}
