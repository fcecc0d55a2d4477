package config

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/turnq/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "queue.turn_timeout")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	levels := logging.ValidLevels()
	for i, l := range levels {
		levels[i] = strings.ToLower(l)
	}
	return levels
}

// minTurnTimeout keeps a misconfigured timeout from skipping people
// before they can react.
const minTurnTimeout = time.Second

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateQueue()...)
	errors = append(errors, c.validateRateLimit()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// ValidateForServe adds the checks that only matter when talking to
// Slack. The local console runs without credentials.
func (c *Config) ValidateForServe() []ValidationError {
	errors := c.Validate()

	if c.Slack.BotToken == "" {
		errors = append(errors, ValidationError{
			Field:   "slack.bot_token",
			Value:   "",
			Message: "is required",
		})
	}
	if c.Slack.VerifySignatures && c.Slack.SigningSecret == "" {
		errors = append(errors, ValidationError{
			Field:   "slack.signing_secret",
			Value:   "",
			Message: "is required when slack.verify_signatures is true",
		})
	}

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if _, port, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Value:   c.Server.Addr,
			Message: "must be host:port",
		})
	} else if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Value:   c.Server.Addr,
			Message: "port must be between 0 and 65535",
		})
	}

	if c.Server.ReadTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.read_timeout",
			Value:   c.Server.ReadTimeout,
			Message: "must be non-negative",
		})
	}
	if c.Server.ShutdownTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.shutdown_timeout",
			Value:   c.Server.ShutdownTimeout,
			Message: "must be positive",
		})
	}

	return errors
}

// validateQueue validates the QueueConfig
func (c *Config) validateQueue() []ValidationError {
	var errors []ValidationError

	if c.Queue.TurnTimeout < minTurnTimeout {
		errors = append(errors, ValidationError{
			Field:   "queue.turn_timeout",
			Value:   c.Queue.TurnTimeout,
			Message: fmt.Sprintf("must be at least %s", minTurnTimeout),
		})
	}
	if c.Queue.NotifyTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "queue.notify_timeout",
			Value:   c.Queue.NotifyTimeout,
			Message: "must be positive",
		})
	}

	return errors
}

// validateRateLimit validates the RateLimitConfig
func (c *Config) validateRateLimit() []ValidationError {
	var errors []ValidationError

	if c.RateLimit.PerSecond < 0 {
		errors = append(errors, ValidationError{
			Field:   "rate_limit.per_second",
			Value:   c.RateLimit.PerSecond,
			Message: "must be non-negative",
		})
	}
	if c.RateLimit.PerSecond > 0 && c.RateLimit.Burst <= 0 {
		errors = append(errors, ValidationError{
			Field:   "rate_limit.burst",
			Value:   c.RateLimit.Burst,
			Message: "must be positive when rate limiting is enabled",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
