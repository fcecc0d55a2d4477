package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Iron-Ham/turnq/internal/turnqueue"
)

// Sentinel errors returned by the service.
var (
	// ErrDelivery wraps a Notifier failure. The queue transition it was
	// announcing has already been applied.
	ErrDelivery = errors.New("notification delivery failed")

	// ErrUnknownCommand is returned for command text that names no action.
	ErrUnknownCommand = errors.New("unknown command")
)

// Action is a queue command.
type Action string

const (
	ActionJoin Action = "join"
	ActionDone Action = "done"
	ActionList Action = "list"
	ActionHelp Action = "help"
)

// Button action IDs attached to messages.
const (
	ButtonJoin = "queue_join"
	ButtonDone = "queue_done"
)

// ParseAction reads the action from command text such as "join" or
// "done please". Empty text maps to ActionHelp.
func ParseAction(text string) (Action, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ActionHelp, nil
	}
	switch a := Action(strings.ToLower(fields[0])); a {
	case ActionJoin, ActionDone, ActionList, ActionHelp:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
}

// ActionForButton maps a button action ID to an Action.
func ActionForButton(actionID string) (Action, bool) {
	switch actionID {
	case ButtonJoin:
		return ActionJoin, true
	case ButtonDone:
		return ActionDone, true
	default:
		return "", false
	}
}

// Requester identifies who sent a command and where a private reply goes.
type Requester struct {
	UserID string
	// ResponseURL is a platform callback for private replies. Optional.
	ResponseURL string
}

// Command is one parsed inbound request.
type Command struct {
	Action    Action
	Key       turnqueue.Key
	Requester Requester
}

// Button is an interactive control offered with a message.
type Button struct {
	ActionID string
	Label    string
}

// Message is an outbound chat message.
type Message struct {
	Text    string
	Buttons []Button
}

// Notifier delivers messages to the chat platform.
type Notifier interface {
	// Notify posts a message visible to everyone in the conversation.
	Notify(ctx context.Context, key turnqueue.Key, msg Message) error

	// Respond replies to the requester only.
	Respond(ctx context.Context, key turnqueue.Key, to Requester, msg Message) error
}
