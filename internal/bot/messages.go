package bot

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/turnq/internal/turnqueue"
)

// MentionFunc renders a participant ID for display.
type MentionFunc func(participant string) string

// SlackMention renders a user ID as a Slack mention.
func SlackMention(participant string) string {
	return "<@" + participant + ">"
}

// PlainMention renders a participant ID unchanged.
func PlainMention(participant string) string {
	return participant
}

// Renderer builds the text of every announcement.
type Renderer struct {
	Mention MentionFunc
}

var (
	doneButton = Button{ActionID: ButtonDone, Label: "Done"}
	joinButton = Button{ActionID: ButtonJoin, Label: "Join"}
)

// TurnStarted announces that participant holds the turn after joining an
// empty queue.
func (r Renderer) TurnStarted(participant string) Message {
	return Message{
		Text:    fmt.Sprintf("🔔 %s, it's your turn.", r.Mention(participant)),
		Buttons: []Button{doneButton},
	}
}

// Waiting tells a new member their position.
func (r Renderer) Waiting(position int) Message {
	return Message{Text: fmt.Sprintf("You're #%d in the queue.", position)}
}

// AlreadyQueued rejects a repeat join.
func (r Renderer) AlreadyQueued() Message {
	return Message{Text: "You're already in the queue."}
}

// NotCurrent rejects a completion from someone other than the holder.
func (r Renderer) NotCurrent() Message {
	return Message{Text: "You're not the current person."}
}

// Advanced announces a completion that handed the turn on.
func (r Renderer) Advanced(previous, next string) Message {
	return Message{
		Text:    fmt.Sprintf("✅ %s is done.\n🔔 %s, it's your turn!", r.Mention(previous), r.Mention(next)),
		Buttons: []Button{doneButton},
	}
}

// Emptied announces a completion that left nobody waiting.
func (r Renderer) Emptied(previous string) Message {
	return Message{Text: fmt.Sprintf("✅ %s is done. Queue is now empty.", r.Mention(previous))}
}

// SkippedAndAdvanced announces a timeout that handed the turn on.
func (r Renderer) SkippedAndAdvanced(skipped, next string) Message {
	return Message{
		Text:    fmt.Sprintf("⏰ %s timed out. %s, it's your turn!", r.Mention(skipped), r.Mention(next)),
		Buttons: []Button{doneButton},
	}
}

// SkippedAndEmptied announces a timeout that left nobody waiting.
func (r Renderer) SkippedAndEmptied(skipped string) Message {
	return Message{Text: fmt.Sprintf("⏰ %s timed out. Queue is now empty.", r.Mention(skipped))}
}

// List renders the members in turn order with a button to join.
func (r Renderer) List(members []string) Message {
	if len(members) == 0 {
		return Message{Text: "Queue is empty.", Buttons: []Button{joinButton}}
	}

	var sb strings.Builder
	sb.WriteString("*Current Queue:*\n")
	for i, m := range members {
		fmt.Fprintf(&sb, "%d. %s", i+1, r.Mention(m))
		if i == 0 {
			sb.WriteString(" (current)")
		}
		sb.WriteString("\n")
	}
	return Message{Text: sb.String(), Buttons: []Button{joinButton}}
}

// Help lists the available commands.
func (r Renderer) Help() Message {
	return Message{
		Text:    "Usage: `/queue join` to get in line, `/queue done` when you're finished, `/queue list` to see who's waiting.",
		Buttons: []Button{joinButton},
	}
}

// Join renders a join outcome. broadcast reports whether the message is
// for the whole conversation.
func (r Renderer) Join(out turnqueue.JoinOutcome) (msg Message, broadcast bool) {
	switch out.Kind {
	case turnqueue.JoinBecameCurrent:
		return r.TurnStarted(out.Participant), true
	case turnqueue.JoinWaiting:
		return r.Waiting(out.Position), false
	default:
		return r.AlreadyQueued(), false
	}
}

// Complete renders a completion outcome.
func (r Renderer) Complete(out turnqueue.CompleteOutcome) (msg Message, broadcast bool) {
	switch out.Kind {
	case turnqueue.CompleteAdvanced:
		return r.Advanced(out.Previous, out.Next), true
	case turnqueue.CompleteEmptied:
		return r.Emptied(out.Previous), true
	default:
		return r.NotCurrent(), false
	}
}

// Timeout renders a timeout outcome. ok is false for a NoOp, which is
// never announced.
func (r Renderer) Timeout(out turnqueue.TimeoutOutcome) (msg Message, ok bool) {
	switch out.Kind {
	case turnqueue.TimeoutSkippedAndAdvanced:
		return r.SkippedAndAdvanced(out.Skipped, out.Next), true
	case turnqueue.TimeoutSkippedAndEmptied:
		return r.SkippedAndEmptied(out.Skipped), true
	default:
		return Message{}, false
	}
}
