package slack

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Iron-Ham/turnq/internal/bot"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// ErrBadSignature is returned when a request fails signature verification.
var ErrBadSignature = errors.New("invalid slack signature")

// Request is an inbound command in free text form.
type Request struct {
	Key  turnqueue.Key
	From bot.Requester
	Text string
}

// VerifyRequest checks the X-Slack-Signature header against body.
func VerifyRequest(header http.Header, body []byte, signingSecret string) error {
	sv, err := slack.NewSecretsVerifier(header, signingSecret)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	return nil
}

// ParseSlashCommand decodes a slash command. The request body must still
// be readable.
func ParseSlashCommand(r *http.Request) (Request, error) {
	sc, err := slack.SlashCommandParse(r)
	if err != nil {
		return Request{}, fmt.Errorf("parse slash command: %w", err)
	}
	return Request{
		Key:  turnqueue.ContainerKey(sc.ChannelID),
		From: bot.Requester{UserID: sc.UserID, ResponseURL: sc.ResponseURL},
		Text: sc.Text,
	}, nil
}

// EventResult is the decoded form of an Events API callback. Exactly one
// of Challenge or Request is set, or neither for events the bot ignores.
// EventID is Slack's delivery-independent id for callback events; retries
// of the same event carry the same id.
type EventResult struct {
	Challenge string
	EventID   string
	Request   *Request
}

// ParseEvent decodes an Events API body. App mentions become requests
// scoped to the thread they were posted in; a mention outside a thread
// starts a queue rooted at the mention itself.
func ParseEvent(body []byte) (EventResult, error) {
	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return EventResult{}, fmt.Errorf("parse event: %w", err)
	}

	switch ev.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			return EventResult{}, fmt.Errorf("parse url_verification: %w", err)
		}
		return EventResult{Challenge: challenge.Challenge}, nil

	case slackevents.CallbackEvent:
		var eventID string
		if cb, ok := ev.Data.(*slackevents.EventsAPICallbackEvent); ok {
			eventID = cb.EventID
		}
		mention, ok := ev.InnerEvent.Data.(*slackevents.AppMentionEvent)
		if !ok || mention.BotID != "" {
			return EventResult{EventID: eventID}, nil
		}
		thread := mention.ThreadTimeStamp
		if thread == "" {
			thread = mention.TimeStamp
		}
		return EventResult{EventID: eventID, Request: &Request{
			Key:  turnqueue.NewKey(mention.Channel, thread),
			From: bot.Requester{UserID: mention.User},
			Text: StripMentions(mention.Text),
		}}, nil
	}
	return EventResult{}, nil
}

// ParseInteraction decodes a block_actions payload into commands, one per
// recognized button. Unrecognized actions are skipped.
func ParseInteraction(r *http.Request) ([]bot.Command, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse interaction form: %w", err)
	}
	payload := r.PostFormValue("payload")
	if payload == "" {
		return nil, errors.New("interaction payload is empty")
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		return nil, fmt.Errorf("decode interaction payload: %w", err)
	}
	if cb.Type != slack.InteractionTypeBlockActions {
		return nil, nil
	}

	channel := cb.Channel.ID
	if channel == "" {
		channel = cb.Container.ChannelID
	}
	// A thread parent reports its own ts as thread_ts; clicks on it belong
	// to the container-wide queue.
	thread := cb.Container.ThreadTs
	if thread == "" && cb.Message.ThreadTimestamp != cb.Message.Timestamp {
		thread = cb.Message.ThreadTimestamp
	}
	key := turnqueue.NewKey(channel, thread)
	from := bot.Requester{UserID: cb.User.ID, ResponseURL: cb.ResponseURL}

	var cmds []bot.Command
	for _, action := range cb.ActionCallback.BlockActions {
		a, ok := bot.ActionForButton(action.ActionID)
		if !ok {
			continue
		}
		cmds = append(cmds, bot.Command{Action: a, Key: key, Requester: from})
	}
	return cmds, nil
}

// StripMentions removes <@USER> tokens so "<@BOT> join" reads as "join".
func StripMentions(text string) string {
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		if strings.HasPrefix(f, "<@") && strings.HasSuffix(f, ">") {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
