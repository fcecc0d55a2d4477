package slack

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/turnq/internal/bot"
	"github.com/Iron-Ham/turnq/internal/logging"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
	"github.com/slack-go/slack"
)

// API is the subset of the Slack Web API client the notifier uses.
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
}

// WebhookFunc posts to a response_url.
type WebhookFunc func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// Notifier delivers bot messages through Slack.
type Notifier struct {
	api     API
	webhook WebhookFunc
	logger  *logging.Logger
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithWebhook overrides how response_url replies are posted.
func WithWebhook(f WebhookFunc) NotifierOption {
	return func(n *Notifier) {
		n.webhook = f
	}
}

// WithNotifierLogger attaches a logger.
func WithNotifierLogger(l *logging.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = l
	}
}

// NewNotifier creates a Notifier using api for Web API calls.
func NewNotifier(api API, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		api:     api,
		webhook: slack.PostWebhookContext,
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify posts msg to the queue's channel, inside its thread when the
// queue is thread scoped.
func (n *Notifier) Notify(ctx context.Context, key turnqueue.Key, msg bot.Message) error {
	opts := append(messageOptions(msg), threadOption(key)...)
	_, ts, err := n.api.PostMessageContext(ctx, key.ContainerID, opts...)
	if err != nil {
		return fmt.Errorf("chat.postMessage to %s: %w", key, err)
	}
	n.logger.Debug("posted message", "channel", key.ContainerID, "thread_ts", key.ThreadID, "ts", ts)
	return nil
}

// Respond replies privately to the requester.
func (n *Notifier) Respond(ctx context.Context, key turnqueue.Key, to bot.Requester, msg bot.Message) error {
	if to.ResponseURL != "" {
		wh := &slack.WebhookMessage{
			Text:         msg.Text,
			ResponseType: "ephemeral",
		}
		if blocks := buildBlocks(msg); len(blocks) > 0 {
			wh.Blocks = &slack.Blocks{BlockSet: blocks}
		}
		if err := n.webhook(ctx, to.ResponseURL, wh); err != nil {
			return fmt.Errorf("response_url reply to %s: %w", to.UserID, err)
		}
		return nil
	}

	opts := append(messageOptions(msg), threadOption(key)...)
	if _, err := n.api.PostEphemeralContext(ctx, key.ContainerID, to.UserID, opts...); err != nil {
		return fmt.Errorf("chat.postEphemeral to %s in %s: %w", to.UserID, key, err)
	}
	return nil
}

func threadOption(key turnqueue.Key) []slack.MsgOption {
	if key.IsContainerWide() {
		return nil
	}
	return []slack.MsgOption{slack.MsgOptionTS(key.ThreadID)}
}

func messageOptions(msg bot.Message) []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if blocks := buildBlocks(msg); len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	return opts
}

// buildBlocks renders a message with buttons as a section plus an actions
// block. Plain messages need no blocks.
func buildBlocks(msg bot.Message) []slack.Block {
	if len(msg.Buttons) == 0 {
		return nil
	}

	elements := make([]slack.BlockElement, 0, len(msg.Buttons))
	for _, b := range msg.Buttons {
		label := slack.NewTextBlockObject(slack.PlainTextType, b.Label, false, false)
		elements = append(elements, slack.NewButtonBlockElement(b.ActionID, b.ActionID, label))
	}

	text := slack.NewTextBlockObject(slack.MarkdownType, msg.Text, false, false)
	return []slack.Block{
		slack.NewSectionBlock(text, nil, nil),
		slack.NewActionBlock("queue_actions", elements...),
	}
}
