package console

import (
	"context"
	"errors"
	"sync"

	"github.com/Iron-Ham/turnq/internal/bot"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
)

// feedBuffer is how many rendered messages may wait for the live view.
const feedBuffer = 64

var errFeedClosed = errors.New("console feed closed")

// Feed is a bot.Notifier that hands rendered messages to the live view
// instead of writing them. It is safe for concurrent use.
type Feed struct {
	styles Styles
	lines  chan string
	done   chan struct{}
	once   sync.Once
}

// NewFeed creates a Feed rendering with styles.
func NewFeed(styles Styles) *Feed {
	return &Feed{
		styles: styles,
		lines:  make(chan string, feedBuffer),
		done:   make(chan struct{}),
	}
}

// Notify queues a broadcast line prefixed with the queue key.
func (f *Feed) Notify(ctx context.Context, key turnqueue.Key, msg bot.Message) error {
	return f.send(ctx, render(f.styles, f.styles.Queue.Render("["+key.String()+"]"), f.styles.Notify, msg))
}

// Respond queues a private line addressed to the requester.
func (f *Feed) Respond(ctx context.Context, _ turnqueue.Key, to bot.Requester, msg bot.Message) error {
	return f.send(ctx, render(f.styles, f.styles.Private.Render("(to "+to.UserID+")"), f.styles.Private, msg))
}

// Lines returns the channel the live view reads from.
func (f *Feed) Lines() <-chan string {
	return f.lines
}

// Close stops delivery. Later sends fail instead of blocking.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}

func (f *Feed) send(ctx context.Context, text string) error {
	select {
	case <-f.done:
		return errFeedClosed
	default:
	}
	select {
	case f.lines <- text:
		return nil
	case <-f.done:
		return errFeedClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
