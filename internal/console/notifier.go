package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Iron-Ham/turnq/internal/bot"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
	"github.com/charmbracelet/lipgloss"
)

// Notifier writes bot messages to a stream. Announcements from timer
// goroutines may interleave with command replies, so writes are
// serialized. It is safe for concurrent use.
type Notifier struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
}

// NewNotifier creates a Notifier writing to w.
func NewNotifier(w io.Writer) *Notifier {
	return &Notifier{w: w, styles: NewStyles(w)}
}

// Notify prints a broadcast line prefixed with the queue key.
func (n *Notifier) Notify(_ context.Context, key turnqueue.Key, msg bot.Message) error {
	return n.write(n.styles.Queue.Render("["+key.String()+"]"), n.styles.Notify, msg)
}

// Respond prints a private line addressed to the requester.
func (n *Notifier) Respond(_ context.Context, _ turnqueue.Key, to bot.Requester, msg bot.Message) error {
	return n.write(n.styles.Private.Render("(to "+to.UserID+")"), n.styles.Private, msg)
}

// Errorf prints a styled error line.
func (n *Notifier) Errorf(format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintln(n.w, n.styles.Error.Render("error: "+fmt.Sprintf(format, args...)))
}

func (n *Notifier) write(prefix string, body lipgloss.Style, msg bot.Message) error {
	text := render(n.styles, prefix, body, msg)

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := io.WriteString(n.w, text); err != nil {
		return fmt.Errorf("write console message: %w", err)
	}
	return nil
}

// render formats msg as prefixed lines. Continuation lines are indented
// under the prefix and buttons follow the last line.
func render(styles Styles, prefix string, body lipgloss.Style, msg bot.Message) string {
	var b strings.Builder
	lines := strings.Split(strings.TrimRight(msg.Text, "\n"), "\n")
	for i, line := range lines {
		if i == 0 {
			b.WriteString(prefix)
		} else {
			b.WriteString(strings.Repeat(" ", lipgloss.Width(prefix)))
		}
		b.WriteString(" ")
		b.WriteString(body.Render(line))
		if i == len(lines)-1 {
			for _, btn := range msg.Buttons {
				b.WriteString(" ")
				b.WriteString(styles.Button.Render("[" + btn.Label + "]"))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
