package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Iron-Ham/turnq/internal/bot"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	// maxLines caps the scrollback kept by the live view.
	maxLines = 200

	// defaultVisibleLines is used before the terminal reports its size.
	defaultVisibleLines = 12

	// commandTimeout bounds one typed command, replies included.
	commandTimeout = 10 * time.Second

	// refreshInterval drives the holder's countdown.
	refreshInterval = time.Second
)

// QueueView is the read side of the engine polled by the live view.
type QueueView interface {
	Snapshot(key turnqueue.Key) (turnqueue.Snapshot, error)
	TurnTimeout() time.Duration
}

// Messages

type lineMsg string

type handledMsg struct {
	user string
	err  error
}

type tickMsg time.Time

// Model is the Bubbletea model for the live queue view. It shows the
// members with the holder's remaining time above a scrollback of bot
// messages, and reads "<user> <command>" lines from a text input.
type Model struct {
	service *bot.Service
	queues  QueueView
	key     turnqueue.Key
	feed    *Feed
	styles  Styles
	now     func() time.Time

	input    textinput.Model
	snap     turnqueue.Snapshot
	lines    []string
	height   int
	quitting bool
}

// NewModel creates the live view for key. The service must deliver
// through feed.
func NewModel(service *bot.Service, queues QueueView, key turnqueue.Key, feed *Feed) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "alice join"
	ti.CharLimit = 200
	ti.Width = 40
	ti.Focus()

	m := Model{
		service: service,
		queues:  queues,
		key:     key,
		feed:    feed,
		styles:  feed.styles,
		now:     time.Now,
		input:   ti,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForLine(m.feed.Lines()), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			line := m.input.Value()
			m.input.Reset()
			user, text, ok := ParseLine(line)
			if !ok {
				return m, nil
			}
			m.appendLines(m.styles.Private.Render("> " + strings.TrimSpace(line)))
			return m, m.handle(user, text)
		}

	case lineMsg:
		m.appendLines(strings.TrimRight(string(msg), "\n"))
		m.refresh()
		return m, waitForLine(m.feed.Lines())

	case handledMsg:
		if msg.err != nil && !errors.Is(msg.err, bot.ErrUnknownCommand) {
			m.appendLines(m.styles.Error.Render(fmt.Sprintf("error: %s: %v", msg.user, msg.err)))
		}
		m.refresh()
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Queue.Render("Queue " + m.key.String()))
	b.WriteString(m.styles.Private.Render(fmt.Sprintf("  turns time out after %s", m.queues.TurnTimeout().Round(time.Second))))
	b.WriteString("\n\n")

	if len(m.snap.Members) == 0 {
		b.WriteString(m.styles.Private.Render("  nobody in line"))
		b.WriteString("\n")
	}
	for i, member := range m.snap.Members {
		fmt.Fprintf(&b, "  %d. %s", i+1, member)
		if i == 0 {
			b.WriteString(" ")
			b.WriteString(m.styles.Button.Render("(current)"))
			if !m.snap.Deadline.IsZero() {
				left := max(m.snap.Deadline.Sub(m.now()), 0).Round(time.Second)
				b.WriteString(m.styles.Private.Render(fmt.Sprintf(" %s left", left)))
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, line := range m.visibleLines() {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Private.Render("<user> join | done | list | help    esc quit"))
	return b.String()
}

// refresh re-reads the queue. A failed read keeps the last snapshot.
func (m *Model) refresh() {
	snap, err := m.queues.Snapshot(m.key)
	if err != nil {
		return
	}
	m.snap = snap
}

func (m *Model) appendLines(text string) {
	m.lines = append(m.lines, strings.Split(text, "\n")...)
	if over := len(m.lines) - maxLines; over > 0 {
		m.lines = m.lines[over:]
	}
}

// visibleLines returns the tail of the scrollback that fits the screen
// below the member list.
func (m Model) visibleLines() []string {
	n := defaultVisibleLines
	if m.height > 0 {
		// header, blank, members, blank, blank, input, help
		n = m.height - len(m.snap.Members) - 7
	}
	n = max(n, 1)
	if len(m.lines) <= n {
		return m.lines
	}
	return m.lines[len(m.lines)-n:]
}

// handle runs one typed command off the UI goroutine.
func (m Model) handle(user, text string) tea.Cmd {
	service, key := m.service, m.key
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		err := service.HandleText(ctx, key, bot.Requester{UserID: user}, text)
		return handledMsg{user: user, err: err}
	}
}

// Commands

func waitForLine(lines <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-lines
		if !ok {
			return nil
		}
		return lineMsg(line)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunLive runs the live view on in and out until the user quits or ctx
// is done.
func RunLive(ctx context.Context, m Model, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
