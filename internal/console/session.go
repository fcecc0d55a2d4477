package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Iron-Ham/turnq/internal/bot"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
)

// Session feeds input lines to the bot for a single queue.
type Session struct {
	service  *bot.Service
	key      turnqueue.Key
	notifier *Notifier
}

// NewSession creates a Session. The notifier must be the one the service
// was built with so errors and replies share one stream.
func NewSession(service *bot.Service, key turnqueue.Key, notifier *Notifier) *Session {
	return &Session{service: service, key: key, notifier: notifier}
}

// ParseLine splits "<user> <command...>". Blank lines and lines starting
// with '#' are skipped (ok is false).
func ParseLine(line string) (user, text string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	user, text, _ = strings.Cut(line, " ")
	return user, strings.TrimSpace(text), true
}

// Run reads commands from in until EOF or ctx is done. Command failures
// are printed and do not stop the session.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, open := <-lines:
			if !open {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return nil
			}
			s.handle(ctx, line)
		}
	}
}

func (s *Session) handle(ctx context.Context, line string) {
	user, text, ok := ParseLine(line)
	if !ok {
		return
	}
	err := s.service.HandleText(ctx, s.key, bot.Requester{UserID: user}, text)
	switch {
	case err == nil, errors.Is(err, bot.ErrUnknownCommand):
	default:
		s.notifier.Errorf("%s: %v", user, err)
	}
}
