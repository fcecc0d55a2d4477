package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Iron-Ham/turnq/internal/event"
	"github.com/Iron-Ham/turnq/internal/logging"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
	"github.com/sourcegraph/conc/panics"
)

// DefaultNotifyTimeout bounds timeout announcements, which have no caller
// context to inherit.
const DefaultNotifyTimeout = 10 * time.Second

// Service routes commands to the engine and announces the outcomes.
type Service struct {
	engine        *turnqueue.Engine
	notifier      Notifier
	bus           *event.Bus
	logger        *logging.Logger
	render        Renderer
	notifyTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithBus publishes lifecycle events after every applied transition.
func WithBus(bus *event.Bus) Option {
	return func(s *Service) {
		s.bus = bus
	}
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMention sets how participants are rendered. Defaults to SlackMention.
func WithMention(m MentionFunc) Option {
	return func(s *Service) {
		s.render.Mention = m
	}
}

// WithNotifyTimeout bounds each timeout announcement.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// NewService creates a Service and registers it as the engine's timeout
// handler.
func NewService(engine *turnqueue.Engine, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		engine:        engine,
		notifier:      notifier,
		logger:        logging.NopLogger(),
		render:        Renderer{Mention: SlackMention},
		notifyTimeout: DefaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	engine.SetTimeoutHandler(s.onTimeout)
	return s
}

// Handle dispatches a parsed command.
func (s *Service) Handle(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionJoin:
		return s.OnJoinRequest(ctx, cmd.Key, cmd.Requester)
	case ActionDone:
		return s.OnCompleteRequest(ctx, cmd.Key, cmd.Requester)
	case ActionList:
		return s.OnListRequest(ctx, cmd.Key, cmd.Requester)
	case ActionHelp:
		return s.respond(ctx, cmd.Key, cmd.Requester, s.render.Help())
	default:
		if err := s.respond(ctx, cmd.Key, cmd.Requester, s.render.Help()); err != nil {
			return err
		}
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Action)
	}
}

// HandleText parses free-form command text and dispatches it. Unknown
// commands get the usage text and ErrUnknownCommand.
func (s *Service) HandleText(ctx context.Context, key turnqueue.Key, from Requester, text string) error {
	action, err := ParseAction(text)
	if err != nil {
		if rerr := s.respond(ctx, key, from, s.render.Help()); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return s.Handle(ctx, Command{Action: action, Key: key, Requester: from})
}

// OnJoinRequest adds the requester to the queue.
func (s *Service) OnJoinRequest(ctx context.Context, key turnqueue.Key, from Requester) error {
	out, err := s.engine.Join(key, from.UserID)
	if err != nil {
		return err
	}

	s.publishJoin(key, out)
	msg, broadcast := s.render.Join(out)
	if broadcast {
		return s.notify(ctx, key, msg)
	}
	return s.respond(ctx, key, from, msg)
}

// OnCompleteRequest ends the requester's turn.
func (s *Service) OnCompleteRequest(ctx context.Context, key turnqueue.Key, from Requester) error {
	out, err := s.engine.Complete(key, from.UserID)
	if err != nil {
		return err
	}

	s.publishComplete(key, out)
	msg, broadcast := s.render.Complete(out)
	if broadcast {
		return s.notify(ctx, key, msg)
	}
	return s.respond(ctx, key, from, msg)
}

// OnListRequest replies with the queue in turn order.
func (s *Service) OnListRequest(ctx context.Context, key turnqueue.Key, from Requester) error {
	members, err := s.engine.List(key)
	if err != nil {
		return err
	}
	return s.respond(ctx, key, from, s.render.List(members))
}

// onTimeout runs on the engine's timer goroutine. A panicking notifier is
// contained here so it cannot take the process down.
func (s *Service) onTimeout(key turnqueue.Key, out turnqueue.TimeoutOutcome) {
	var pc panics.Catcher
	pc.Try(func() {
		s.publishTimeout(key, out)

		msg, ok := s.render.Timeout(out)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		if err := s.notify(ctx, key, msg); err != nil {
			s.queueLog(key).Warn("timeout announcement failed",
				"skipped", out.Skipped,
				"error", err.Error())
		}
	})
	if r := pc.Recovered(); r != nil {
		s.queueLog(key).Error("timeout handler panicked",
			"panic", r.Value,
			"stack", string(r.Stack))
	}
}

func (s *Service) notify(ctx context.Context, key turnqueue.Key, msg Message) error {
	if err := s.notifier.Notify(ctx, key, msg); err != nil {
		return fmt.Errorf("%w: notify %s: %w", ErrDelivery, key, err)
	}
	return nil
}

func (s *Service) respond(ctx context.Context, key turnqueue.Key, to Requester, msg Message) error {
	if err := s.notifier.Respond(ctx, key, to, msg); err != nil {
		return fmt.Errorf("%w: respond to %s: %w", ErrDelivery, to.UserID, err)
	}
	return nil
}

func (s *Service) queueLog(key turnqueue.Key) *logging.Logger {
	return s.logger.WithQueue(key.ContainerID, key.ThreadID)
}

func refOf(key turnqueue.Key) event.QueueRef {
	return event.QueueRef{ContainerID: key.ContainerID, ThreadID: key.ThreadID}
}

func (s *Service) publishJoin(key turnqueue.Key, out turnqueue.JoinOutcome) {
	if s.bus == nil {
		return
	}
	switch out.Kind {
	case turnqueue.JoinBecameCurrent:
		s.publishStarted(key, out.Participant)
	case turnqueue.JoinWaiting:
		s.bus.Publish(event.NewQueueJoinedEvent(refOf(key), out.Participant, out.Position))
	}
}

func (s *Service) publishComplete(key turnqueue.Key, out turnqueue.CompleteOutcome) {
	if s.bus == nil || out.Kind == turnqueue.CompleteNotCurrent {
		return
	}
	s.bus.Publish(event.NewTurnCompletedEvent(refOf(key), out.Previous))
	if out.Kind == turnqueue.CompleteAdvanced {
		s.publishStarted(key, out.Next)
		return
	}
	s.bus.Publish(event.NewQueueEmptiedEvent(refOf(key)))
}

func (s *Service) publishTimeout(key turnqueue.Key, out turnqueue.TimeoutOutcome) {
	if s.bus == nil || out.Kind == turnqueue.TimeoutNoOp {
		return
	}
	s.bus.Publish(event.NewTurnTimedOutEvent(refOf(key), out.Skipped))
	if out.Kind == turnqueue.TimeoutSkippedAndAdvanced {
		s.publishStarted(key, out.Next)
		return
	}
	s.bus.Publish(event.NewQueueEmptiedEvent(refOf(key)))
}

// publishStarted looks up the deadline; it is left zero if the turn has
// already moved on.
func (s *Service) publishStarted(key turnqueue.Key, participant string) {
	var deadline time.Time
	if snap, err := s.engine.Snapshot(key); err == nil && snap.Current == participant {
		deadline = snap.Deadline
	}
	s.bus.Publish(event.NewTurnStartedEvent(refOf(key), participant, deadline))
}
