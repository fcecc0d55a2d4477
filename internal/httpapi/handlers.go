package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/Iron-Ham/turnq/internal/bot"
	"github.com/Iron-Ham/turnq/internal/slack"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
	"github.com/gin-gonic/gin"
)

func (s *Server) getHealth(c *gin.Context) {
	stats := s.queues.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"queues": stats.Queues,
		"armed":  stats.Armed,
	})
}

func (s *Server) getQueue(c *gin.Context) {
	key := turnqueue.NewKey(c.Param("container"), c.Param("thread"))
	snap, err := s.queues.Snapshot(key)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) postCommand(c *gin.Context) {
	req, err := slack.ParseSlashCommand(c.Request)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	if !s.allow(c, req.From.UserID) {
		return
	}

	ctx, cancel := s.handleContext(c)
	defer cancel()
	err = s.service.HandleText(ctx, req.Key, req.From, req.Text)
	s.finish(c, err)
}

func (s *Server) postEvent(c *gin.Context) {
	res, err := slack.ParseEvent(c.MustGet(bodyKey).([]byte))
	if err != nil {
		s.badRequest(c, err)
		return
	}
	if res.Challenge != "" {
		c.JSON(http.StatusOK, gin.H{"challenge": res.Challenge})
		return
	}
	if res.Request == nil {
		c.Status(http.StatusOK)
		return
	}
	if !s.allow(c, res.Request.From.UserID) {
		return
	}
	// A redelivered "done" would end the next holder's turn.
	if !s.events.Claim(res.EventID) {
		requestLogger(c, s.logger).Debug("duplicate event", "event_id", res.EventID)
		c.Status(http.StatusOK)
		return
	}

	ctx, cancel := s.handleContext(c)
	defer cancel()
	err = s.service.HandleText(ctx, res.Request.Key, res.Request.From, res.Request.Text)
	if internalError(err) {
		s.events.Release(res.EventID)
	}
	s.finish(c, err)
}

func (s *Server) postInteraction(c *gin.Context) {
	cmds, err := slack.ParseInteraction(c.Request)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	if len(cmds) == 0 {
		c.Status(http.StatusOK)
		return
	}
	// One payload is one click by one user.
	if !s.allow(c, cmds[0].Requester.UserID) {
		return
	}

	ctx, cancel := s.handleContext(c)
	defer cancel()
	var errs []error
	for _, cmd := range cmds {
		errs = append(errs, s.service.Handle(ctx, cmd))
	}
	s.finish(c, errors.Join(errs...))
}

// handleContext derives the context for handling one callback.
func (s *Server) handleContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.opts.HandleTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.opts.HandleTimeout)
}

// allow applies the per-user limit, writing a 429 when exceeded.
func (s *Server) allow(c *gin.Context, userID string) bool {
	if s.limiter.Allow(userID) {
		return true
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"code":    http.StatusTooManyRequests,
		"message": "rate limit exceeded",
	})
	return false
}

// finish acknowledges a Slack callback. Slack only needs a 200; replies
// travel through the notifier. Delivery failures and unknown commands are
// logged but still acknowledged, since the queue state already changed
// or the user already received usage help.
func (s *Server) finish(c *gin.Context, err error) {
	log := requestLogger(c, s.logger)
	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case errors.Is(err, bot.ErrUnknownCommand):
		log.Debug("unknown command", "error", err)
		c.Status(http.StatusOK)
	case errors.Is(err, bot.ErrDelivery):
		log.Warn("reply delivery failed", "error", err)
		_ = c.Error(err)
		c.Status(http.StatusOK)
	case errors.Is(err, turnqueue.ErrInvalidKey), errors.Is(err, turnqueue.ErrInvalidParticipant):
		s.badRequest(c, err)
	default:
		log.Error("command failed", "error", err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "internal error",
		})
	}
}

// internalError reports whether finish answers err with a 500, meaning
// the command was not applied.
func internalError(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, bot.ErrUnknownCommand),
		errors.Is(err, bot.ErrDelivery),
		errors.Is(err, turnqueue.ErrInvalidKey),
		errors.Is(err, turnqueue.ErrInvalidParticipant):
		return false
	default:
		return true
	}
}

func (s *Server) badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"code":    http.StatusBadRequest,
		"message": err.Error(),
	})
}
