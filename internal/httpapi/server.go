package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Iron-Ham/turnq/internal/bot"
	"github.com/Iron-Ham/turnq/internal/logging"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
	"github.com/gin-gonic/gin"
)

// Options configures a Server.
type Options struct {
	ReadTimeout      time.Duration
	ShutdownTimeout  time.Duration
	SigningSecret    string
	VerifySignatures bool
	RatePerSecond    float64
	RateBurst        int
	Release          bool
	// HandleTimeout bounds the handling of one Slack callback, replies
	// included. Zero leaves it bound only by the request.
	HandleTimeout time.Duration
}

// Server is the HTTP front end for the bot.
type Server struct {
	engine  *gin.Engine
	service *bot.Service
	queues  *turnqueue.Engine
	limiter *UserLimiter
	events  *EventDeduper
	logger  *logging.Logger
	opts    Options
}

// New builds a Server with all routes registered.
func New(service *bot.Service, queues *turnqueue.Engine, logger *logging.Logger, opts Options) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.RedirectTrailingSlash = false

	s := &Server{
		engine:  r,
		service: service,
		queues:  queues,
		limiter: NewUserLimiter(opts.RatePerSecond, opts.RateBurst),
		events:  NewEventDeduper(eventMaxSeen, eventTTL),
		logger:  logger.With("component", "http"),
		opts:    opts,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.Use(RequestID(), AccessLog(s.logger), Recovery(s.logger))

	s.engine.GET("/healthz", s.getHealth)

	v1 := s.engine.Group("/v1")
	v1.GET("/queues/:container", s.getQueue)
	v1.GET("/queues/:container/threads/:thread", s.getQueue)

	sl := s.engine.Group("/slack", VerifySlack(s.opts.SigningSecret, s.opts.VerifySignatures))
	sl.POST("/commands", s.postCommand)
	sl.POST("/events", s.postEvent)
	sl.POST("/interactions", s.postInteraction)
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on address until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		ReadTimeout:       s.opts.ReadTimeout,
	}

	s.logger.Info("http server starting", "addr", ln.Addr().String())
	srvError := make(chan error, 1)
	go func() {
		srvError <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
		timeout := s.opts.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-srvError:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
