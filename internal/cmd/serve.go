package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Iron-Ham/turnq/internal/bot"
	"github.com/Iron-Ham/turnq/internal/config"
	"github.com/Iron-Ham/turnq/internal/event"
	"github.com/Iron-Ham/turnq/internal/httpapi"
	"github.com/Iron-Ham/turnq/internal/logging"
	turnqslack "github.com/Iron-Ham/turnq/internal/slack"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
	"github.com/fsnotify/fsnotify"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// statsInterval is how often queue counts are logged while serving.
const statsInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Slack bot HTTP server",
	Long: `Run the HTTP server that receives Slack slash commands, app mentions
and button clicks.

Credentials come from the config file or the environment:
  TURNQ_SLACK_BOT_TOKEN, TURNQ_SLACK_SIGNING_SECRET
PORT, when set, overrides the port in server.addr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if errs := cfg.ValidateForServe(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", config.ValidationErrors(errs))
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()
	watchLogLevel(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := event.NewBus(event.WithLogger(logger))
	logEvents(bus, logger)

	queues := turnqueue.NewEngine(
		turnqueue.WithTurnTimeout(cfg.Queue.TurnTimeout),
		turnqueue.WithLogger(logger),
	)
	defer queues.Close()

	notifier := turnqslack.NewNotifier(
		slack.New(cfg.Slack.BotToken),
		turnqslack.WithNotifierLogger(logger),
	)
	svc := bot.NewService(queues, notifier,
		bot.WithBus(bus),
		bot.WithLogger(logger),
		bot.WithNotifyTimeout(cfg.Queue.NotifyTimeout),
	)
	srv := httpapi.New(svc, queues, logger, httpapi.Options{
		ReadTimeout:      cfg.Server.ReadTimeout,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
		SigningSecret:    cfg.Slack.SigningSecret,
		VerifySignatures: cfg.Slack.VerifySignatures,
		RatePerSecond:    cfg.RateLimit.PerSecond,
		RateBurst:        cfg.RateLimit.Burst,
		Release:          cfg.Server.Release,
		HandleTimeout:    cfg.Queue.NotifyTimeout,
	})

	addr := listenAddr(cfg.Server.Addr, viper.GetString("port"))
	logger.Info("starting turnq",
		"addr", addr,
		"turn_timeout", cfg.Queue.TurnTimeout.String(),
		"verify_signatures", cfg.Slack.VerifySignatures,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, addr)
	})
	g.Go(func() error {
		reportStats(gctx, queues, logger, statsInterval)
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	logger.Info("turnq stopped")
	return nil
}

// listenAddr replaces the port of addr with port when port is set.
func listenAddr(addr, port string) string {
	if port == "" {
		return addr
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, port)
}

// watchLogLevel re-applies logging.level whenever the config file changes.
func watchLogLevel(logger *logging.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		logger.SetLevel(viper.GetString("logging.level"))
		logger.Info("config reloaded", "file", e.Name, "op", e.Op.String(), "level", logger.Level())
	})
	viper.WatchConfig()
}

// logEvents writes every bus event to the debug log.
func logEvents(bus *event.Bus, logger *logging.Logger) {
	bus.SubscribeAll(func(e event.Event) {
		logger.Debug("event", "type", e.EventType(), "event", e)
	})
}

// reportStats logs queue counts until ctx is done.
func reportStats(ctx context.Context, queues *turnqueue.Engine, logger *logging.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := queues.Stats()
			logger.Info("queue stats", "queues", stats.Queues, "armed", stats.Armed)
		}
	}
}
