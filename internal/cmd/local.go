package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/Iron-Ham/turnq/internal/bot"
	"github.com/Iron-Ham/turnq/internal/config"
	"github.com/Iron-Ham/turnq/internal/console"
	"github.com/Iron-Ham/turnq/internal/logging"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
	"github.com/spf13/cobra"
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Run a queue in the terminal",
	Long: `Run a single queue against the terminal instead of Slack.

Each input line is "<user> <command>", for example:
  alice join
  bob join
  alice done
  bob list

On a terminal the queue is shown live with the holder's remaining time;
piped input is processed line by line with plain output.
Timeouts fire in real time while the session is open.`,
	Args: cobra.NoArgs,
	RunE: runLocal,
}

func init() {
	rootCmd.AddCommand(localCmd)

	localCmd.Flags().String("container", "local", "container id for the queue")
	localCmd.Flags().String("thread", "", "thread id; empty means container-wide")
	localCmd.Flags().Duration("timeout", 0, "turn timeout (default from queue.turn_timeout)")
}

func runLocal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	container, _ := cmd.Flags().GetString("container")
	thread, _ := cmd.Flags().GetString("thread")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = cfg.Queue.TurnTimeout
	}

	key := turnqueue.NewKey(container, thread)
	if err := key.Validate(); err != nil {
		return err
	}

	// Console output owns stdout; logs go to the configured dir or stderr.
	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	queues := turnqueue.NewEngine(
		turnqueue.WithTurnTimeout(timeout),
		turnqueue.WithLogger(logger),
	)
	defer queues.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	if console.IsTerminal(in) && console.IsTerminal(out) {
		feed := console.NewFeed(console.NewStyles(out))
		defer feed.Close()
		svc := bot.NewService(queues, feed,
			bot.WithLogger(logger),
			bot.WithMention(bot.PlainMention),
		)
		return console.RunLive(ctx, console.NewModel(svc, queues, key, feed), in, out)
	}

	notifier := console.NewNotifier(out)
	svc := bot.NewService(queues, notifier,
		bot.WithLogger(logger),
		bot.WithMention(bot.PlainMention),
	)
	return console.NewSession(svc, key, notifier).Run(ctx, in)
}
