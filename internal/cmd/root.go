package cmd

import (
	"strings"

	"github.com/Iron-Ham/turnq/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "turnq",
	Short: "Turn queues for Slack channels and threads",
	Long: `turnq keeps a first-come, first-served queue per Slack channel or
thread. The person at the front holds the turn until they finish or
their turn times out, and the bot announces every hand-off.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/turnq/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
}

func initConfig() {
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., TURNQ_SLACK_BOT_TOKEN for slack.bot_token
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Hosting platforms hand out the port unprefixed
	_ = viper.BindEnv("port", "PORT")

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
