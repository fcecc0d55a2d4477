package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// TURNQ_SLACK_BOT_TOKEN for slack.bot_token.
const EnvPrefix = "TURNQ"

// Config represents the complete turnq configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Slack     SlackConfig     `mapstructure:"slack" yaml:"slack"`
	Queue     QueueConfig     `mapstructure:"queue" yaml:"queue"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	// Addr is the listen address (default: ":3000"). PORT overrides the port.
	Addr string `mapstructure:"addr" yaml:"addr"`
	// ReadTimeout bounds reading a request (default: 10s)
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	// ShutdownTimeout bounds graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// Release switches gin to release mode
	Release bool `mapstructure:"release" yaml:"release"`
}

// SlackConfig holds Slack app credentials
type SlackConfig struct {
	// BotToken is the xoxb- token used to post messages
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	// SigningSecret verifies inbound requests
	SigningSecret string `mapstructure:"signing_secret" yaml:"signing_secret"`
	// VerifySignatures rejects unsigned requests (default: true)
	VerifySignatures bool `mapstructure:"verify_signatures" yaml:"verify_signatures"`
}

// QueueConfig controls turn behavior
type QueueConfig struct {
	// TurnTimeout is how long a holder keeps the turn (default: 30m)
	TurnTimeout time.Duration `mapstructure:"turn_timeout" yaml:"turn_timeout"`
	// NotifyTimeout bounds each timeout announcement and the handling of
	// each Slack callback (default: 10s)
	NotifyTimeout time.Duration `mapstructure:"notify_timeout" yaml:"notify_timeout"`
}

// RateLimitConfig controls per-user request limiting
type RateLimitConfig struct {
	// PerSecond is the sustained request rate per user; 0 disables limiting (default: 5)
	PerSecond float64 `mapstructure:"per_second" yaml:"per_second"`
	// Burst is the bucket size (default: 10)
	Burst int `mapstructure:"burst" yaml:"burst"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where turnq.log is written; empty logs to stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Slack: SlackConfig{
			VerifySignatures: true,
		},
		Queue: QueueConfig{
			TurnTimeout:   30 * time.Minute,
			NotifyTimeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			PerSecond: 5,
			Burst:     10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Server defaults
	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	viper.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	viper.SetDefault("server.release", defaults.Server.Release)

	// Slack defaults
	viper.SetDefault("slack.bot_token", defaults.Slack.BotToken)
	viper.SetDefault("slack.signing_secret", defaults.Slack.SigningSecret)
	viper.SetDefault("slack.verify_signatures", defaults.Slack.VerifySignatures)

	// Queue defaults
	viper.SetDefault("queue.turn_timeout", defaults.Queue.TurnTimeout)
	viper.SetDefault("queue.notify_timeout", defaults.Queue.NotifyTimeout)

	// Rate limit defaults
	viper.SetDefault("rate_limit.per_second", defaults.RateLimit.PerSecond)
	viper.SetDefault("rate_limit.burst", defaults.RateLimit.Burst)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "turnq")
	}
	// Fall back to ~/.config/turnq
	home, err := os.UserHomeDir()
	if err != nil {
		return ".turnq"
	}
	return filepath.Join(home, ".config", "turnq")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Marshal renders cfg as YAML. Durations are written in their string
// form ("30m0s") so the file reads back through viper unchanged.
func Marshal(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(toFile(cfg))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileConfig mirrors Config with durations as strings.
type fileConfig struct {
	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		Release         bool   `yaml:"release"`
	} `yaml:"server"`
	Slack SlackConfig `yaml:"slack"`
	Queue struct {
		TurnTimeout   string `yaml:"turn_timeout"`
		NotifyTimeout string `yaml:"notify_timeout"`
	} `yaml:"queue"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

func toFile(cfg *Config) fileConfig {
	var f fileConfig
	f.Server.Addr = cfg.Server.Addr
	f.Server.ReadTimeout = cfg.Server.ReadTimeout.String()
	f.Server.ShutdownTimeout = cfg.Server.ShutdownTimeout.String()
	f.Server.Release = cfg.Server.Release
	f.Slack = cfg.Slack
	f.Queue.TurnTimeout = cfg.Queue.TurnTimeout.String()
	f.Queue.NotifyTimeout = cfg.Queue.NotifyTimeout.String()
	f.RateLimit = cfg.RateLimit
	f.Logging = cfg.Logging
	return f
}
