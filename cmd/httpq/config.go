package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "HTTPQ"

// Config holds the settings of the run command.
type Config struct {
	File           string        `mapstructure:"file"`
	Concurrency    int           `mapstructure:"concurrency"`
	RPS            int           `mapstructure:"rps"`
	Burst          int           `mapstructure:"burst"`
	OutputRoot     string        `mapstructure:"output-root"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`
	UserAgent      string        `mapstructure:"user-agent"`
	Poll           time.Duration `mapstructure:"poll"`
	DrainTimeout   time.Duration `mapstructure:"drain-timeout"`
	Progress       bool          `mapstructure:"progress"`
	LogLevel       string        `mapstructure:"log-level"`
}

func initFlags(fs *pflag.FlagSet) {
	fs.StringP("file", "f", "", "Path to the YAML batch file")
	fs.Int("concurrency", 0, "Maximum concurrent requests (0 means unlimited)")
	fs.Int("rps", 0, "Requests per second limit (0 disables throttling)")
	fs.Int("burst", 1, "Throttle burst size")
	fs.String("output-root", ".", "Directory output files are written under")
	fs.Duration("timeout", 0, "Default per-request timeout")
	fs.Duration("connect-timeout", 0, "Dial timeout")
	fs.String("user-agent", "httpq/1.0", "Default User-Agent")
	fs.Duration("poll", 50*time.Millisecond, "Dispatch poll interval")
	fs.Duration("drain-timeout", 30*time.Second, "How long to wait for in-flight requests on interrupt")
	fs.Bool("progress", false, "Log output file progress")
	fs.String("log-level", "info", "Log level (debug|info|warn|error)")
	fs.String("config", "", "Optional YAML config file")
}

// loadConfig merges flags, HTTPQ_* environment variables and an optional
// config file, in that order of precedence.
func loadConfig(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.File == "" {
		return errors.New("batch file is required, pass --file or set HTTPQ_FILE")
	}
	if c.Poll <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.RPS < 0 || c.Concurrency < 0 {
		return errors.New("rps and concurrency must not be negative")
	}

	return nil
}

func (c *Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("parsing log level: %w", err)
	}
	return lvl, nil
}
