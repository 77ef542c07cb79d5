// Package config loads and validates agent configuration via Viper. Values
// come from the environment, optionally seeded from a .env file and a YAML
// config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingRequired is returned when a required setting is absent.
var ErrMissingRequired = errors.New("missing required configuration")

// Config captures all agent configuration knobs. Durations are in seconds.
type Config struct {
	ClipjotAPIURL   string  `mapstructure:"clipjot_api_url"`
	ClipjotAPIToken string  `mapstructure:"clipjot_api_token"`
	OllamaHost      string  `mapstructure:"ollama_host"`
	OllamaModel     string  `mapstructure:"ollama_model"`
	FetchMinDelay   float64 `mapstructure:"fetch_min_delay"`
	FetchMaxDelay   float64 `mapstructure:"fetch_max_delay"`
	FetchMaxBackoff float64 `mapstructure:"fetch_max_backoff"`
	FetchTimeout    float64 `mapstructure:"fetch_timeout"`
	FetchHeadless   bool    `mapstructure:"fetch_headless"`
	MaxAttempts     int     `mapstructure:"max_attempts"`
	SyncLimit       int     `mapstructure:"sync_limit"`
	SyncTimeout     float64 `mapstructure:"sync_timeout"`
	LoopErrorSleep  float64 `mapstructure:"loop_error_sleep"`
	EditRPS         float64 `mapstructure:"edit_rps"`
	StateFile       string  `mapstructure:"state_file"`
	LogLevel        string  `mapstructure:"log_level"`
	LogVerbose      bool    `mapstructure:"log_verbose"`
	LogDevelopment  bool    `mapstructure:"log_development"`
	AdminAddr       string  `mapstructure:"admin_addr"`
	AuditDSN        string  `mapstructure:"audit_dsn"`
}

var keys = []string{
	"clipjot_api_url",
	"clipjot_api_token",
	"ollama_host",
	"ollama_model",
	"fetch_min_delay",
	"fetch_max_delay",
	"fetch_max_backoff",
	"fetch_timeout",
	"fetch_headless",
	"max_attempts",
	"sync_limit",
	"sync_timeout",
	"loop_error_sleep",
	"edit_rps",
	"state_file",
	"log_level",
	"log_verbose",
	"log_development",
	"admin_addr",
	"audit_dsn",
}

// Load builds a Config. envFile, when set, must exist; otherwise a .env in
// the working directory is loaded if present. Existing environment
// variables always win over .env entries.
func Load(envFile, configPath string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	for _, key := range keys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ClipjotAPIURL = strings.TrimRight(strings.TrimSpace(cfg.ClipjotAPIURL), "/")
	cfg.ClipjotAPIToken = strings.TrimSpace(cfg.ClipjotAPIToken)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("ollama_model", "qwen3")
	v.SetDefault("fetch_min_delay", 1.0)
	v.SetDefault("fetch_max_delay", 3.0)
	v.SetDefault("fetch_max_backoff", 300.0)
	v.SetDefault("fetch_timeout", 30.0)
	v.SetDefault("fetch_headless", false)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("sync_limit", 50)
	v.SetDefault("sync_timeout", 120.0)
	v.SetDefault("loop_error_sleep", 10.0)
	v.SetDefault("edit_rps", 2.0)
	v.SetDefault("state_file", "state.json")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_verbose", true)
	v.SetDefault("log_development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.ClipjotAPIURL == "" {
		return fmt.Errorf("%w: CLIPJOT_API_URL", ErrMissingRequired)
	}
	if c.ClipjotAPIToken == "" {
		return fmt.Errorf("%w: CLIPJOT_API_TOKEN", ErrMissingRequired)
	}
	if c.OllamaModel == "" {
		return fmt.Errorf("%w: OLLAMA_MODEL", ErrMissingRequired)
	}
	if c.FetchMinDelay < 0 {
		return fmt.Errorf("fetch_min_delay must be >= 0")
	}
	if c.FetchMaxDelay < c.FetchMinDelay {
		return fmt.Errorf("fetch_max_delay must be >= fetch_min_delay")
	}
	if c.FetchMaxBackoff <= 0 {
		return fmt.Errorf("fetch_max_backoff must be > 0")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be > 0")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1")
	}
	if c.SyncLimit < 1 || c.SyncLimit > 100 {
		return fmt.Errorf("sync_limit must be between 1 and 100")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state_file must be set")
	}
	return nil
}

// MinDelay returns the lower bound of the normal fetch delay.
func (c Config) MinDelay() time.Duration { return seconds(c.FetchMinDelay) }

// MaxDelay returns the upper bound of the normal fetch delay.
func (c Config) MaxDelay() time.Duration { return seconds(c.FetchMaxDelay) }

// MaxBackoff returns the backoff ceiling.
func (c Config) MaxBackoff() time.Duration { return seconds(c.FetchMaxBackoff) }

// FetchTimeoutDuration returns the per-strategy fetch timeout.
func (c Config) FetchTimeoutDuration() time.Duration { return seconds(c.FetchTimeout) }

// SyncTimeoutDuration returns the long-poll request timeout.
func (c Config) SyncTimeoutDuration() time.Duration { return seconds(c.SyncTimeout) }

// LoopErrorSleepDuration returns the pause after a failed loop iteration.
func (c Config) LoopErrorSleepDuration() time.Duration { return seconds(c.LoopErrorSleep) }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
