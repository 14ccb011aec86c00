// Package config loads CLI configuration from a YAML file and REIMBURSE_*
// environment variables, in that order of precedence (environment wins).
// Command-line flags are applied on top by the cmd package.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "REIMBURSE_"

// Store backends
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config is the complete runtime configuration.
type Config struct {
	// APIURL is the backend base URL including the /api prefix.
	APIURL string `yaml:"api_url" env:"API_URL"`

	// Timeout bounds every backend call.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// LogoutTimeout bounds the best-effort logout notification.
	LogoutTimeout time.Duration `yaml:"logout_timeout" env:"LOGOUT_TIMEOUT"`

	// RateLimit caps backend requests per second. Zero disables the limit.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`

	Store     StoreConfig     `yaml:"store"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig selects and configures the credential store.
type StoreConfig struct {
	Backend    string `yaml:"backend" env:"STORE"`
	Path       string `yaml:"path" env:"STORE_PATH"`
	Passphrase string `yaml:"passphrase" env:"STORE_PASSPHRASE"`
	RedisURL   string `yaml:"redis_url" env:"REDIS_URL"`
	RedisKey   string `yaml:"redis_key" env:"REDIS_KEY"`
}

// SessionConfig tunes the session manager.
type SessionConfig struct {
	// SingleFlight shares one refresh exchange between concurrent callers
	// holding the same expired credential.
	SingleFlight bool `yaml:"single_flight" env:"SINGLE_FLIGHT"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// TelemetryConfig configures internal/telemetry.
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled" env:"TELEMETRY"`
	Endpoint   string  `yaml:"endpoint" env:"OTLP_ENDPOINT"`
	SampleRate float64 `yaml:"sample_rate" env:"TRACE_SAMPLE_RATE"`
}

// Dir returns ~/.reimburse, falling back to ./.reimburse when the home
// directory cannot be determined.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".reimburse"
	}
	return filepath.Join(home, ".reimburse")
}

// DefaultPath is the config file consulted when --config is not given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:        "http://localhost:3001/api",
		Timeout:       30 * time.Second,
		LogoutTimeout: 5 * time.Second,
		RateBurst:     5,
		Store: StoreConfig{
			Backend:  StoreFile,
			Path:     filepath.Join(Dir(), "credentials.json"),
			RedisKey: "reimburse:credential",
		},
		Session: SessionConfig{
			SingleFlight: true,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			SampleRate: 1.0,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment. An empty path means DefaultPath, which may be absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigRead, fmt.Sprintf("failed to parse config file: %s", path), err)
		}
	case os.IsNotExist(err) && !explicit:
		// no config file is fine
	default:
		return nil, errors.Wrap(errors.ErrCodeConfigRead, fmt.Sprintf("failed to read config file: %s", path), err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigRead, "failed to parse environment variables", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.NewConfigInvalidError("api_url is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewConfigInvalidError(fmt.Sprintf("api_url must be an absolute http(s) URL, got %q", c.APIURL))
	}
	if c.Timeout <= 0 {
		return errors.NewConfigInvalidError("timeout must be positive")
	}
	if c.LogoutTimeout <= 0 {
		return errors.NewConfigInvalidError("logout_timeout must be positive")
	}
	if c.RateLimit < 0 {
		return errors.NewConfigInvalidError("rate_limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return errors.NewConfigInvalidError("rate_burst must be at least 1 when rate_limit is set")
	}

	switch c.Store.Backend {
	case StoreFile:
		if c.Store.Path == "" {
			return errors.NewConfigInvalidError("store.path is required for the file backend")
		}
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return errors.NewConfigInvalidError("store.redis_url is required for the redis backend")
		}
		if c.Store.RedisKey == "" {
			return errors.NewConfigInvalidError("store.redis_key must not be empty")
		}
	case StoreMemory:
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("unknown store backend %q (supported: file, redis, memory)", c.Store.Backend))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return errors.NewConfigInvalidError("telemetry.sample_rate must be between 0 and 1")
	}

	return nil
}
