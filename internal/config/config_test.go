package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3001/api", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(home, ".reimburse", "credentials.json"), cfg.Store.Path)
	assert.True(t, cfg.Session.SingleFlight)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
api_url: https://expenses.example.com/api
timeout: 10s
store:
  backend: redis
  redis_url: redis://localhost:6379/0
session:
  single_flight: false
log:
  level: debug
`)

	t.Setenv("REIMBURSE_TIMEOUT", "3s")
	t.Setenv("REIMBURSE_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://expenses.example.com/api", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout, "environment overrides the file")
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, "reimburse:credential", cfg.Store.RedisKey, "unset keys keep defaults")
	assert.False(t, cfg.Session.SingleFlight)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigRead))
}

func TestLoadMalformedFile(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "api_url: [unterminated")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigRead))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty api url",
			mutate:  func(c *Config) { c.APIURL = "" },
			wantErr: "api_url is required",
		},
		{
			name:    "relative api url",
			mutate:  func(c *Config) { c.APIURL = "/api" },
			wantErr: "absolute http(s) URL",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Timeout = 0 },
			wantErr: "timeout must be positive",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "keychain" },
			wantErr: "unknown store backend",
		},
		{
			name:    "redis without url",
			mutate:  func(c *Config) { c.Store.Backend = StoreRedis },
			wantErr: "redis_url is required",
		},
		{
			name:   "memory backend",
			mutate: func(c *Config) { c.Store.Backend = StoreMemory; c.Store.Path = "" },
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.RateLimit = -1 },
			wantErr: "rate_limit",
		},
		{
			name:    "rate limit without burst",
			mutate:  func(c *Config) { c.RateLimit = 10; c.RateBurst = 0 },
			wantErr: "rate_burst",
		},
		{
			name:    "sample rate out of range",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
		})
	}
}
