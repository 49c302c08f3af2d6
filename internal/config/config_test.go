package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "poll", cfg.Execution.Mode)
	assert.Equal(t, 5*time.Second, cfg.Execution.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.Execution.MaxWait)
	assert.Equal(t, "pipeline", cfg.Execution.FailureMode)
	assert.Equal(t, "https://api.pyannote.ai/v1", cfg.Pyannote.BaseURL)
	assert.Equal(t, "audio-studio", cfg.Pyannote.MediaSpace)
	assert.Equal(t, 720*time.Hour, cfg.Redis.RecordTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CONDUCTOR_HTTP_PORT", "9090")
	t.Setenv("CONDUCTOR_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("EXECUTION_MODE", "stream")
	t.Setenv("EXECUTION_FAILURE_MODE", "module")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, "stream", cfg.Execution.Mode)
	assert.Equal(t, "module", cfg.Execution.FailureMode)
	assert.Equal(t, ":9090", cfg.GetHTTPAddr())
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.HTTPPort = 0 }},
		{"unknown backend", func(c *Config) { c.Backend = "postgres" }},
		{"redis backend without addr", func(c *Config) { c.Backend = "redis"; c.Redis.Addr = "" }},
		{"unknown execution mode", func(c *Config) { c.Execution.Mode = "batch" }},
		{"unknown failure mode", func(c *Config) { c.Execution.FailureMode = "all" }},
		{"non-positive poll interval", func(c *Config) { c.Execution.PollInterval = 0 }},
		{"non-positive max wait", func(c *Config) { c.Execution.MaxWait = -time.Second }},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
