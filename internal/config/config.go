package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the conductor service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"CONDUCTOR_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Backend selects the persistence and event bus implementation
	Backend string `env:"CONDUCTOR_BACKEND" envDefault:"memory"`

	// Redis configuration (used when Backend is "redis")
	Redis RedisConfig

	// Pyannote configuration
	Pyannote PyannoteConfig

	// Execution configuration
	Execution ExecutionConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	// TTL applied to mirrored workflow and execution records
	RecordTTL time.Duration `env:"REDIS_RECORD_TTL" envDefault:"720h"`
}

// PyannoteConfig holds diarization provider configuration
type PyannoteConfig struct {
	BaseURL    string        `env:"PYANNOTE_BASE_URL" envDefault:"https://api.pyannote.ai/v1"`
	APIKey     string        `env:"PYANNOTE_API_KEY"`
	Timeout    time.Duration `env:"PYANNOTE_TIMEOUT" envDefault:"30s"`
	MediaSpace string        `env:"PYANNOTE_MEDIA_SPACE" envDefault:"audio-studio"`
}

// ExecutionConfig holds pipeline execution configuration
type ExecutionConfig struct {
	// Mode is one of "sync", "poll" or "stream"
	Mode         string        `env:"EXECUTION_MODE" envDefault:"poll"`
	PollInterval time.Duration `env:"EXECUTION_POLL_INTERVAL" envDefault:"5s"`
	MaxWait      time.Duration `env:"EXECUTION_MAX_WAIT" envDefault:"30m"`
	GraceDelay   time.Duration `env:"EXECUTION_GRACE_DELAY" envDefault:"2s"`

	// FailureMode is "pipeline" or "module"
	FailureMode string `env:"EXECUTION_FAILURE_MODE" envDefault:"pipeline"`

	// HealthCheckInterval controls the processing backend probe loop
	HealthCheckInterval time.Duration `env:"EXECUTION_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.Backend != "memory" && c.Backend != "redis" {
		return fmt.Errorf("invalid backend: %s (must be memory or redis)", c.Backend)
	}
	if c.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	switch c.Execution.Mode {
	case "sync", "poll", "stream":
	default:
		return fmt.Errorf("invalid execution mode: %s (must be sync, poll or stream)", c.Execution.Mode)
	}
	switch c.Execution.FailureMode {
	case "pipeline", "module":
	default:
		return fmt.Errorf("invalid failure mode: %s (must be pipeline or module)", c.Execution.FailureMode)
	}
	if c.Execution.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Execution.MaxWait <= 0 {
		return fmt.Errorf("max wait must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
