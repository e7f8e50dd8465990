// Package config loads and validates server configuration from the
// environment, the way ws/config.go does it in the teacher repo.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all tunables for the store daemon.
//
// Tags:
//
//	env: environment variable name
//	envDefault: default value if not set
type Config struct {
	// Job engine
	JobsDir       string `env:"KV_JOBS_DIR" envDefault:"./jobs"`
	MaxJobWorkers int    `env:"KV_MAX_JOB_WORKERS" envDefault:"4"`
	MaxBackups    int    `env:"KV_MAX_BACKUPS" envDefault:"2"`

	// Session layer
	IntakePipePath string `env:"KV_INTAKE_PIPE" envDefault:"/tmp/kvnotify/intake"`
	MaxSessions    int    `env:"KV_MAX_SESSIONS" envDefault:"16"`

	// Data model
	BucketCount int `env:"KV_BUCKET_COUNT" envDefault:"32"`
	MaxKeyLen   int `env:"KV_MAX_KEY_LEN" envDefault:"256"`
	MaxValueLen int `env:"KV_MAX_VALUE_LEN" envDefault:"1024"`
	MaxPathLen  int `env:"KV_MAX_PATH_LEN" envDefault:"256"`

	// Admission limiting (connects/sec), mirrors the teacher's
	// resource-guard rate limiting.
	MaxConnectsPerSec float64 `env:"KV_MAX_CONNECTS_PER_SEC" envDefault:"50"`
	ConnectBurst      int     `env:"KV_CONNECT_BURST" envDefault:"100"`

	// Observability
	MetricsAddr     string `env:"KV_METRICS_ADDR" envDefault:":9090"`
	LogLevel        string `env:"KV_LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"KV_LOG_FORMAT" envDefault:"json"`
	ResourceSampleS int    `env:"KV_RESOURCE_SAMPLE_SECONDS" envDefault:"15"`
}

// Load reads configuration from a .env file (if present) and the
// environment. Priority: env vars > .env file > defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("info: no .env file found (using environment variables only)")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for internally-inconsistent or
// out-of-range values.
func (c *Config) Validate() error {
	if c.JobsDir == "" {
		return fmt.Errorf("KV_JOBS_DIR is required")
	}
	if c.IntakePipePath == "" {
		return fmt.Errorf("KV_INTAKE_PIPE is required")
	}
	if c.MaxJobWorkers < 1 {
		return fmt.Errorf("KV_MAX_JOB_WORKERS must be > 0, got %d", c.MaxJobWorkers)
	}
	if c.MaxBackups < 1 {
		return fmt.Errorf("KV_MAX_BACKUPS must be > 0, got %d", c.MaxBackups)
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("KV_MAX_SESSIONS must be > 0, got %d", c.MaxSessions)
	}
	if c.BucketCount < 1 {
		return fmt.Errorf("KV_BUCKET_COUNT must be >= 1, got %d", c.BucketCount)
	}
	if c.MaxKeyLen < 1 || c.MaxValueLen < 1 {
		return fmt.Errorf("KV_MAX_KEY_LEN and KV_MAX_VALUE_LEN must be > 0")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("KV_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}

	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("KV_LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}

	return nil
}

// Print writes a human-readable configuration summary to stdout. The
// server logs its configuration through LogConfig and does not call
// Print.
func (c *Config) Print() {
	fmt.Println("=== kvnotify configuration ===")
	fmt.Printf("Jobs dir:        %s\n", c.JobsDir)
	fmt.Printf("Max job workers: %d\n", c.MaxJobWorkers)
	fmt.Printf("Max backups:     %d\n", c.MaxBackups)
	fmt.Printf("Intake pipe:     %s\n", c.IntakePipePath)
	fmt.Printf("Max sessions:    %d\n", c.MaxSessions)
	fmt.Printf("Buckets:         %d\n", c.BucketCount)
	fmt.Printf("Max key/value:   %d/%d bytes\n", c.MaxKeyLen, c.MaxValueLen)
	fmt.Printf("Log level/format: %s/%s\n", c.LogLevel, c.LogFormat)
	fmt.Println("==============================")
}

// LogConfig emits the configuration as a structured log event.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("jobs_dir", c.JobsDir).
		Int("max_job_workers", c.MaxJobWorkers).
		Int("max_backups", c.MaxBackups).
		Str("intake_pipe", c.IntakePipePath).
		Int("max_sessions", c.MaxSessions).
		Int("bucket_count", c.BucketCount).
		Int("max_key_len", c.MaxKeyLen).
		Int("max_value_len", c.MaxValueLen).
		Float64("max_connects_per_sec", c.MaxConnectsPerSec).
		Str("metrics_addr", c.MetricsAddr).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}
