// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and TRENDCAST_ env vars.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"runtime"
	"time"

	"github.com/okian/trendcast/internal/domain/forecaster"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"omitempty,oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory fit queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`

	// WorkerCount sets the number of fit workers.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`

	// DedupeSize sets the size of the request id cache.
	DedupeSize int `koanf:"dedupe_size" validate:"gt=0"`

	// ModelCacheSize caps how many models are kept in memory.
	ModelCacheSize int `koanf:"model_cache_size" validate:"gt=0"`

	// SubmitRate limits POST /models per second; 0 disables the limit.
	SubmitRate  float64 `koanf:"submit_rate" validate:"gte=0"`
	SubmitBurst int     `koanf:"submit_burst" validate:"gte=0"`

	// MaxIterations overrides model.max_iterations when positive.
	MaxIterations int `koanf:"max_iterations" validate:"gte=0"`

	FitTimeout      time.Duration `koanf:"fit_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// Model holds the defaults every submitted model starts from.
	Model forecaster.Settings `koanf:"model"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		QueueSize:       1024,
		WorkerCount:     runtime.NumCPU(),
		DedupeSize:      50_000,
		ModelCacheSize:  256,
		SubmitRate:      0,
		SubmitBurst:     10,
		FitTimeout:      5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		Model:           forecaster.DefaultSettings(),
	}
}

// ModelSettings returns the model defaults with MaxIterations applied.
func (c *Config) ModelSettings() forecaster.Settings {
	s := c.Model
	if c.MaxIterations > 0 {
		s.MaxIterations = c.MaxIterations
	}
	return s
}
