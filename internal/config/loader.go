package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "TRENDCAST_"
	envConfig  = envPrefix + "CONFIG"
	modelKey   = "model"
	modelEnvNS = modelKey + "_"
)

// serverKeys are the flat top-level keys. Anything else starting with
// model_ addresses the model section.
var serverKeys = map[string]bool{
	"log_level":        true,
	"log_format":       true,
	"addr":             true,
	"queue_size":       true,
	"worker_count":     true,
	"dedupe_size":      true,
	"model_cache_size": true,
	"submit_rate":      true,
	"submit_burst":     true,
	"max_iterations":   true,
	"fit_timeout":      true,
	"shutdown_timeout": true,
}

var validate = validator.New()

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if TRENDCAST_CONFIG is set
//  3. env (prefix TRENDCAST_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// TRENDCAST_QUEUE_SIZE -> queue_size, TRENDCAST_MODEL_N_CHANGEPOINTS -> model.n_changepoints
	envProvider := env.Provider(envPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the server keys and the model defaults.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.ModelSettings().Validate(); err != nil {
		return fmt.Errorf("%w: model: %w", ErrInvalidConfig, err)
	}
	return nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	if serverKeys[s] {
		return s
	}
	if rest, ok := strings.CutPrefix(s, modelEnvNS); ok {
		return modelKey + "." + rest
	}
	return s
}
