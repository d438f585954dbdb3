package estimator

import (
	"github.com/okian/trendcast/pkg/logger"
	"github.com/okian/trendcast/pkg/solver"
)

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithOptimizers sets the primary and fallback optimizers.
func WithOptimizers(primary, fallback solver.Optimizer) Option {
	return func(e *Estimator) {
		if primary != nil {
			e.primary = primary
		}
		if fallback != nil {
			e.fallback = fallback
		}
	}
}

// WithSampler sets the posterior sampler.
func WithSampler(s solver.Sampler) Option {
	return func(e *Estimator) {
		if s != nil {
			e.sampler = s
		}
	}
}

// WithMCMCSamples switches to posterior sampling with n draws; 0 keeps MAP.
func WithMCMCSamples(n int) Option {
	return func(e *Estimator) {
		if n >= 0 {
			e.mcmcSamples = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Estimator) {
		if l != nil {
			e.logger = l
		}
	}
}
