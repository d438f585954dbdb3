package predictive

import "github.com/okian/trendcast/pkg/logger"

// Option applies a configuration option to the Sampler.
type Option func(*Sampler)

// WithSamples sets the number of simulated paths; 0 disables simulation.
func WithSamples(n int) Option {
	return func(s *Sampler) {
		if n >= 0 {
			s.samples = n
		}
	}
}

// WithSeed sets the seed of every path's random stream.
func WithSeed(seed uint64) Option {
	return func(s *Sampler) {
		s.seed = seed
	}
}

// WithWorkers caps the number of paths simulated concurrently.
func WithWorkers(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}
