package solver

import "time"

// Method names a quasi-Newton optimization method.
type Method string

// Supported methods.
const (
	MethodLBFGS Method = "lbfgs"
	MethodBFGS  Method = "bfgs"
)

// Option applies a configuration option to the QuasiNewton optimizer.
type Option func(*QuasiNewton)

// WithMethod selects the quasi-Newton method.
func WithMethod(m Method) Option {
	return func(q *QuasiNewton) {
		if m != "" {
			q.method = m
		}
	}
}

// WithMaxIterations caps the number of major iterations.
func WithMaxIterations(n int) Option {
	return func(q *QuasiNewton) {
		if n > 0 {
			q.maxIterations = n
		}
	}
}

// WithRuntime caps the wall-clock time of one optimization.
func WithRuntime(d time.Duration) Option {
	return func(q *QuasiNewton) {
		if d > 0 {
			q.runtime = d
		}
	}
}

// WithGradientThreshold sets the gradient infinity-norm at which the run stops.
func WithGradientThreshold(v float64) Option {
	return func(q *QuasiNewton) {
		if v > 0 {
			q.gradientThreshold = v
		}
	}
}

// SamplerOption applies a configuration option to the Metropolis sampler.
type SamplerOption func(*Metropolis)

// WithBurnIn sets the number of discarded leading samples.
func WithBurnIn(n int) SamplerOption {
	return func(m *Metropolis) {
		if n >= 0 {
			m.burnIn = n
		}
	}
}

// WithThin keeps every n-th sample after burn-in.
func WithThin(n int) SamplerOption {
	return func(m *Metropolis) {
		if n > 0 {
			m.thin = n
		}
	}
}

// WithStepSize sets the standard deviation of the isotropic proposal.
func WithStepSize(v float64) SamplerOption {
	return func(m *Metropolis) {
		if v > 0 {
			m.step = v
		}
	}
}

// WithSeed seeds the sampler's random stream.
func WithSeed(seed uint64) SamplerOption {
	return func(m *Metropolis) {
		m.seed = seed
	}
}

// WithBatchSize sets how many samples are drawn between cancellation checks.
func WithBatchSize(n int) SamplerOption {
	return func(m *Metropolis) {
		if n > 0 {
			m.batch = n
		}
	}
}
