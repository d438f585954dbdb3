// Package solver exposes the numerical optimizer and posterior sampler used
// to fit models, behind narrow interfaces backed by gonum.
package solver

import "context"

// Objective is a differentiable loss over a parameter vector.
type Objective interface {
	// Dim returns the parameter vector length.
	Dim() int
	// Loss returns the value to minimize at x.
	Loss(x []float64) float64
	// Gradient stores dLoss/dx into grad.
	Gradient(grad, x []float64)
}

// Density is an unnormalized log posterior density.
type Density interface {
	Dim() int
	LogDensity(x []float64) float64
}

// Optimizer finds a minimizer of an objective starting from init.
type Optimizer interface {
	Optimize(ctx context.Context, obj Objective, init []float64) ([]float64, error)
}

// Sampler draws n samples from a density starting from init.
type Sampler interface {
	Sample(ctx context.Context, d Density, init []float64, n int) ([][]float64, error)
}
