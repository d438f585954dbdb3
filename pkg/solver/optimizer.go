package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"
)

// Default optimizer settings.
const (
	defaultMaxIterations     = 2000
	defaultRuntime           = time.Minute
	defaultGradientThreshold = 1e-8
)

// QuasiNewton minimizes an objective with gonum's L-BFGS or BFGS methods.
type QuasiNewton struct {
	method            Method
	maxIterations     int
	runtime           time.Duration
	gradientThreshold float64
}

// NewQuasiNewton creates an optimizer, L-BFGS by default.
func NewQuasiNewton(opts ...Option) *QuasiNewton {
	q := &QuasiNewton{
		method:            MethodLBFGS,
		maxIterations:     defaultMaxIterations,
		runtime:           defaultRuntime,
		gradientThreshold: defaultGradientThreshold,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Method returns the configured method.
func (q *QuasiNewton) Method() Method { return q.method }

func (q *QuasiNewton) gonumMethod() (optimize.Method, error) {
	switch q.method {
	case MethodLBFGS:
		return &optimize.LBFGS{}, nil
	case MethodBFGS:
		return &optimize.BFGS{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, q.method)
	}
}

// Optimize runs one minimization. A run that ends on an iteration, runtime
// or line-search limit is still accepted when it improved on init and the
// result is finite; a cancelled ctx always fails.
func (q *QuasiNewton) Optimize(ctx context.Context, obj Objective, init []float64) ([]float64, error) {
	if len(init) != obj.Dim() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(init), obj.Dim())
	}
	method, err := q.gonumMethod()
	if err != nil {
		return nil, err
	}
	problem := optimize.Problem{
		Func: obj.Loss,
		Grad: obj.Gradient,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   q.maxIterations,
		Runtime:           q.runtime,
		GradientThreshold: q.gradientThreshold,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-10,
			Iterations: 25,
		},
	}

	start := obj.Loss(init)
	res, runErr := optimize.Minimize(problem, init, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if res == nil {
		return nil, errors.Join(ErrNotConverged, runErr)
	}
	if !finite(res.X) || math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return nil, errors.Join(ErrNonFinite, runErr)
	}
	if runErr != nil && !(res.F < start) {
		return nil, errors.Join(ErrNotConverged, runErr)
	}
	out := make([]float64, len(res.X))
	copy(out, res.X)
	return out, nil
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
