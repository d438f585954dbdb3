// Package estimator fits model parameters by MAP optimization or posterior
// sampling.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/internal/domain/trend"
	"github.com/okian/trendcast/pkg/logger"
	"github.com/okian/trendcast/pkg/solver"
)

// degenerateSigma is the observation noise used when y is constant.
const degenerateSigma = 1e-9

// Report describes how a fit was obtained.
type Report struct {
	Degenerate bool // y was constant and optimization was skipped
	Fallback   bool // the primary optimizer failed and the fallback succeeded
	Draws      int
}

// Estimator turns an Input into model parameters.
type Estimator struct {
	primary     solver.Optimizer
	fallback    solver.Optimizer
	sampler     solver.Sampler
	mcmcSamples int
	logger      logger.Logger
}

// New creates an estimator. Defaults: L-BFGS primary, BFGS fallback,
// Metropolis sampler, MAP only.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		primary:  solver.NewQuasiNewton(solver.WithMethod(solver.MethodLBFGS)),
		fallback: solver.NewQuasiNewton(solver.WithMethod(solver.MethodBFGS)),
		sampler:  solver.NewMetropolis(),
		logger:   logger.Get().Named("estimator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func validate(in Input) error {
	n := len(in.T)
	if n < 2 || len(in.Y) != n {
		return fmt.Errorf("%w: need at least 2 aligned rows, got %d times and %d values", model.ErrValidation, n, len(in.Y))
	}
	if in.X == nil {
		return fmt.Errorf("%w: design matrix is missing", model.ErrValidation)
	}
	rows, cols := in.X.Dims()
	if rows != n || cols != len(in.PriorScales) {
		return fmt.Errorf("%w: design matrix is %dx%d for %d rows and %d prior scales", model.ErrValidation, rows, cols, n, len(in.PriorScales))
	}
	for _, s := range in.PriorScales {
		if !(s > 0) {
			return fmt.Errorf("%w: prior scales must be positive", model.ErrConfiguration)
		}
	}
	if !(in.Tau > 0) {
		return fmt.Errorf("%w: changepoint prior scale must be positive", model.ErrConfiguration)
	}
	if in.Growth == trend.Logistic && len(in.Cap) != n {
		return fmt.Errorf("%w: logistic growth needs a capacity for every row", model.ErrValidation)
	}
	return nil
}

func initialRateOffset(in Input) (k, m float64) {
	if in.Growth == trend.Logistic {
		return trend.LogisticGrowthInit(in.T, in.Y, in.Cap)
	}
	return trend.LinearGrowthInit(in.T, in.Y)
}

func constant(y []float64) bool {
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}

// Fit estimates parameters. Constant y skips optimization entirely.
func (e *Estimator) Fit(ctx context.Context, in Input) (model.Params, Report, error) {
	if err := validate(in); err != nil {
		return model.Params{}, Report{}, err
	}
	obj := newObjective(in)
	k, m := initialRateOffset(in)

	if constant(in.Y) {
		d := model.Draw{
			K:        k,
			M:        m,
			Delta:    make([]float64, obj.lay.s),
			Beta:     make([]float64, obj.lay.k),
			SigmaObs: degenerateSigma,
		}
		return model.NewParams(d), Report{Degenerate: true, Draws: 1}, nil
	}

	x0 := make([]float64, obj.Dim())
	x0[0], x0[1] = k, m

	var report Report
	start, mapErr := e.optimize(ctx, obj, x0, &report)
	if e.mcmcSamples == 0 {
		if mapErr != nil {
			return model.Params{}, report, mapErr
		}
		report.Draws = 1
		return model.NewParams(e.toDraw(obj, start, in)), report, nil
	}

	if mapErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Params{}, report, ctxErr
		}
		e.logger.Warn(ctx, "sampling from the seeded point after MAP failure", logger.Error(mapErr))
		start = x0
	}
	samples, err := e.sampler.Sample(ctx, obj, start, e.mcmcSamples)
	if err != nil {
		return model.Params{}, report, fmt.Errorf("%w: sampling: %w", model.ErrOptimization, err)
	}
	draws := make([]model.Draw, len(samples))
	for i, x := range samples {
		draws[i] = e.toDraw(obj, x, in)
	}
	report.Draws = len(draws)
	return model.NewParams(draws...), report, nil
}

// optimize runs the primary optimizer and, on failure, the fallback once.
func (e *Estimator) optimize(ctx context.Context, obj *objective, x0 []float64, report *Report) ([]float64, error) {
	x, err := e.primary.Optimize(ctx, obj, x0)
	if err == nil {
		return x, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	e.logger.Warn(ctx, "primary optimizer failed, retrying with fallback", logger.Error(err))

	x, fallbackErr := e.fallback.Optimize(ctx, obj, x0)
	if fallbackErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", model.ErrOptimization, errors.Join(err, fallbackErr))
	}
	report.Fallback = true
	return x, nil
}

func (e *Estimator) toDraw(obj *objective, x []float64, in Input) model.Draw {
	d := model.Draw{
		K:        x[0],
		M:        x[1],
		Delta:    append([]float64{}, obj.lay.delta(x)...),
		Beta:     append([]float64{}, obj.lay.beta(x)...),
		SigmaObs: obj.sigma(x),
	}
	if math.IsInf(d.SigmaObs, 0) {
		d.SigmaObs = math.MaxFloat64
	}
	return foldEmptyChangepoints(d, in.Changepoints)
}

// foldEmptyChangepoints moves any rate change into k when there are no
// changepoints to attach it to.
func foldEmptyChangepoints(d model.Draw, changepoints []float64) model.Draw {
	if len(changepoints) > 0 {
		return d
	}
	for _, v := range d.Delta {
		d.K += v
	}
	d.Delta = []float64{}
	return d
}
