// Package predictive simulates posterior-predictive forecast paths. Beyond
// the training range new changepoints are drawn at the historical rate, so
// the trend uncertainty grows with the forecast horizon.
package predictive

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/internal/domain/trend"
	"github.com/okian/trendcast/pkg/logger"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSamples is the default number of simulated paths.
const DefaultSamples = 1000

// deltaScaleEpsilon keeps the future delta scale positive when every
// historical delta is zero.
const deltaScaleEpsilon = 1e-8

// Input is the prediction frame in scaled units.
type Input struct {
	Growth       trend.Growth
	T            []float64  // scaled prediction times
	Cap          []float64  // scaled capacity, logistic only
	Floor        []float64  // floor per row, original units
	X            *mat.Dense // prediction design matrix, nil when T is empty
	Changepoints []float64  // historical scaled changepoint times
	Spacing      float64    // mean spacing of the scaled training times
	YScale       float64
}

// Paths holds simulated values in original units, indexed [row][path].
type Paths struct {
	Trend    [][]float64
	Seasonal [][]float64
	YHat     [][]float64
}

// Len returns the number of simulated paths.
func (p *Paths) Len() int {
	if p == nil || len(p.YHat) == 0 {
		return 0
	}
	return len(p.YHat[0])
}

// Sampler simulates forecast paths.
type Sampler struct {
	samples int
	seed    uint64
	workers int
	logger  logger.Logger
}

// New creates a sampler with DefaultSamples paths, seed 0 and one worker
// per CPU.
func New(opts ...Option) *Sampler {
	s := &Sampler{
		samples: DefaultSamples,
		workers: runtime.GOMAXPROCS(0),
		logger:  logger.Get().Named("predictive"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Samples returns the configured number of paths.
func (s *Sampler) Samples() int { return s.samples }

func validate(in Input, params model.Params) error {
	if params.Len() == 0 {
		return ErrNoDraws
	}
	n := len(in.T)
	if len(in.Floor) != n {
		return fmt.Errorf("%w: %d floors for %d rows", model.ErrValidation, len(in.Floor), n)
	}
	if in.Growth == trend.Logistic && len(in.Cap) != n {
		return fmt.Errorf("%w: logistic growth needs a capacity for every row", model.ErrValidation)
	}
	if n > 0 {
		if in.X == nil {
			return fmt.Errorf("%w: design matrix is missing", model.ErrValidation)
		}
		if rows, _ := in.X.Dims(); rows != n {
			return fmt.Errorf("%w: design matrix has %d rows for %d times", model.ErrValidation, rows, n)
		}
	}
	return nil
}

// Simulate draws the configured number of paths. Path j uses posterior draw
// j mod M and its own random stream, so results do not depend on the number
// of workers.
func (s *Sampler) Simulate(ctx context.Context, in Input, params model.Params) (*Paths, error) {
	if err := validate(in, params); err != nil {
		return nil, err
	}
	n := len(in.T)
	out := &Paths{
		Trend:    grid(n, s.samples),
		Seasonal: grid(n, s.samples),
		YHat:     grid(n, s.samples),
	}
	if s.samples == 0 || n == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for j := 0; j < s.samples; j++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.path(j, in, params.Draw(j%params.Len()), out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "simulated forecast paths",
		logger.Int("paths", s.samples),
		logger.Int("rows", n),
		logger.Int("draws", params.Len()))
	return out, nil
}

func grid(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	backing := make([]float64, rows*cols)
	for i := range out {
		out[i] = backing[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out
}

// path fills column j of out. Paths write disjoint cells.
func (s *Sampler) path(j int, in Input, d model.Draw, out *Paths) {
	src := rand.NewPCG(s.seed, uint64(j))
	newS, newDelta := futureChangepoints(src, in.T, in.Changepoints, in.Spacing, d.Delta)

	cps := append(slices.Clone(in.Changepoints), newS...)
	deltas := append(slices.Clone(d.Delta), newDelta...)
	tr := trend.Evaluate(in.Growth, in.T, in.Cap, deltas, d.K, d.M, cps)
	seasonal := SeasonalTerm(in.X, d.Beta)
	floats.Scale(in.YScale, seasonal)

	noise := distuv.Normal{Mu: 0, Sigma: d.SigmaObs * in.YScale, Src: src}
	for i := range in.T {
		t := tr[i]*in.YScale + in.Floor[i]
		out.Trend[i][j] = t
		out.Seasonal[i][j] = seasonal[i]
		out.YHat[i][j] = t + seasonal[i] + noise.Rand()
	}
}

// futureChangepoints draws changepoints on (1, max(t)) at the historical
// rate, with Laplace deltas scaled by the mean absolute historical delta.
// Nothing is drawn when t does not extend past the training range.
func futureChangepoints(src rand.Source, t, changepoints []float64, spacing float64, deltas []float64) ([]float64, []float64) {
	if len(t) == 0 || len(changepoints) == 0 || !(spacing > 0) {
		return nil, nil
	}
	horizon := floats.Max(t)
	if !(horizon > 1) {
		return nil, nil
	}

	steps := math.Ceil((horizon - 1) / spacing)
	p := math.Min(1, float64(len(changepoints))*(horizon-1)/steps)
	var n int
	switch {
	case p >= 1:
		n = int(steps)
	case p > 0:
		n = int(distuv.Binomial{N: steps, P: p, Src: src}.Rand())
	}
	if n == 0 {
		return nil, nil
	}

	at := make([]float64, n)
	u := distuv.Uniform{Min: 1, Max: horizon, Src: src}
	for i := range at {
		at[i] = u.Rand()
	}
	slices.Sort(at)

	var scale float64
	for _, v := range deltas {
		scale += math.Abs(v)
	}
	scale = scale/float64(len(deltas)) + deltaScaleEpsilon
	lap := distuv.Laplace{Mu: 0, Scale: scale, Src: src}
	out := make([]float64, n)
	for i := range out {
		out[i] = lap.Rand()
	}
	return at, out
}

// SeasonalTerm returns X . beta in scaled units, or nil when x is nil.
func SeasonalTerm(x *mat.Dense, beta []float64) []float64 {
	if x == nil {
		return nil
	}
	rows, _ := x.Dims()
	var v mat.VecDense
	v.MulVec(x, mat.NewVecDense(len(beta), slices.Clone(beta)))
	out := make([]float64, rows)
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
