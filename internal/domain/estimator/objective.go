package estimator

import (
	"math"

	"github.com/okian/trendcast/internal/domain/trend"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// Prior constants of the generative model.
const (
	rateOffsetSigma = 5.0  // k, m ~ N(0, 5)
	sigmaObsScale   = 0.5  // sigma_obs ~ HalfNormal(0.5)
	sigmaObsFloor   = 1e-9 // sigma_obs = floor + exp(u)
	laplaceSmooth   = 1e-5 // |x| ~ sqrt(x^2 + eps^2)
)

// Input is everything the estimator needs, in scaled units.
type Input struct {
	Growth       trend.Growth
	T            []float64  // scaled time, sorted ascending
	Y            []float64  // scaled values
	Cap          []float64  // scaled capacity, logistic only
	X            *mat.Dense // design matrix, len(T) rows
	PriorScales  []float64  // one per design column
	Changepoints []float64  // sorted scaled changepoint times
	Tau          float64    // changepoint prior scale
}

// layout maps the flat parameter vector [k, m, delta..., beta..., u].
type layout struct{ s, k int }

func (l layout) dim() int                    { return 2 + l.s + l.k + 1 }
func (l layout) delta(x []float64) []float64 { return x[2 : 2+l.s] }
func (l layout) beta(x []float64) []float64  { return x[2+l.s : 2+l.s+l.k] }
func (l layout) u(x []float64) float64       { return x[2+l.s+l.k] }

// objective is the negative log posterior of the model, without the
// log-sigma Jacobian. It satisfies solver.Objective and solver.Density.
type objective struct {
	in  Input
	lay layout
	a   *mat.Dense // changepoint indicator matrix, nil when there are none
}

func newObjective(in Input) *objective {
	_, k := in.X.Dims()
	return &objective{
		in:  in,
		lay: layout{s: len(in.Changepoints), k: k},
		a:   trend.ChangepointMatrix(in.T, in.Changepoints),
	}
}

func (o *objective) Dim() int { return o.lay.dim() }

func smoothAbs(x float64) float64 { return math.Sqrt(x*x + laplaceSmooth*laplaceSmooth) }

func smoothSign(x float64) float64 { return x / smoothAbs(x) }

// residuals returns y - trend - X.beta.
func (o *objective) residuals(x []float64) []float64 {
	delta, beta := o.lay.delta(x), o.lay.beta(x)
	tr := trend.Evaluate(o.in.Growth, o.in.T, o.in.Cap, delta, x[0], x[1], o.in.Changepoints)
	r := make([]float64, len(o.in.T))
	for i := range r {
		var xb float64
		for c, v := range o.in.X.RawRowView(i) {
			xb += v * beta[c]
		}
		r[i] = o.in.Y[i] - tr[i] - xb
	}
	return r
}

func (o *objective) sigma(x []float64) float64 { return sigmaObsFloor + math.Exp(o.lay.u(x)) }

func (o *objective) Loss(x []float64) float64 {
	r := o.residuals(x)
	sigma := o.sigma(x)
	n := float64(len(r))

	var sse float64
	for _, v := range r {
		sse += v * v
	}
	nll := sse/(2*sigma*sigma) + n*math.Log(sigma)

	nll += (x[0]*x[0] + x[1]*x[1]) / (2 * rateOffsetSigma * rateOffsetSigma)
	for _, d := range o.lay.delta(x) {
		nll += smoothAbs(d) / o.in.Tau
	}
	for j, b := range o.lay.beta(x) {
		nll += smoothAbs(b) / o.in.PriorScales[j]
	}
	nll += sigma * sigma / (2 * sigmaObsScale * sigmaObsScale)
	return nll
}

func (o *objective) Gradient(grad, x []float64) {
	if o.in.Growth == trend.Logistic {
		fd.Gradient(grad, o.Loss, x, &fd.Settings{Formula: fd.Central})
		return
	}
	for i := range grad {
		grad[i] = 0
	}
	r := o.residuals(x)
	sigma := o.sigma(x)
	s2 := sigma * sigma
	lay := o.lay

	var sse float64
	for i, ri := range r {
		ti := o.in.T[i]
		w := ri / s2
		sse += ri * ri
		grad[0] -= w * ti
		grad[1] -= w
		for j, sj := range o.in.Changepoints {
			if o.a.At(i, j) != 0 {
				grad[2+j] -= w * (ti - sj)
			}
		}
		for c, v := range o.in.X.RawRowView(i) {
			grad[2+lay.s+c] -= w * v
		}
	}

	grad[0] += x[0] / (rateOffsetSigma * rateOffsetSigma)
	grad[1] += x[1] / (rateOffsetSigma * rateOffsetSigma)
	for j, d := range lay.delta(x) {
		grad[2+j] += smoothSign(d) / o.in.Tau
	}
	for j, b := range lay.beta(x) {
		grad[2+lay.s+j] += smoothSign(b) / o.in.PriorScales[j]
	}

	// d/dsigma of the sigma terms, times dsigma/du = exp(u).
	n := float64(len(r))
	dSigma := -sse/(s2*sigma) + n/sigma + sigma/(sigmaObsScale*sigmaObsScale)
	grad[lay.dim()-1] = dSigma * math.Exp(lay.u(x))
}

// LogDensity is the log posterior over the unconstrained vector, including
// the log|dsigma/du| Jacobian.
func (o *objective) LogDensity(x []float64) float64 {
	v := -o.Loss(x) + o.lay.u(x)
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}
