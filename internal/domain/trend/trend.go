// Package trend evaluates the piecewise growth curves and their initial
// parameter guesses.
package trend

import (
	"fmt"
	"math"

	"github.com/okian/trendcast/internal/domain/model"
	"gonum.org/v1/gonum/mat"
)

// Growth selects the trend family.
type Growth string

// Supported growth families.
const (
	Linear   Growth = "linear"
	Logistic Growth = "logistic"
)

// ParseGrowth validates a growth name.
func ParseGrowth(s string) (Growth, error) {
	switch g := Growth(s); g {
	case Linear, Logistic:
		return g, nil
	case "":
		return Linear, nil
	default:
		return "", fmt.Errorf("%w: growth must be linear or logistic, got %q", model.ErrConfiguration, s)
	}
}

// PiecewiseLinear evaluates (k + sum delta_j) * t + (m + sum gamma_j) over
// the changepoints s_j <= t, with gamma_j = -s_j * delta_j keeping the curve
// continuous. s must be sorted ascending and may be empty.
func PiecewiseLinear(t, deltas []float64, k, m float64, s []float64) []float64 {
	out := make([]float64, len(t))
	for i, ti := range t {
		rate, offset := k, m
		for j, sj := range s {
			if sj > ti {
				break
			}
			rate += deltas[j]
			offset -= sj * deltas[j]
		}
		out[i] = rate*ti + offset
	}
	return out
}

// PiecewiseLogistic evaluates cap / (1 + exp(-k_t * (t - m_t))) where the
// rate k_t and offset m_t change at every changepoint s_j <= t. Offsets are
// adjusted so the curve stays continuous.
func PiecewiseLogistic(t, capacity, deltas []float64, k, m float64, s []float64) []float64 {
	gamma := logisticGamma(deltas, k, m, s)
	out := make([]float64, len(t))
	for i, ti := range t {
		rate, offset := k, m
		for j, sj := range s {
			if sj > ti {
				break
			}
			rate += deltas[j]
			offset += gamma[j]
		}
		out[i] = capacity[i] / (1 + math.Exp(-rate*(ti-offset)))
	}
	return out
}

func logisticGamma(deltas []float64, k, m float64, s []float64) []float64 {
	gamma := make([]float64, len(s))
	rate, offset := k, m
	for j, sj := range s {
		next := rate + deltas[j]
		if next != 0 {
			gamma[j] = (sj - offset) * (1 - rate/next)
		}
		offset += gamma[j]
		rate = next
	}
	return gamma
}

// Evaluate dispatches to the growth family. capacity is ignored for linear
// growth.
func Evaluate(g Growth, t, capacity, deltas []float64, k, m float64, s []float64) []float64 {
	if g == Logistic {
		return PiecewiseLogistic(t, capacity, deltas, k, m, s)
	}
	return PiecewiseLinear(t, deltas, k, m, s)
}

// ChangepointMatrix returns the n x S indicator matrix A with A[i][j] = 1
// when t_i >= s_j. It returns nil when there are no changepoints or rows.
func ChangepointMatrix(t, s []float64) *mat.Dense {
	if len(t) == 0 || len(s) == 0 {
		return nil
	}
	a := mat.NewDense(len(t), len(s), nil)
	for i, ti := range t {
		for j, sj := range s {
			if ti >= sj {
				a.Set(i, j, 1)
			}
		}
	}
	return a
}

// LinearGrowthInit returns the line through the chronologically first and
// last observations. t and y must be sorted by t.
func LinearGrowthInit(t, y []float64) (k, m float64) {
	first, last := 0, len(t)-1
	if last <= first || t[last] == t[first] {
		return 0, y[first]
	}
	k = (y[last] - y[first]) / (t[last] - t[first])
	m = y[first] - k*t[first]
	return k, m
}

// LogisticGrowthInit solves the logistic curve through the first and last
// observations, with values clamped into [0.01, 0.99] of capacity.
func LogisticGrowthInit(t, y, capacity []float64) (k, m float64) {
	first, last := 0, len(t)-1
	span := t[last] - t[first]
	if span == 0 {
		return 0, 0
	}
	c0, c1 := capacity[first], capacity[last]
	y0 := math.Max(0.01*c0, math.Min(0.99*c0, y[first]))
	y1 := math.Max(0.01*c1, math.Min(0.99*c1, y[last]))

	r0, r1 := c0/y0, c1/y1
	if math.Abs(r0-r1) <= 0.01 {
		r0 *= 1.05
	}
	l0, l1 := math.Log(r0-1), math.Log(r1-1)
	m = l0 * span / (l0 - l1)
	k = (l0 - l1) / span
	return k, m
}
