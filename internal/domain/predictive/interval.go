package predictive

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// QuantileLevels returns the lower and upper quantile levels for an
// interval of the given width.
func QuantileLevels(width float64) (lo, hi float64, err error) {
	if !(width >= 0 && width <= 1) {
		return 0, 0, fmt.Errorf("%w: got %v", ErrInvalidWidth, width)
	}
	return (1 - width) / 2, (1 + width) / 2, nil
}

// Bounds returns the per-row lower and upper quantiles of rows at the given
// interval width. Every row must be non-empty.
func Bounds(rows [][]float64, width float64) (lower, upper []float64, err error) {
	lo, hi, err := QuantileLevels(width)
	if err != nil {
		return nil, nil, err
	}
	lower = make([]float64, len(rows))
	upper = make([]float64, len(rows))
	sorted := make([]float64, 0)
	for i, row := range rows {
		if len(row) == 0 {
			return nil, nil, ErrNoPaths
		}
		sorted = append(sorted[:0], row...)
		slices.Sort(sorted)
		lower[i] = stat.Quantile(lo, stat.LinInterp, sorted, nil)
		upper[i] = stat.Quantile(hi, stat.LinInterp, sorted, nil)
	}
	return lower, upper, nil
}
