package seasonality

import (
	"fmt"
	"strconv"
	"time"

	"github.com/okian/trendcast/internal/domain/model"
	"gonum.org/v1/gonum/mat"
)

// Features is the design matrix with its column metadata.
type Features struct {
	Columns     []string
	X           *mat.Dense
	PriorScales []float64

	// Components maps each seasonality, regressor and group name to its
	// column indexes. Order lists the individual component names.
	Components map[string][]int
	Order      []string
}

// Build assembles the design matrix for dates: seasonalities first in the
// given order, then regressors. regressorValues holds raw columns keyed by
// regressor name. When nothing contributes a column, a single zero column
// with prior scale 1 is used.
func Build(dates []time.Time, comps []Component, regressors []Regressor, regressorValues map[string][]float64) (*Features, error) {
	n := len(dates)
	width := 0
	for _, c := range comps {
		width += 2 * c.FourierOrder
	}
	width += len(regressors)

	f := &Features{Components: map[string][]int{}}
	if width == 0 {
		f.Columns = []string{zerosColumn}
		f.PriorScales = []float64{1}
		if n > 0 {
			f.X = mat.NewDense(n, 1, nil)
		}
		return f, nil
	}

	data := make([]float64, n*width)
	col := 0
	put := func(r int, v float64) { data[r*width+col] = v }

	for _, c := range comps {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		fs := FourierSeries(dates, c.Period, c.FourierOrder)
		for j := 0; j < 2*c.FourierOrder; j++ {
			for r := 0; r < n; r++ {
				put(r, fs.At(r, j))
			}
			f.Columns = append(f.Columns, c.Name+ColumnDelimiter+strconv.Itoa(j+1))
			f.PriorScales = append(f.PriorScales, c.PriorScale)
			f.Components[c.Name] = append(f.Components[c.Name], col)
			f.Components[GroupSeasonalities] = append(f.Components[GroupSeasonalities], col)
			col++
		}
		f.Order = append(f.Order, c.Name)
	}

	for _, reg := range regressors {
		raw, ok := regressorValues[reg.Name]
		if !ok || len(raw) != n {
			return nil, fmt.Errorf("%w: regressor %q has no values for every row", model.ErrValidation, reg.Name)
		}
		for r, v := range reg.Apply(raw) {
			put(r, v)
		}
		f.Columns = append(f.Columns, reg.Name)
		f.PriorScales = append(f.PriorScales, reg.PriorScale)
		f.Components[reg.Name] = append(f.Components[reg.Name], col)
		f.Components[GroupExtraRegressors] = append(f.Components[GroupExtraRegressors], col)
		f.Order = append(f.Order, reg.Name)
		col++
	}

	if n > 0 {
		f.X = mat.NewDense(n, width, data)
	}
	return f, nil
}

// Width returns the number of design columns.
func (f *Features) Width() int { return len(f.Columns) }

// Contribution returns X[:, cols] . beta[cols] for every row of X.
func Contribution(x *mat.Dense, cols []int, beta []float64) []float64 {
	if x == nil {
		return nil
	}
	rows, _ := x.Dims()
	out := make([]float64, rows)
	for r := 0; r < rows; r++ {
		row := x.RawRowView(r)
		var sum float64
		for _, c := range cols {
			sum += row[c] * beta[c]
		}
		out[r] = sum
	}
	return out
}
