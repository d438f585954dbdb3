// Package scaling maps raw observations onto the dimensionless time axis and
// unit-scaled value axis used by every fitting component.
package scaling

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/trendcast/internal/domain/model"
)

// Scaler holds the scales fixed on the training history. It is a value type
// and is never recomputed from prediction data.
type Scaler struct {
	Start         time.Time // earliest training timestamp
	TScale        float64   // training span in seconds
	YScale        float64   // max |y - floor| over training rows, 1 when that is 0
	Logistic      bool      // cap (and optionally floor) columns are required
	LogisticFloor bool      // training rows carried a floor column
	Regressors    []string  // regressor columns every row must carry
}

// Fit computes the scales from the training history. Rows without y must
// already be removed.
func Fit(history []model.Observation, logistic bool, regressors []string) (Scaler, error) {
	if len(history) == 0 {
		return Scaler{}, fmt.Errorf("%w: empty history", model.ErrValidation)
	}
	s := Scaler{
		Logistic:   logistic,
		Regressors: append([]string(nil), regressors...),
	}
	if logistic {
		withFloor := 0
		for _, o := range history {
			if o.Floor != nil {
				withFloor++
			}
		}
		if withFloor > 0 && withFloor != len(history) {
			return Scaler{}, fmt.Errorf("%w: floor must be set on every row or none", model.ErrValidation)
		}
		s.LogisticFloor = withFloor > 0
	}

	first, last := history[0].DS, history[0].DS
	var yScale float64
	for i, o := range history {
		if o.DS.IsZero() {
			return Scaler{}, fmt.Errorf("%w: row %d has no timestamp", model.ErrValidation, i)
		}
		if o.Y == nil || math.IsNaN(*o.Y) || math.IsInf(*o.Y, 0) {
			return Scaler{}, fmt.Errorf("%w: row %d has a non-finite y", model.ErrValidation, i)
		}
		if o.DS.Before(first) {
			first = o.DS
		}
		if o.DS.After(last) {
			last = o.DS
		}
		yScale = math.Max(yScale, math.Abs(*o.Y-s.floorOf(o)))
	}
	s.Start = first
	s.TScale = last.Sub(first).Seconds()
	if s.TScale <= 0 {
		return Scaler{}, fmt.Errorf("%w: history must span more than one timestamp", model.ErrValidation)
	}
	if yScale == 0 {
		yScale = 1
	}
	s.YScale = yScale
	return s, nil
}

func (s Scaler) floorOf(o model.Observation) float64 {
	if s.LogisticFloor && o.Floor != nil {
		return *o.Floor
	}
	return 0
}

// TimeOf converts a timestamp to scaled time.
func (s Scaler) TimeOf(ds time.Time) float64 {
	return ds.Sub(s.Start).Seconds() / s.TScale
}

// Transform builds a scaled frame from rows, in input order. Rows without y
// get NaN in the value columns.
func (s Scaler) Transform(rows []model.Observation) (*model.Frame, error) {
	n := len(rows)
	f := &model.Frame{
		DS:         make([]time.Time, n),
		T:          make([]float64, n),
		Y:          make([]float64, n),
		YScaled:    make([]float64, n),
		Floor:      make([]float64, n),
		Regressors: make(map[string][]float64, len(s.Regressors)),
	}
	if s.Logistic {
		f.Cap = make([]float64, n)
		f.CapScaled = make([]float64, n)
	}
	for _, name := range s.Regressors {
		f.Regressors[name] = make([]float64, n)
	}

	for i, o := range rows {
		if o.DS.IsZero() {
			return nil, fmt.Errorf("%w: row %d has no timestamp", model.ErrValidation, i)
		}
		f.DS[i] = o.DS
		f.T[i] = s.TimeOf(o.DS)

		if s.LogisticFloor && o.Floor == nil {
			return nil, fmt.Errorf("%w: row %d is missing floor", model.ErrValidation, i)
		}
		f.Floor[i] = s.floorOf(o)

		if o.Y != nil {
			if math.IsNaN(*o.Y) || math.IsInf(*o.Y, 0) {
				return nil, fmt.Errorf("%w: row %d has a non-finite y", model.ErrValidation, i)
			}
			f.Y[i] = *o.Y
			f.YScaled[i] = (*o.Y - f.Floor[i]) / s.YScale
		} else {
			f.Y[i] = math.NaN()
			f.YScaled[i] = math.NaN()
		}

		if s.Logistic {
			if o.Cap == nil {
				return nil, fmt.Errorf("%w: row %d is missing cap", model.ErrValidation, i)
			}
			if *o.Cap <= f.Floor[i] {
				return nil, fmt.Errorf("%w: row %d has cap not above floor", model.ErrValidation, i)
			}
			f.Cap[i] = *o.Cap
			f.CapScaled[i] = (*o.Cap - f.Floor[i]) / s.YScale
		}

		for _, name := range s.Regressors {
			v, ok := o.Regressors[name]
			if !ok {
				return nil, fmt.Errorf("%w: row %d is missing regressor %q", model.ErrValidation, i, name)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: row %d has a non-finite regressor %q", model.ErrValidation, i, name)
			}
			f.Regressors[name][i] = v
		}
	}
	return f, nil
}

// Unscale maps a scaled value back to original units.
func (s Scaler) Unscale(v, floor float64) float64 {
	return v*s.YScale + floor
}
