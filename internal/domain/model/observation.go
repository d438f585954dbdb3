// Package model contains domain models passed between layers.
package model

import (
	"math"
	"time"
)

// Observation is one raw input row. Y is nil for rows that only carry
// a date (prediction inputs or gaps in history).
type Observation struct {
	DS         time.Time          // timestamp
	Y          *float64           // observed value, nil when absent
	Cap        *float64           // carrying capacity, logistic growth only
	Floor      *float64           // saturating minimum, logistic growth only
	Regressors map[string]float64 // extra regressor values keyed by name
}

// Float returns a pointer to v, for filling optional Observation fields.
func Float(v float64) *float64 { return &v }

// HasY reports whether the observation carries a value.
func (o Observation) HasY() bool { return o.Y != nil }

// Frame is the columnar, scaled view of a set of observations. All slices
// share the same length and row order.
type Frame struct {
	DS        []time.Time
	T         []float64 // (ds - start) / t_scale
	Y         []float64 // raw y; NaN where absent
	YScaled   []float64 // (y - floor) / y_scale; NaN where absent
	Floor     []float64
	Cap       []float64 // raw cap; nil for linear growth
	CapScaled []float64 // (cap - floor) / y_scale; nil for linear growth

	// Regressors holds raw regressor columns keyed by name.
	Regressors map[string][]float64
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.DS) }

// MaxT returns the largest scaled time in the frame, or NaN when empty.
func (f *Frame) MaxT() float64 {
	if len(f.T) == 0 {
		return math.NaN()
	}
	out := f.T[0]
	for _, v := range f.T[1:] {
		if v > out {
			out = v
		}
	}
	return out
}
