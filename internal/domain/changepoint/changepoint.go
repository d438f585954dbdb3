// Package changepoint selects the times at which the trend rate may change.
package changepoint

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/internal/domain/scaling"
)

// Default selection settings.
const (
	DefaultCount = 25
	DefaultRange = 0.8
)

// Config describes how changepoints are chosen.
type Config struct {
	Count    int         // requested number of automatic changepoints
	Range    float64     // leading fraction of the history eligible for placement
	Explicit []time.Time // user-supplied changepoints; overrides Count when non-nil
}

// Result is the selected changepoint set.
type Result struct {
	Dates []time.Time
	T     []float64 // scaled times, sorted ascending, no duplicates

	// Requested and Clamped describe an automatic placement that had to be
	// reduced to fit the history.
	Requested int
	Clamped   bool
}

// Len returns the number of changepoints.
func (r Result) Len() int { return len(r.T) }

// Select returns the changepoint set for a history sorted by ds.
func Select(cfg Config, history []time.Time, scaler scaling.Scaler) (Result, error) {
	if cfg.Explicit != nil {
		return explicit(cfg.Explicit, history, scaler)
	}
	return automatic(cfg, history, scaler)
}

func explicit(dates []time.Time, history []time.Time, scaler scaling.Scaler) (Result, error) {
	if len(history) == 0 {
		return Result{}, fmt.Errorf("%w: empty history", model.ErrValidation)
	}
	first, last := history[0], history[len(history)-1]
	out := Result{Requested: len(dates)}
	for _, d := range dates {
		if !d.After(first) || !d.Before(last) {
			return Result{}, fmt.Errorf("%w: changepoint %s not strictly inside training range (%s, %s)",
				model.ErrValidation, d.Format(time.RFC3339), first.Format(time.RFC3339), last.Format(time.RFC3339))
		}
		out.Dates = append(out.Dates, d)
	}
	slices.SortFunc(out.Dates, func(a, b time.Time) int { return a.Compare(b) })
	out.Dates = slices.CompactFunc(out.Dates, func(a, b time.Time) bool { return a.Equal(b) })
	out.T = make([]float64, len(out.Dates))
	for i, d := range out.Dates {
		out.T[i] = scaler.TimeOf(d)
	}
	return out, nil
}

func automatic(cfg Config, history []time.Time, scaler scaling.Scaler) (Result, error) {
	if cfg.Count < 0 {
		return Result{}, fmt.Errorf("%w: n_changepoints must not be negative", model.ErrConfiguration)
	}
	if cfg.Range <= 0 || cfg.Range > 1 {
		return Result{}, fmt.Errorf("%w: changepoint_range must be in (0, 1]", model.ErrConfiguration)
	}
	out := Result{Requested: cfg.Count, T: []float64{}}
	n := cfg.Count
	histSize := int(math.Floor(float64(len(history)) * cfg.Range))
	if n+1 > histSize {
		n = max(histSize-1, 0)
		out.Clamped = n != cfg.Count
	}
	if n == 0 {
		return out, nil
	}

	idx := linspaceIndexes(histSize-1, n+1)[1:]
	for _, i := range idx {
		d := history[i]
		t := scaler.TimeOf(d)
		// Repeated timestamps can put a candidate on the history bounds.
		if t <= 0 || t >= 1 {
			continue
		}
		if k := len(out.T); k > 0 && out.T[k-1] == t {
			continue
		}
		out.Dates = append(out.Dates, d)
		out.T = append(out.T, t)
	}
	return out, nil
}

// linspaceIndexes returns count evenly spaced indexes over [0, last],
// rounded half to even.
func linspaceIndexes(last, count int) []int {
	out := make([]int, count)
	if count == 1 {
		return out
	}
	step := float64(last) / float64(count-1)
	for i := range out {
		out[i] = int(math.RoundToEven(float64(i) * step))
	}
	out[count-1] = last
	return out
}
