package forecaster

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/trendcast/internal/domain/model"
)

// Frequency is a step between future dates: a fixed duration or a number
// of calendar months.
type Frequency struct {
	step   time.Duration
	months int
	name   string
}

// Common frequencies.
var (
	Hourly  = Frequency{step: time.Hour, name: "H"}
	Daily   = Frequency{step: 24 * time.Hour, name: "D"}
	Weekly  = Frequency{step: 7 * 24 * time.Hour, name: "W"}
	Monthly = Frequency{months: 1, name: "M"}
	Yearly  = Frequency{months: 12, name: "Y"}
)

// ParseFrequency accepts H, D, W, M, Y (case-insensitive) or any positive
// Go duration such as "15m".
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "H":
		return Hourly, nil
	case "", "D":
		return Daily, nil
	case "W":
		return Weekly, nil
	case "M", "MS":
		return Monthly, nil
	case "Y", "A":
		return Yearly, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return Frequency{}, fmt.Errorf("%w: unknown frequency %q", model.ErrConfiguration, s)
	}
	return Frequency{step: d, name: d.String()}, nil
}

// String returns the frequency in the form ParseFrequency accepts.
func (f Frequency) String() string { return f.name }

// Add returns t advanced by n steps. Calendar months follow time.AddDate.
func (f Frequency) Add(t time.Time, n int) time.Time {
	if f.months > 0 {
		return t.AddDate(0, n*f.months, 0)
	}
	return t.Add(time.Duration(n) * f.step)
}

// MakeFutureDates returns periods dates after the last training date, one
// freq apart, optionally preceded by the training dates.
func (m *Model) MakeFutureDates(periods int, freq Frequency, includeHistory bool) ([]time.Time, error) {
	st, err := m.state()
	if err != nil {
		return nil, err
	}
	if periods < 0 {
		return nil, fmt.Errorf("%w: periods must not be negative", model.ErrConfiguration)
	}
	if freq.step <= 0 && freq.months <= 0 {
		return nil, fmt.Errorf("%w: frequency must be positive", model.ErrConfiguration)
	}

	var out []time.Time
	if includeHistory {
		out = make([]time.Time, 0, len(st.history)+periods)
		for i, o := range st.history {
			if i > 0 && o.DS.Equal(st.history[i-1].DS) {
				continue
			}
			out = append(out, o.DS)
		}
	} else {
		out = make([]time.Time, 0, periods)
	}
	last := st.lastDate()
	for i := 1; i <= periods; i++ {
		out = append(out, freq.Add(last, i))
	}
	return out, nil
}

// Dates wraps dates as prediction rows with no other columns.
func Dates(ds []time.Time) []model.Observation {
	out := make([]model.Observation, len(ds))
	for i, d := range ds {
		out[i] = model.Observation{DS: d}
	}
	return out
}
