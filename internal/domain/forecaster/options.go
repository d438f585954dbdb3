package forecaster

import (
	"time"

	"github.com/okian/trendcast/internal/domain/seasonality"
	"github.com/okian/trendcast/pkg/logger"
)

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithSettings replaces the whole configuration.
func WithSettings(s Settings) Option {
	return func(m *Model) {
		m.settings = s
		m.settings.Changepoints = cloneDates(s.Changepoints)
	}
}

// WithGrowth sets the trend family: linear or logistic.
func WithGrowth(g string) Option {
	return func(m *Model) {
		m.settings.Growth = g
	}
}

// WithChangepoints sets explicit changepoint dates.
func WithChangepoints(dates ...time.Time) Option {
	return func(m *Model) {
		m.settings.Changepoints = cloneDates(dates)
	}
}

// WithNChangepoints sets the number of automatic changepoints.
func WithNChangepoints(n int) Option {
	return func(m *Model) {
		m.settings.NChangepoints = n
	}
}

// WithChangepointRange sets the leading history fraction eligible for
// automatic changepoints.
func WithChangepointRange(r float64) Option {
	return func(m *Model) {
		m.settings.ChangepointRange = r
	}
}

// WithSeasonality sets a built-in seasonality to auto, on, off or an order.
func WithSeasonality(name string, s seasonality.Setting) Option {
	return func(m *Model) {
		v := s.String()
		switch name {
		case "yearly":
			m.settings.YearlySeasonality = v
		case "weekly":
			m.settings.WeeklySeasonality = v
		case "daily":
			m.settings.DailySeasonality = v
		}
	}
}

// WithPriorScales sets the seasonality, changepoint and holidays prior
// scales. Zero keeps the current value.
func WithPriorScales(seasonalityScale, changepointScale, holidaysScale float64) Option {
	return func(m *Model) {
		if seasonalityScale != 0 {
			m.settings.SeasonalityPriorScale = seasonalityScale
		}
		if changepointScale != 0 {
			m.settings.ChangepointPriorScale = changepointScale
		}
		if holidaysScale != 0 {
			m.settings.HolidaysPriorScale = holidaysScale
		}
	}
}

// WithMCMCSamples switches to posterior sampling with n draws.
func WithMCMCSamples(n int) Option {
	return func(m *Model) {
		m.settings.MCMCSamples = n
	}
}

// WithIntervalWidth sets the uncertainty interval width.
func WithIntervalWidth(w float64) Option {
	return func(m *Model) {
		m.settings.IntervalWidth = w
	}
}

// WithUncertaintySamples sets the number of simulated forecast paths.
func WithUncertaintySamples(n int) Option {
	return func(m *Model) {
		m.settings.UncertaintySamples = n
	}
}

// WithSeed fixes the random streams.
func WithSeed(seed uint64) Option {
	return func(m *Model) {
		m.settings.Seed = seed
	}
}

// WithWorkers caps concurrent path simulation.
func WithWorkers(n int) Option {
	return func(m *Model) {
		m.settings.Workers = n
	}
}

// WithMaxIterations caps optimizer iterations.
func WithMaxIterations(n int) Option {
	return func(m *Model) {
		m.settings.MaxIterations = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

func cloneDates(in []time.Time) []time.Time {
	if in == nil {
		return nil
	}
	return append([]time.Time{}, in...)
}
