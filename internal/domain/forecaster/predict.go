package forecaster

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/internal/domain/predictive"
	"github.com/okian/trendcast/internal/domain/seasonality"
	"github.com/okian/trendcast/internal/domain/trend"
	"github.com/okian/trendcast/pkg/logger"
	"github.com/okian/trendcast/pkg/metrics"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// groupSeasonal is the total of every seasonality and regressor.
const groupSeasonal = "seasonal"

// prepared is a prediction frame with its design matrix.
type prepared struct {
	st       *fitState
	frame    *model.Frame
	features *seasonality.Features
}

func (m *Model) prepare(rows []model.Observation) (*prepared, error) {
	st, err := m.state()
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = st.history
	}
	frame, err := st.scaler.Transform(rows)
	if err != nil {
		return nil, err
	}
	features, err := seasonality.Build(frame.DS, st.components, st.regressors, frame.Regressors)
	if err != nil {
		return nil, err
	}
	if features.Width() != len(st.columns) {
		return nil, fmt.Errorf("%w: prediction has %d design columns, fit had %d", model.ErrValidation, features.Width(), len(st.columns))
	}
	return &prepared{st: st, frame: frame, features: features}, nil
}

func (m *Model) simulate(ctx context.Context, p *prepared) (*predictive.Paths, error) {
	return m.sampler.Simulate(ctx, predictive.Input{
		Growth:       m.growth,
		T:            p.frame.T,
		Cap:          p.frame.CapScaled,
		Floor:        p.frame.Floor,
		X:            p.features.X,
		Changepoints: p.st.changepoints.T,
		Spacing:      p.st.spacing,
		YScale:       p.st.scaler.YScale,
	}, p.st.params)
}

// Predict forecasts rows, which need ds plus cap, floor and regressors when
// the model uses them. nil rows predicts the training history. Records are
// returned in input order.
func (m *Model) Predict(ctx context.Context, rows []model.Observation) ([]model.ForecastRecord, error) {
	start := time.Now()
	p, err := m.prepare(rows)
	if err != nil {
		return nil, err
	}
	paths, err := m.simulate(ctx, p)
	if err != nil {
		return nil, err
	}
	out, err := m.assemble(p, paths)
	if err != nil {
		return nil, err
	}
	metrics.RecordPredict(float64(time.Since(start).Milliseconds()), paths.Len())
	m.logger.Debug(ctx, "predicted", logger.Int("rows", len(out)), logger.Int("paths", paths.Len()))
	return out, nil
}

// PredictiveSamples returns the raw simulated paths for rows.
func (m *Model) PredictiveSamples(ctx context.Context, rows []model.Observation) (*model.PredictiveDraws, error) {
	if m.sampler.Samples() == 0 {
		return nil, fmt.Errorf("%w: uncertainty_samples is 0", model.ErrConfiguration)
	}
	p, err := m.prepare(rows)
	if err != nil {
		return nil, err
	}
	paths, err := m.simulate(ctx, p)
	if err != nil {
		return nil, err
	}
	return &model.PredictiveDraws{
		DS:       cloneDates(p.frame.DS),
		YHat:     paths.YHat,
		Trend:    paths.Trend,
		Seasonal: paths.Seasonal,
	}, nil
}

// assemble merges the point trend, the seasonal components and their
// intervals into records. yhat is always trend + seasonal.
func (m *Model) assemble(p *prepared, paths *predictive.Paths) ([]model.ForecastRecord, error) {
	n := p.frame.Len()
	st := p.st
	width := m.settings.IntervalWidth
	mean := st.params.Mean()

	tr := trend.Evaluate(m.growth, p.frame.T, p.frame.CapScaled, mean.Delta, mean.K, mean.M, st.changepoints.T)
	for i := range tr {
		tr[i] = st.scaler.Unscale(tr[i], p.frame.Floor[i])
	}

	components, err := m.components(p, mean, width)
	if err != nil {
		return nil, err
	}
	seasonal := components[groupSeasonal]

	yhat := make([]float64, n)
	floats.AddTo(yhat, tr, seasonal.value)

	trendLower, trendUpper := tr, tr
	yhatLower, yhatUpper := yhat, yhat
	if paths.Len() > 0 {
		if trendLower, trendUpper, err = predictive.Bounds(paths.Trend, width); err != nil {
			return nil, err
		}
		if yhatLower, yhatUpper, err = predictive.Bounds(paths.YHat, width); err != nil {
			return nil, err
		}
	}

	out := make([]model.ForecastRecord, n)
	for i := range out {
		rec := model.ForecastRecord{
			DS:            p.frame.DS[i],
			Trend:         tr[i],
			TrendLower:    trendLower[i],
			TrendUpper:    trendUpper[i],
			Seasonal:      seasonal.value[i],
			SeasonalLower: seasonal.lower[i],
			SeasonalUpper: seasonal.upper[i],
			Components:    make(map[string]model.Interval, len(components)-1),
			YHat:          yhat[i],
			YHatLower:     yhatLower[i],
			YHatUpper:     yhatUpper[i],
		}
		for name, c := range components {
			if name == groupSeasonal {
				continue
			}
			rec.Components[name] = model.Interval{Value: c.value[i], Lower: c.lower[i], Upper: c.upper[i]}
		}
		out[i] = rec
	}
	return out, nil
}

type series struct {
	value, lower, upper []float64
}

// components returns every named component, the group totals and the
// seasonal total, in original units. Intervals come from the spread of the
// coefficient draws and collapse to the point value for a single draw.
func (m *Model) components(p *prepared, mean model.Draw, width float64) (map[string]series, error) {
	st := p.st
	x := p.features.X
	n := p.frame.Len()

	cols := make(map[string][]int, len(p.features.Components)+1)
	for name, c := range p.features.Components {
		cols[name] = c
	}
	all := make([]int, p.features.Width())
	for i := range all {
		all[i] = i
	}
	cols[groupSeasonal] = all

	out := make(map[string]series, len(cols))
	for name, c := range cols {
		s := series{value: m.contribution(x, c, mean.Beta, n, st.scaler.YScale)}
		s.lower, s.upper = s.value, s.value
		if st.params.Len() > 1 && n > 0 {
			draws := make([][]float64, n)
			for i := range draws {
				draws[i] = make([]float64, st.params.Len())
			}
			for j := 0; j < st.params.Len(); j++ {
				for i, v := range m.contribution(x, c, st.params.Draw(j).Beta, n, st.scaler.YScale) {
					draws[i][j] = v
				}
			}
			var err error
			if s.lower, s.upper, err = predictive.Bounds(draws, width); err != nil {
				return nil, err
			}
		}
		out[name] = s
	}
	return out, nil
}

func (m *Model) contribution(x *mat.Dense, cols []int, beta []float64, n int, yScale float64) []float64 {
	v := seasonality.Contribution(x, cols, beta)
	if v == nil {
		v = make([]float64, n)
	}
	floats.Scale(yScale, v)
	return v
}

// FittedAt returns when Fit succeeded.
func (m *Model) FittedAt() (time.Time, error) {
	st, err := m.state()
	if err != nil {
		return time.Time{}, err
	}
	return st.fittedAt, nil
}
