// Package forecaster is the fit/predict entry point. It wires the scaler,
// changepoint selection, seasonality features, estimator and predictive
// sampler into one write-once model.
package forecaster

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/trendcast/internal/domain/changepoint"
	"github.com/okian/trendcast/internal/domain/estimator"
	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/internal/domain/predictive"
	"github.com/okian/trendcast/internal/domain/scaling"
	"github.com/okian/trendcast/internal/domain/seasonality"
	"github.com/okian/trendcast/internal/domain/trend"
	"github.com/okian/trendcast/pkg/logger"
	"github.com/okian/trendcast/pkg/metrics"
	"github.com/okian/trendcast/pkg/solver"
)

// Model is a forecasting model. Configuration is fixed before Fit; Fit
// succeeds at most once and its result is read-only afterwards.
type Model struct {
	mu sync.RWMutex

	settings   Settings
	growth     trend.Growth
	builtins   map[string]seasonality.Setting
	custom     []seasonality.Component
	regressors []seasonality.Regressor
	sampler    *predictive.Sampler
	logger     logger.Logger

	fit *fitState
}

// fitState is everything produced by a successful Fit.
type fitState struct {
	history      []model.Observation
	scaler       scaling.Scaler
	changepoints changepoint.Result
	components   []seasonality.Component
	regressors   []seasonality.Regressor
	columns      []string
	params       model.Params
	spacing      float64
	report       estimator.Report
	fittedAt     time.Time
}

// New creates an unfitted model from DefaultSettings and opts. Invalid
// configuration is reported immediately.
func New(opts ...Option) (*Model, error) {
	m := &Model{
		settings: DefaultSettings(),
		logger:   logger.Get().Named("forecaster"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.settings.Validate(); err != nil {
		return nil, err
	}
	m.growth, _ = trend.ParseGrowth(m.settings.Growth)
	m.builtins, _ = m.settings.seasonalitySettings()
	m.sampler = predictive.New(
		predictive.WithSamples(m.settings.UncertaintySamples),
		predictive.WithSeed(m.settings.Seed),
		predictive.WithWorkers(m.settings.Workers),
		predictive.WithLogger(m.logger.Named("predictive")),
	)
	return m, nil
}

// NewFromSettings creates an unfitted model from s.
func NewFromSettings(s Settings, opts ...Option) (*Model, error) {
	return New(append([]Option{WithSettings(s)}, opts...)...)
}

// AddSeasonality adds a custom seasonality. A zero priorScale uses the
// seasonality prior scale. A built-in name replaces that built-in.
func (m *Model) AddSeasonality(name string, periodDays float64, fourierOrder int, priorScale float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fit != nil {
		return fmt.Errorf("%w: seasonality must be added before fitting", model.ErrConfiguration)
	}
	if err := seasonality.ValidateName(name, true); err != nil {
		return err
	}
	if m.nameTaken(name) {
		return fmt.Errorf("%w: name %q is already used", model.ErrConfiguration, name)
	}
	if priorScale == 0 {
		priorScale = m.settings.SeasonalityPriorScale
	}
	c := seasonality.Component{Name: name, Period: periodDays, FourierOrder: fourierOrder, PriorScale: priorScale}
	if err := c.Validate(); err != nil {
		return err
	}
	m.custom = append(m.custom, c)
	return nil
}

// AddRegressor adds an extra regressor column. A zero priorScale uses the
// holidays prior scale.
func (m *Model) AddRegressor(name string, priorScale float64, standardize seasonality.Standardize) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fit != nil {
		return fmt.Errorf("%w: regressors must be added before fitting", model.ErrConfiguration)
	}
	if err := seasonality.ValidateName(name, false); err != nil {
		return err
	}
	if m.nameTaken(name) {
		return fmt.Errorf("%w: name %q is already used", model.ErrConfiguration, name)
	}
	if priorScale == 0 {
		priorScale = m.settings.HolidaysPriorScale
	}
	if priorScale < 0 {
		return fmt.Errorf("%w: regressor %q prior scale must be positive", model.ErrConfiguration, name)
	}
	mode, err := seasonality.ParseStandardize(string(standardize))
	if err != nil {
		return err
	}
	m.regressors = append(m.regressors, seasonality.Regressor{Name: name, PriorScale: priorScale, Standardize: mode})
	return nil
}

func (m *Model) nameTaken(name string) bool {
	for _, c := range m.custom {
		if c.Name == name {
			return true
		}
	}
	for _, r := range m.regressors {
		if r.Name == name {
			return true
		}
	}
	return false
}

func (m *Model) regressorNames() []string {
	out := make([]string, len(m.regressors))
	for i, r := range m.regressors {
		out[i] = r.Name
	}
	return out
}

// Fit fits the model to history. Rows without y are dropped and the rest
// sorted by ds; at least two must remain. A second successful Fit is an
// error.
func (m *Model) Fit(ctx context.Context, history []model.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fit != nil {
		return fmt.Errorf("%w: model is already fitted; create a new model to refit", model.ErrFitState)
	}

	start := time.Now()
	state, err := m.fitLocked(ctx, history)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordFit("error", latency)
		m.logger.Error(ctx, "fit failed", logger.Error(err))
		return err
	}
	metrics.RecordFit("success", latency)
	m.fit = state
	m.logger.Info(ctx, "model fitted",
		logger.Int("rows", len(state.history)),
		logger.Int("changepoints", state.changepoints.Len()),
		logger.Int("columns", len(state.columns)),
		logger.Int("draws", state.params.Len()),
		logger.Bool("degenerate", state.report.Degenerate),
		logger.Float64("latency_ms", latency))
	return nil
}

func (m *Model) fitLocked(ctx context.Context, history []model.Observation) (*fitState, error) {
	rows := make([]model.Observation, 0, len(history))
	for _, o := range history {
		if o.HasY() {
			rows = append(rows, o)
		}
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 rows with y, got %d", model.ErrValidation, len(rows))
	}
	slices.SortStableFunc(rows, func(a, b model.Observation) int { return a.DS.Compare(b.DS) })

	scaler, err := scaling.Fit(rows, m.growth == trend.Logistic, m.regressorNames())
	if err != nil {
		return nil, err
	}
	frame, err := scaler.Transform(rows)
	if err != nil {
		return nil, err
	}

	cps, err := changepoint.Select(changepoint.Config{
		Count:    m.settings.NChangepoints,
		Range:    m.settings.ChangepointRange,
		Explicit: m.settings.Changepoints,
	}, frame.DS, scaler)
	if err != nil {
		return nil, err
	}
	if cps.Clamped {
		metrics.RecordChangepointClamp()
		m.logger.Warn(ctx, "n_changepoints reduced to fit the history",
			logger.Int("requested", cps.Requested),
			logger.Int("used", cps.Len()))
	}

	comps, notes, err := seasonality.Resolve(m.custom, m.builtins, frame.DS, m.settings.SeasonalityPriorScale)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		m.logger.Info(ctx, "seasonality adjusted", logger.String("seasonality", n.Name), logger.String("reason", n.Reason))
	}

	regressors := make([]seasonality.Regressor, len(m.regressors))
	for i, r := range m.regressors {
		regressors[i] = r.Fit(frame.Regressors[r.Name])
	}
	features, err := seasonality.Build(frame.DS, comps, regressors, frame.Regressors)
	if err != nil {
		return nil, err
	}

	est := estimator.New(
		estimator.WithOptimizers(
			solver.NewQuasiNewton(solver.WithMethod(solver.MethodLBFGS), solver.WithMaxIterations(m.settings.MaxIterations)),
			solver.NewQuasiNewton(solver.WithMethod(solver.MethodBFGS), solver.WithMaxIterations(m.settings.MaxIterations)),
		),
		estimator.WithSampler(solver.NewMetropolis(solver.WithSeed(m.settings.Seed))),
		estimator.WithMCMCSamples(m.settings.MCMCSamples),
		estimator.WithLogger(m.logger.Named("estimator")),
	)
	params, report, err := est.Fit(ctx, estimator.Input{
		Growth:       m.growth,
		T:            frame.T,
		Y:            frame.YScaled,
		Cap:          frame.CapScaled,
		X:            features.X,
		PriorScales:  features.PriorScales,
		Changepoints: cps.T,
		Tau:          m.settings.ChangepointPriorScale,
	})
	if err != nil {
		return nil, err
	}
	if report.Fallback {
		metrics.RecordOptimizerFallback()
	}

	return &fitState{
		history:      rows,
		scaler:       scaler,
		changepoints: cps,
		components:   comps,
		regressors:   regressors,
		columns:      features.Columns,
		params:       params,
		spacing:      meanSpacing(frame.T),
		report:       report,
		fittedAt:     time.Now().UTC(),
	}, nil
}

// meanSpacing returns the mean gap of sorted scaled times.
func meanSpacing(t []float64) float64 {
	if len(t) < 2 {
		return 0
	}
	return (t[len(t)-1] - t[0]) / float64(len(t)-1)
}

// Fitted reports whether Fit has succeeded.
func (m *Model) Fitted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fit != nil
}

func (m *Model) state() (*fitState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fit == nil {
		return nil, fmt.Errorf("%w: model has not been fitted", model.ErrFitState)
	}
	return m.fit, nil
}

// Settings returns a copy of the configuration.
func (m *Model) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.settings
	s.Changepoints = cloneDates(s.Changepoints)
	return s
}

// Changepoints returns the selected changepoint dates.
func (m *Model) Changepoints() ([]time.Time, error) {
	st, err := m.state()
	if err != nil {
		return nil, err
	}
	return cloneDates(st.changepoints.Dates), nil
}

// Params returns the fitted parameter draws.
func (m *Model) Params() (model.Params, error) {
	st, err := m.state()
	if err != nil {
		return model.Params{}, err
	}
	return st.params, nil
}

// Seasonalities returns the seasonalities used by the fit.
func (m *Model) Seasonalities() ([]seasonality.Component, error) {
	st, err := m.state()
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.components), nil
}

// Regressors returns the regressors with their fitted standardization.
func (m *Model) Regressors() ([]seasonality.Regressor, error) {
	st, err := m.state()
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.regressors), nil
}

// Columns returns the design column names in coefficient order.
func (m *Model) Columns() ([]string, error) {
	st, err := m.state()
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.columns), nil
}

// Report describes how the parameters were estimated.
func (m *Model) Report() (estimator.Report, error) {
	st, err := m.state()
	if err != nil {
		return estimator.Report{}, err
	}
	return st.report, nil
}

// History returns the training rows, sorted by ds.
func (m *Model) History() ([]model.Observation, error) {
	st, err := m.state()
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.history), nil
}

// Clone returns an unfitted model with the same configuration, custom
// seasonalities and regressors. Explicit changepoints at or after cutoff
// are dropped; a zero cutoff keeps them all.
func (m *Model) Clone(cutoff time.Time) (*Model, error) {
	s := m.Settings()
	if !cutoff.IsZero() && s.Changepoints != nil {
		kept := make([]time.Time, 0, len(s.Changepoints))
		for _, c := range s.Changepoints {
			if c.Before(cutoff) {
				kept = append(kept, c)
			}
		}
		s.Changepoints = kept
	}
	out, err := NewFromSettings(s, WithLogger(m.logger))
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out.custom = slices.Clone(m.custom)
	out.regressors = make([]seasonality.Regressor, len(m.regressors))
	for i, r := range m.regressors {
		out.regressors[i] = seasonality.Regressor{Name: r.Name, PriorScale: r.PriorScale, Standardize: r.Standardize}
	}
	return out, nil
}

// lastDate returns the latest training timestamp.
func (st *fitState) lastDate() time.Time { return st.history[len(st.history)-1].DS }
