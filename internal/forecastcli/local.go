package forecastcli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/okian/trendcast/internal/domain/forecaster"
	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/pkg/logger"
)

// definitionFor declares every regressor column of t that def does not
// already name.
func definitionFor(def forecaster.Definition, t *Table) forecaster.Definition {
	out := def
	out.Regressors = slices.Clone(def.Regressors)
	for _, name := range t.Regressors {
		declared := slices.ContainsFunc(out.Regressors, func(r forecaster.RegressorDefinition) bool {
			return r.Name == name
		})
		if !declared {
			out.Regressors = append(out.Regressors, forecaster.RegressorDefinition{Name: name, Standardize: "auto"})
		}
	}
	return out
}

// newRequest builds what to predict: the rows of future when given,
// otherwise periods generated dates with cap and floor carried forward from
// the latest history row that has them.
func newRequest(cfg *Config, history, future *Table) (Request, error) {
	if future != nil {
		if len(future.Rows) == 0 {
			return Request{}, fmt.Errorf("%w: future csv has no rows", model.ErrValidation)
		}
		return Request{Rows: future.Rows}, nil
	}
	if len(history.Regressors) > 0 {
		return Request{}, fmt.Errorf("%w: regressors %v need future rows", model.ErrConfiguration, history.Regressors)
	}
	return Request{
		Periods:        cfg.Periods,
		Freq:           cfg.Freq,
		IncludeHistory: cfg.IncludeHistory,
		Cap:            latest(history.Rows, func(o model.Observation) *float64 { return o.Cap }),
		Floor:          latest(history.Rows, func(o model.Observation) *float64 { return o.Floor }),
	}, nil
}

func latest(rows []model.Observation, field func(model.Observation) *float64) *float64 {
	var (
		out  *float64
		last time.Time
	)
	for _, o := range rows {
		if v := field(o); v != nil && (out == nil || !o.DS.Before(last)) {
			out, last = v, o.DS
		}
	}
	return out
}

// Run fits history locally and writes the forecast of the requested rows
// to out. future may be nil.
func Run(ctx context.Context, cfg *Config, history, future io.Reader, out io.Writer) error {
	log := logger.Get().Named("forecast")

	t, err := ReadCSV(history)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	var ft *Table
	if future != nil {
		if ft, err = ReadCSV(future); err != nil {
			return fmt.Errorf("future: %w", err)
		}
	}
	req, err := newRequest(cfg, t, ft)
	if err != nil {
		return err
	}

	m, err := definitionFor(cfg.Definition, t).Build(forecaster.WithLogger(log))
	if err != nil {
		return err
	}
	start := time.Now()
	if err := m.Fit(ctx, t.Rows); err != nil {
		return err
	}
	log.Info(ctx, "model fitted", logger.Int("rows", len(t.Rows)), logger.Duration("took", time.Since(start)))

	rows, err := localRows(m, t, req)
	if err != nil {
		return err
	}
	records, err := m.Predict(ctx, rows)
	if err != nil {
		return err
	}
	return WriteCSV(out, records)
}

func localRows(m *forecaster.Model, history *Table, req Request) ([]model.Observation, error) {
	if req.Rows != nil {
		return req.Rows, nil
	}
	freq, err := forecaster.ParseFrequency(req.Freq)
	if err != nil {
		return nil, err
	}
	dates, err := m.MakeFutureDates(req.Periods, freq, false)
	if err != nil {
		return nil, err
	}
	future := forecaster.Dates(dates)
	for i := range future {
		future[i].Cap, future[i].Floor = req.Cap, req.Floor
	}
	if !req.IncludeHistory {
		return future, nil
	}
	return append(slices.Clone(history.Rows), future...), nil
}
