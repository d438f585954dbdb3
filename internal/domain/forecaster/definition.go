package forecaster

import (
	"fmt"

	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/internal/domain/seasonality"
)

// Definition describes a model declaratively: settings plus the custom
// seasonalities and regressors to add before fitting. The HTTP API and the
// CLI both build models from it.
type Definition struct {
	Settings      Settings                `json:"settings" koanf:"settings"`
	Seasonalities []SeasonalityDefinition `json:"seasonalities,omitempty" koanf:"seasonalities" validate:"dive"`
	Regressors    []RegressorDefinition   `json:"regressors,omitempty" koanf:"regressors" validate:"dive"`
}

// SeasonalityDefinition is one AddSeasonality call.
type SeasonalityDefinition struct {
	Name         string  `json:"name" koanf:"name" validate:"required"`
	PeriodDays   float64 `json:"period_days" koanf:"period_days" validate:"gt=0"`
	FourierOrder int     `json:"fourier_order" koanf:"fourier_order" validate:"gt=0"`
	PriorScale   float64 `json:"prior_scale,omitempty" koanf:"prior_scale" validate:"gte=0"`
}

// RegressorDefinition is one AddRegressor call.
type RegressorDefinition struct {
	Name        string  `json:"name" koanf:"name" validate:"required"`
	PriorScale  float64 `json:"prior_scale,omitempty" koanf:"prior_scale" validate:"gte=0"`
	Standardize string  `json:"standardize,omitempty" koanf:"standardize" default:"auto" validate:"omitempty,oneof=auto true false"`
}

// Build creates the unfitted model.
func (d Definition) Build(opts ...Option) (*Model, error) {
	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrConfiguration, err)
	}
	m, err := NewFromSettings(d.Settings, opts...)
	if err != nil {
		return nil, err
	}
	for _, s := range d.Seasonalities {
		if err := m.AddSeasonality(s.Name, s.PeriodDays, s.FourierOrder, s.PriorScale); err != nil {
			return nil, err
		}
	}
	for _, r := range d.Regressors {
		if err := m.AddRegressor(r.Name, r.PriorScale, seasonality.Standardize(r.Standardize)); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Definition returns the declarative form of an unfitted or fitted model.
func (m *Model) Definition() Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d := Definition{Settings: m.settings}
	d.Settings.Changepoints = cloneDates(m.settings.Changepoints)
	for _, c := range m.custom {
		d.Seasonalities = append(d.Seasonalities, SeasonalityDefinition{
			Name: c.Name, PeriodDays: c.Period, FourierOrder: c.FourierOrder, PriorScale: c.PriorScale,
		})
	}
	for _, r := range m.regressors {
		d.Regressors = append(d.Regressors, RegressorDefinition{
			Name: r.Name, PriorScale: r.PriorScale, Standardize: string(r.Standardize),
		})
	}
	return d
}
