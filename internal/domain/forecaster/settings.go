package forecaster

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/internal/domain/seasonality"
	"github.com/okian/trendcast/internal/domain/trend"
)

// Settings is the model configuration surface. It is shared by the config
// file, the HTTP API and the CLI.
type Settings struct {
	Growth           string      `koanf:"growth" json:"growth" default:"linear" validate:"oneof=linear logistic"`
	Changepoints     []time.Time `koanf:"changepoints" json:"changepoints,omitempty"`
	NChangepoints    int         `koanf:"n_changepoints" json:"n_changepoints" default:"25" validate:"gte=0"`
	ChangepointRange float64     `koanf:"changepoint_range" json:"changepoint_range" default:"0.8" validate:"gt=0,lte=1"`

	YearlySeasonality string `koanf:"yearly_seasonality" json:"yearly_seasonality" default:"auto"`
	WeeklySeasonality string `koanf:"weekly_seasonality" json:"weekly_seasonality" default:"auto"`
	DailySeasonality  string `koanf:"daily_seasonality" json:"daily_seasonality" default:"auto"`

	SeasonalityPriorScale float64 `koanf:"seasonality_prior_scale" json:"seasonality_prior_scale" default:"10" validate:"gt=0"`
	ChangepointPriorScale float64 `koanf:"changepoint_prior_scale" json:"changepoint_prior_scale" default:"0.05" validate:"gt=0"`
	HolidaysPriorScale    float64 `koanf:"holidays_prior_scale" json:"holidays_prior_scale" default:"10" validate:"gt=0"`

	MCMCSamples        int     `koanf:"mcmc_samples" json:"mcmc_samples" default:"0" validate:"gte=0"`
	IntervalWidth      float64 `koanf:"interval_width" json:"interval_width" default:"0.8" validate:"gte=0,lte=1"`
	UncertaintySamples int     `koanf:"uncertainty_samples" json:"uncertainty_samples" default:"1000" validate:"gte=0"`

	// Seed fixes every random stream used by fitting and prediction.
	Seed uint64 `koanf:"seed" json:"seed"`
	// Workers caps concurrent path simulation; 0 means one per CPU.
	Workers       int `koanf:"workers" json:"workers" validate:"gte=0"`
	MaxIterations int `koanf:"max_iterations" json:"max_iterations" default:"2000" validate:"gte=0"`
}

var validate = validator.New()

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	var s Settings
	if err := defaults.Set(&s); err != nil {
		panic(fmt.Sprintf("forecaster: invalid default tags: %v", err))
	}
	return s
}

// Validate checks every field, including the seasonality settings.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", model.ErrConfiguration, err)
	}
	if _, err := trend.ParseGrowth(s.Growth); err != nil {
		return err
	}
	_, err := s.seasonalitySettings()
	return err
}

func (s Settings) seasonalitySettings() (map[string]seasonality.Setting, error) {
	raw := map[string]string{
		"yearly": s.YearlySeasonality,
		"weekly": s.WeeklySeasonality,
		"daily":  s.DailySeasonality,
	}
	out := make(map[string]seasonality.Setting, len(raw))
	for name, v := range raw {
		setting, err := seasonality.ParseSetting(v)
		if err != nil {
			return nil, fmt.Errorf("%s_seasonality: %w", name, err)
		}
		out[name] = setting
	}
	return out, nil
}
