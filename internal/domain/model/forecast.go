package model

import "time"

// Interval is a point estimate with its uncertainty bounds.
type Interval struct {
	Value float64 `json:"value"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ForecastRecord is one output row of a predict call.
type ForecastRecord struct {
	DS time.Time `json:"ds"`

	Trend      float64 `json:"trend"`
	TrendLower float64 `json:"trend_lower"`
	TrendUpper float64 `json:"trend_upper"`

	Seasonal      float64 `json:"seasonal"`
	SeasonalLower float64 `json:"seasonal_lower"`
	SeasonalUpper float64 `json:"seasonal_upper"`

	// Components holds every named seasonality and regressor plus the
	// "seasonalities" and "extra_regressors" group totals.
	Components map[string]Interval `json:"components,omitempty"`

	YHat      float64 `json:"yhat"`
	YHatLower float64 `json:"yhat_lower"`
	YHatUpper float64 `json:"yhat_upper"`
}

// PredictiveDraws holds raw posterior-predictive samples, one row per
// prediction date and one column per simulated path.
type PredictiveDraws struct {
	DS       []time.Time `json:"ds"`
	YHat     [][]float64 `json:"yhat"`
	Trend    [][]float64 `json:"trend"`
	Seasonal [][]float64 `json:"seasonal"`
}
