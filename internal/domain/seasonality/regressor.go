package seasonality

import (
	"fmt"
	"strings"

	"github.com/okian/trendcast/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// Standardize selects how a regressor column is centred and scaled.
type Standardize string

// Standardization modes.
const (
	StandardizeAuto  Standardize = "auto"
	StandardizeTrue  Standardize = "true"
	StandardizeFalse Standardize = "false"
)

// ParseStandardize parses a standardization mode, defaulting to auto.
func ParseStandardize(s string) (Standardize, error) {
	switch v := Standardize(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return StandardizeAuto, nil
	case StandardizeAuto, StandardizeTrue, StandardizeFalse:
		return v, nil
	default:
		return "", fmt.Errorf("%w: standardize must be auto, true or false, got %q", model.ErrConfiguration, s)
	}
}

// Regressor is an external covariate added as a single design column.
type Regressor struct {
	Name        string      `json:"name"`
	PriorScale  float64     `json:"prior_scale"`
	Standardize Standardize `json:"standardize"`

	// Mu and Std are fixed on the training history by Fit.
	Mu  float64 `json:"mu"`
	Std float64 `json:"std"`
}

// Fit fixes the standardization constants from the training column.
func (r Regressor) Fit(values []float64) Regressor {
	r.Mu, r.Std = 0, 1
	standardize := r.Standardize == StandardizeTrue
	if r.Standardize == StandardizeAuto || r.Standardize == "" {
		standardize = !binary(values) && distinct(values) > 1
	}
	if !standardize || len(values) == 0 {
		return r
	}
	mu, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 || std == 0 {
		std = mu
	}
	if std == 0 {
		std = 1
	}
	r.Mu, r.Std = mu, std
	return r
}

// Apply standardizes a raw column with the fitted constants.
func (r Regressor) Apply(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - r.Mu) / r.Std
	}
	return out
}

func binary(values []float64) bool {
	zero, one := false, false
	for _, v := range values {
		switch v {
		case 0:
			zero = true
		case 1:
			one = true
		default:
			return false
		}
	}
	return zero && one
}

func distinct(values []float64) int {
	seen := make(map[float64]struct{}, 2)
	for _, v := range values {
		seen[v] = struct{}{}
		if len(seen) > 1 {
			break
		}
	}
	return len(seen)
}
