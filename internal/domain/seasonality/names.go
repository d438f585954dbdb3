package seasonality

import (
	"fmt"
	"strings"

	"github.com/okian/trendcast/internal/domain/model"
)

// ColumnDelimiter separates a component name from its column index.
const ColumnDelimiter = "#"

// Group names for aggregated components.
const (
	GroupSeasonalities   = "seasonalities"
	GroupExtraRegressors = "extra_regressors"
	zerosColumn          = "zeros"
)

var reserved = func() map[string]struct{} {
	base := []string{
		"trend", "seasonal", GroupSeasonalities, "daily", "weekly", "yearly",
		"holidays", zerosColumn, GroupExtraRegressors, "yhat",
	}
	out := map[string]struct{}{}
	for _, n := range base {
		out[n] = struct{}{}
		out[n+"_lower"] = struct{}{}
		out[n+"_upper"] = struct{}{}
	}
	for _, n := range []string{"ds", "y", "cap", "floor", "y_scaled", "cap_scaled"} {
		out[n] = struct{}{}
	}
	return out
}()

var builtinNames = map[string]struct{}{"yearly": {}, "weekly": {}, "daily": {}}

// ValidateName rejects empty, delimited and reserved component names.
// Seasonalities may reuse a built-in seasonality name.
func ValidateName(name string, seasonality bool) error {
	if name == "" {
		return fmt.Errorf("%w: component name must not be empty", model.ErrConfiguration)
	}
	if strings.Contains(name, ColumnDelimiter) {
		return fmt.Errorf("%w: name %q must not contain %q", model.ErrConfiguration, name, ColumnDelimiter)
	}
	if _, ok := builtinNames[name]; ok && seasonality {
		return nil
	}
	if _, ok := reserved[name]; ok {
		return fmt.Errorf("%w: name %q is reserved", model.ErrConfiguration, name)
	}
	return nil
}
