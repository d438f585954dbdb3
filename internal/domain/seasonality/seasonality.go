// Package seasonality builds the Fourier and regressor design matrix.
package seasonality

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/okian/trendcast/internal/domain/model"
)

// Component is one periodic effect.
type Component struct {
	Name         string  `json:"name"`
	Period       float64 `json:"period_days"`
	FourierOrder int     `json:"fourier_order"`
	PriorScale   float64 `json:"prior_scale"`
}

// Validate checks the component's numeric fields.
func (c Component) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("%w: seasonality %q period must be positive", model.ErrConfiguration, c.Name)
	}
	if c.FourierOrder <= 0 {
		return fmt.Errorf("%w: seasonality %q fourier order must be positive", model.ErrConfiguration, c.Name)
	}
	if c.PriorScale <= 0 {
		return fmt.Errorf("%w: seasonality %q prior scale must be positive", model.ErrConfiguration, c.Name)
	}
	return nil
}

// Setting is the user choice for a built-in seasonality: "auto", a boolean
// or an explicit Fourier order.
type Setting struct {
	Auto    bool
	Enabled bool
	Order   int // 0 means the built-in default
}

// Auto is the default Setting.
var Auto = Setting{Auto: true}

// ParseSetting parses "auto", "true", "false" or a non-negative integer.
func ParseSetting(s string) (Setting, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "auto":
		return Auto, nil
	case "true", "yes", "on":
		return Setting{Enabled: true}, nil
	case "false", "no", "off":
		return Setting{}, nil
	default:
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Setting{}, fmt.Errorf("%w: seasonality setting %q must be auto, true, false or an order", model.ErrConfiguration, s)
		}
		return Setting{Enabled: n > 0, Order: n}, nil
	}
}

// String renders the setting in the form ParseSetting accepts.
func (s Setting) String() string {
	switch {
	case s.Auto:
		return "auto"
	case !s.Enabled:
		return "false"
	case s.Order > 0:
		return strconv.Itoa(s.Order)
	default:
		return "true"
	}
}

// Builtin describes one of the automatically managed seasonalities and the
// history shape needed to enable it.
type Builtin struct {
	Name         string
	Period       float64
	DefaultOrder int
	MinSpanDays  float64
	// MaxSpacingDays is the exclusive bound on the minimum spacing between
	// observations; 0 means no spacing requirement.
	MaxSpacingDays float64
}

// Builtins lists the built-in seasonalities in the order they are added.
var Builtins = []Builtin{
	{Name: "yearly", Period: 365.25, DefaultOrder: 10, MinSpanDays: 730},
	{Name: "weekly", Period: 7, DefaultOrder: 3, MinSpanDays: 14, MaxSpacingDays: 7},
	{Name: "daily", Period: 1, DefaultOrder: 4, MinSpanDays: 2, MaxSpacingDays: 1},
}

// Note reports a non-fatal resolution decision worth logging.
type Note struct {
	Name   string
	Reason string
}

// Resolve combines custom components with the built-ins enabled by settings
// and the auto rule. Customs come first in insertion order; a custom sharing
// a built-in name replaces it. ds must be sorted ascending.
func Resolve(custom []Component, settings map[string]Setting, ds []time.Time, priorScale float64) ([]Component, []Note, error) {
	out := make([]Component, 0, len(custom)+len(Builtins))
	var notes []Note
	for _, c := range custom {
		if err := c.Validate(); err != nil {
			return nil, nil, err
		}
		out = append(out, c)
	}

	spanDays, minSpacingDays := shape(ds)
	for _, b := range Builtins {
		setting, ok := settings[b.Name]
		if !ok {
			setting = Auto
		}
		if slices.ContainsFunc(custom, func(c Component) bool { return c.Name == b.Name }) {
			if setting.Enabled {
				notes = append(notes, Note{Name: b.Name, Reason: "custom seasonality overrides built-in"})
			}
			continue
		}

		order := 0
		switch {
		case setting.Auto:
			if spanDays < b.MinSpanDays {
				notes = append(notes, Note{Name: b.Name, Reason: "disabled: history too short"})
				continue
			}
			if b.MaxSpacingDays > 0 && minSpacingDays >= b.MaxSpacingDays {
				notes = append(notes, Note{Name: b.Name, Reason: "disabled: observations too sparse"})
				continue
			}
			order = b.DefaultOrder
		case setting.Enabled:
			order = setting.Order
			if order == 0 {
				order = b.DefaultOrder
			}
		default:
			continue
		}
		out = append(out, Component{Name: b.Name, Period: b.Period, FourierOrder: order, PriorScale: priorScale})
	}
	return out, notes, nil
}

// shape returns the history span and minimum positive spacing, in days.
func shape(ds []time.Time) (span, minSpacing float64) {
	if len(ds) < 2 {
		return 0, 0
	}
	span = ds[len(ds)-1].Sub(ds[0]).Hours() / 24
	minSpacing = span
	for i := 1; i < len(ds); i++ {
		d := ds[i].Sub(ds[i-1]).Hours() / 24
		if d > 0 && d < minSpacing {
			minSpacing = d
		}
	}
	return span, minSpacing
}
