package forecastcli

import (
	"time"

	"github.com/okian/trendcast/internal/domain/forecaster"
	"github.com/okian/trendcast/internal/domain/model"
)

// Config holds one CLI invocation.
type Config struct {
	Input  string // history CSV, "-" for stdin
	Output string // forecast CSV, "-" for stdout
	Future string // optional CSV of rows to predict instead of generated dates

	Periods        int
	Freq           string
	IncludeHistory bool

	// Definition is the model to fit. Regressor columns found in the input
	// are added when not already declared.
	Definition forecaster.Definition

	// Remote settings, used by submit.
	BaseURL      string
	RequestID    string
	Timeout      time.Duration
	PollInterval time.Duration

	LogFormat string
	Verbose   bool
}

// Request is what to predict once the model is fitted.
type Request struct {
	Rows           []model.Observation
	Periods        int
	Freq           string
	IncludeHistory bool
	Cap, Floor     *float64
}
