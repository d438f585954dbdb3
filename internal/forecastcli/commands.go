// Package forecastcli implements the forecast command line tool: fitting a
// CSV history locally or through a running server and writing the forecast
// as CSV.
package forecastcli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/okian/trendcast/internal/domain/forecaster"
	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/pkg/logger"
	"github.com/spf13/cobra"
)

// CLI defaults.
const (
	defaultBaseURL = "http://localhost:9080"
	defaultTimeout = 30 * time.Second
	defaultPeriods = 30
	stdio          = "-"
)

// NewRootCommand builds the forecast command tree.
func NewRootCommand() *cobra.Command {
	cfg := &Config{Definition: forecaster.Definition{Settings: forecaster.DefaultSettings()}}

	root := &cobra.Command{
		Use:   "forecast",
		Short: "Fit time-series forecasts from CSV files",
		Long: `Fits an additive trend + seasonality model to a CSV history with columns
ds,y[,cap,floor,<regressors>] and writes the forecast as CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupLogging(cfg.LogFormat, cfg.Verbose, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	root.PersistentFlags().BoolVar(&cfg.Verbose, "verbose", false, "Enable debug logging")

	root.AddCommand(runCmd(cfg), submitCmd(cfg))
	return root
}

func runCmd(cfg *Config) *cobra.Command {
	var mf modelFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fit the history locally and write the forecast",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := mf.apply(&cfg.Definition); err != nil {
				return err
			}
			return withFiles(cmd, cfg, func(history, future io.Reader, out io.Writer) error {
				return Run(cmd.Context(), cfg, history, future, out)
			})
		},
	}
	ioFlags(cmd, cfg)
	mf.register(cmd, &cfg.Definition.Settings)
	return cmd
}

func submitCmd(cfg *Config) *cobra.Command {
	var mf modelFlags
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Fit the history on a running server and write the forecast",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := mf.apply(&cfg.Definition); err != nil {
				return err
			}
			return withFiles(cmd, cfg, func(history, future io.Reader, out io.Writer) error {
				return Submit(cmd.Context(), cfg, history, future, out)
			})
		},
	}
	ioFlags(cmd, cfg)
	mf.register(cmd, &cfg.Definition.Settings)
	cmd.Flags().StringVar(&cfg.BaseURL, "url", defaultBaseURL, "Base URL of the forecast server")
	cmd.Flags().StringVar(&cfg.RequestID, "request-id", "", "Idempotency key for the submission")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	cmd.Flags().DurationVar(&cfg.PollInterval, "poll-interval", defaultPollInterval, "Status poll interval")
	return cmd
}

func ioFlags(cmd *cobra.Command, cfg *Config) {
	cmd.Flags().StringVarP(&cfg.Input, "input", "i", stdio, "History CSV (- for stdin)")
	cmd.Flags().StringVarP(&cfg.Output, "output", "o", stdio, "Forecast CSV (- for stdout)")
	cmd.Flags().StringVar(&cfg.Future, "future", "", "CSV of rows to predict instead of generated dates")
	cmd.Flags().IntVarP(&cfg.Periods, "periods", "p", defaultPeriods, "Number of future periods")
	cmd.Flags().StringVar(&cfg.Freq, "freq", "D", "Future date frequency: H, D, W, M, Y or a duration")
	cmd.Flags().BoolVar(&cfg.IncludeHistory, "include-history", false, "Also predict the history dates")
}

// withFiles opens the configured files and closes them after fn.
func withFiles(cmd *cobra.Command, cfg *Config, fn func(history, future io.Reader, out io.Writer) error) error {
	history := cmd.InOrStdin()
	if cfg.Input != stdio {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		history = f
	}

	var future io.Reader
	if cfg.Future != "" {
		f, err := os.Open(cfg.Future)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		future = f
	}

	if cfg.Output == stdio {
		return fn(history, future, cmd.OutOrStdout())
	}
	f, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	if err := fn(history, future, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// modelFlags holds the flags that do not map onto a Settings field directly.
type modelFlags struct {
	changepoints  []string
	seasonalities []string
}

func (f *modelFlags) register(cmd *cobra.Command, s *forecaster.Settings) {
	fs := cmd.Flags()
	fs.StringVar(&s.Growth, "growth", s.Growth, "Trend: linear or logistic (needs cap)")
	fs.IntVar(&s.NChangepoints, "n-changepoints", s.NChangepoints, "Number of automatic changepoints")
	fs.Float64Var(&s.ChangepointRange, "changepoint-range", s.ChangepointRange, "History fraction eligible for changepoints")
	fs.StringSliceVar(&f.changepoints, "changepoints", nil, "Explicit changepoint dates")
	fs.StringVar(&s.YearlySeasonality, "yearly", s.YearlySeasonality, "Yearly seasonality: auto, true, false or a Fourier order")
	fs.StringVar(&s.WeeklySeasonality, "weekly", s.WeeklySeasonality, "Weekly seasonality: auto, true, false or a Fourier order")
	fs.StringVar(&s.DailySeasonality, "daily", s.DailySeasonality, "Daily seasonality: auto, true, false or a Fourier order")
	fs.StringArrayVar(&f.seasonalities, "seasonality", nil, "Custom seasonality name:period_days:fourier_order[:prior_scale]")
	fs.Float64Var(&s.SeasonalityPriorScale, "seasonality-prior-scale", s.SeasonalityPriorScale, "Seasonality prior scale")
	fs.Float64Var(&s.ChangepointPriorScale, "changepoint-prior-scale", s.ChangepointPriorScale, "Changepoint prior scale")
	fs.IntVar(&s.MCMCSamples, "mcmc-samples", s.MCMCSamples, "Posterior draws; 0 fits the MAP estimate")
	fs.Float64Var(&s.IntervalWidth, "interval-width", s.IntervalWidth, "Uncertainty interval width")
	fs.IntVar(&s.UncertaintySamples, "uncertainty-samples", s.UncertaintySamples, "Simulated paths for intervals")
	fs.Uint64Var(&s.Seed, "seed", s.Seed, "Random seed")
	fs.IntVar(&s.MaxIterations, "max-iterations", s.MaxIterations, "Optimizer iteration cap")
}

func (f *modelFlags) apply(def *forecaster.Definition) error {
	if len(f.changepoints) > 0 {
		def.Settings.Changepoints = def.Settings.Changepoints[:0]
		for _, s := range f.changepoints {
			t, err := parseDS(s)
			if err != nil {
				return fmt.Errorf("--changepoints: %w", err)
			}
			def.Settings.Changepoints = append(def.Settings.Changepoints, t)
		}
	}
	for _, s := range f.seasonalities {
		sd, err := parseSeasonality(s)
		if err != nil {
			return err
		}
		def.Seasonalities = append(def.Seasonalities, sd)
	}
	return def.Settings.Validate()
}

func parseSeasonality(s string) (forecaster.SeasonalityDefinition, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return forecaster.SeasonalityDefinition{}, fmt.Errorf("%w: --seasonality %q: want name:period_days:fourier_order[:prior_scale]", model.ErrConfiguration, s)
	}
	sd := forecaster.SeasonalityDefinition{Name: parts[0]}
	var err error
	if sd.PeriodDays, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return sd, fmt.Errorf("%w: --seasonality %q: period: %w", model.ErrConfiguration, s, err)
	}
	if sd.FourierOrder, err = strconv.Atoi(parts[2]); err != nil {
		return sd, fmt.Errorf("%w: --seasonality %q: order: %w", model.ErrConfiguration, s, err)
	}
	if len(parts) == 4 {
		if sd.PriorScale, err = strconv.ParseFloat(parts[3], 64); err != nil {
			return sd, fmt.Errorf("%w: --seasonality %q: prior scale: %w", model.ErrConfiguration, s, err)
		}
	}
	return sd, nil
}

// SetupLogging initializes the global logger on w. Verbose enables debug.
func SetupLogging(format string, verbose bool, w io.Writer) error {
	if err := logger.InitWith(logger.Options{Format: logger.Format(format), Writer: w}); err != nil {
		return err
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}
