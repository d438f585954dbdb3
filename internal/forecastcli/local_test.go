package forecastcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/okian/trendcast/internal/domain/forecaster"
	"github.com/okian/trendcast/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func testConfig() *Config {
	s := forecaster.DefaultSettings()
	s.NChangepoints = 3
	s.UncertaintySamples = 20
	s.Seed = 11
	return &Config{
		Definition: forecaster.Definition{Settings: s},
		Periods:    7,
		Freq:       "D",
	}
}

func csvLines(out *bytes.Buffer) []string {
	return strings.Split(strings.TrimSpace(out.String()), "\n")
}

func TestRun(t *testing.T) {
	Convey("Given a daily history", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cfg := testConfig()
		history := historyCSV(60, "", nil)

		Convey("When forecasting future periods", func() {
			var out bytes.Buffer
			err := Run(ctx, cfg, strings.NewReader(history), nil, &out)

			Convey("Then one row per period follows the last date", func() {
				So(err, ShouldBeNil)
				lines := csvLines(&out)
				So(len(lines), ShouldEqual, 8)
				So(lines[0], ShouldStartWith, "ds,trend,")
				So(lines[0], ShouldContainSubstring, ",weekly,")
				So(lines[1], ShouldStartWith, day0.AddDate(0, 0, 60).Format("2006-01-02")+",")
				So(lines[7], ShouldStartWith, day0.AddDate(0, 0, 66).Format("2006-01-02")+",")
			})
		})

		Convey("When the history is included", func() {
			cfg.IncludeHistory = true
			cfg.Periods = 2
			var out bytes.Buffer

			So(Run(ctx, cfg, strings.NewReader(history), nil, &out), ShouldBeNil)
			lines := csvLines(&out)
			So(len(lines), ShouldEqual, 1+60+2)
			So(lines[1], ShouldStartWith, "2023-01-01,")
		})

		Convey("When weekly dates are requested", func() {
			cfg.Freq = "W"
			cfg.Periods = 2
			var out bytes.Buffer

			So(Run(ctx, cfg, strings.NewReader(history), nil, &out), ShouldBeNil)
			lines := csvLines(&out)
			So(lines[1], ShouldStartWith, day0.AddDate(0, 0, 66).Format("2006-01-02"))
			So(lines[2], ShouldStartWith, day0.AddDate(0, 0, 73).Format("2006-01-02"))
		})

		Convey("When the frequency is unknown", func() {
			cfg.Freq = "fortnightly"
			err := Run(ctx, cfg, strings.NewReader(history), nil, &bytes.Buffer{})

			So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
		})
	})

	Convey("Given a history with a regressor column", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cfg := testConfig()
		history := historyCSV(40, ",promo", func(i int) string { return fmt.Sprintf(",%d", i%3) })

		Convey("When no future rows are given", func() {
			err := Run(ctx, cfg, strings.NewReader(history), nil, &bytes.Buffer{})

			Convey("Then the regressor values are missing", func() {
				So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "promo")
			})
		})

		Convey("When future rows carry the regressor", func() {
			future := "ds,promo\n2023-02-10,1\n2023-02-11,0\n2023-02-12,2\n"
			var out bytes.Buffer
			err := Run(ctx, cfg, strings.NewReader(history), strings.NewReader(future), &out)

			Convey("Then those rows are forecast with the regressor component", func() {
				So(err, ShouldBeNil)
				lines := csvLines(&out)
				So(len(lines), ShouldEqual, 4)
				So(lines[0], ShouldContainSubstring, ",promo,promo_lower,promo_upper,")
				So(lines[1], ShouldStartWith, "2023-02-10,")
			})
		})
	})

	Convey("Given an invalid history", t, func() {
		err := Run(context.Background(), testConfig(), strings.NewReader("when,y\n"), nil, &bytes.Buffer{})

		So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		So(err.Error(), ShouldStartWith, "history:")
	})
}

func TestRequestHelpers(t *testing.T) {
	Convey("Given a logistic history with changing capacity", t, func() {
		rows := []model.Observation{
			{DS: day0.AddDate(0, 0, 2), Cap: model.Float(12)},
			{DS: day0, Cap: model.Float(10), Floor: model.Float(1)},
			{DS: day0.AddDate(0, 0, 1)},
		}

		Convey("Then the latest cap and floor are carried forward", func() {
			req, err := newRequest(&Config{Periods: 3, Freq: "D"}, &Table{Rows: rows}, nil)

			So(err, ShouldBeNil)
			So(*req.Cap, ShouldEqual, 12)
			So(*req.Floor, ShouldEqual, 1)
			So(req.Periods, ShouldEqual, 3)
		})

		Convey("Then an empty future file is rejected", func() {
			_, err := newRequest(&Config{}, &Table{Rows: rows}, &Table{})

			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})

	Convey("Given a definition that already declares a regressor", t, func() {
		def := forecaster.Definition{Regressors: []forecaster.RegressorDefinition{{Name: "promo", PriorScale: 2}}}
		out := definitionFor(def, &Table{Regressors: []string{"promo", "temp"}})

		Convey("Then only new columns are added", func() {
			So(out.Regressors, ShouldResemble, []forecaster.RegressorDefinition{
				{Name: "promo", PriorScale: 2},
				{Name: "temp", Standardize: "auto"},
			})
			So(len(def.Regressors), ShouldEqual, 1)
		})
	})
}
