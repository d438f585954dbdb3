package forecastcli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/trendcast/internal/domain/forecaster"
	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func execute(args ...string) (string, string, error) {
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCommands(t *testing.T) {
	defer func() { _ = logger.Init() }()

	Convey("Given a history file", t, func() {
		dir := t.TempDir()
		input := filepath.Join(dir, "history.csv")
		So(os.WriteFile(input, []byte(historyCSV(45, "", nil)), 0o600), ShouldBeNil)
		fast := []string{"--n-changepoints", "3", "--uncertainty-samples", "10", "--seed", "3"}

		Convey("When run writes to stdout", func() {
			stdout, _, err := execute(append([]string{"run", "-i", input, "-p", "3"}, fast...)...)

			Convey("Then the forecast is printed", func() {
				So(err, ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(stdout), "\n")
				So(len(lines), ShouldEqual, 4)
				So(lines[1], ShouldStartWith, day0.AddDate(0, 0, 45).Format("2006-01-02"))
			})
		})

		Convey("When run writes to a file with a custom seasonality", func() {
			output := filepath.Join(dir, "forecast.csv")
			_, _, err := execute(append([]string{
				"run", "-i", input, "-o", output, "-p", "2",
				"--seasonality", "monthly:30.5:3", "--log-format", "json",
			}, fast...)...)
			So(err, ShouldBeNil)

			data, err := os.ReadFile(output)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, ",monthly,monthly_lower,monthly_upper,")
		})

		Convey("When the input is read from stdin", func() {
			root := NewRootCommand()
			var stdout bytes.Buffer
			root.SetIn(strings.NewReader(historyCSV(30, "", nil)))
			root.SetOut(&stdout)
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(append([]string{"run", "-p", "1"}, fast...))

			So(root.Execute(), ShouldBeNil)
			So(strings.Count(stdout.String(), "\n"), ShouldEqual, 2)
		})

		Convey("When a model flag is invalid", func() {
			_, _, err := execute("run", "-i", input, "--growth", "cubic")

			So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When the input file does not exist", func() {
			_, _, err := execute("run", "-i", filepath.Join(dir, "missing.csv"))

			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})

		Convey("When the log format is unknown", func() {
			_, _, err := execute("run", "-i", input, "--log-format", "xml")

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unknown log format")
		})
	})
}

func TestModelFlags(t *testing.T) {
	Convey("Given custom seasonality flags", t, func() {
		cases := []struct {
			in   string
			want forecaster.SeasonalityDefinition
			ok   bool
		}{
			{"monthly:30.5:5", forecaster.SeasonalityDefinition{Name: "monthly", PeriodDays: 30.5, FourierOrder: 5}, true},
			{"q:91.25:2:0.5", forecaster.SeasonalityDefinition{Name: "q", PeriodDays: 91.25, FourierOrder: 2, PriorScale: 0.5}, true},
			{"monthly:30.5", forecaster.SeasonalityDefinition{}, false},
			{"monthly:x:5", forecaster.SeasonalityDefinition{}, false},
			{"monthly:30:five", forecaster.SeasonalityDefinition{}, false},
			{"a:1:2:3:4", forecaster.SeasonalityDefinition{}, false},
		}
		for _, tc := range cases {
			Convey("When parsing "+tc.in, func() {
				got, err := parseSeasonality(tc.in)
				if tc.ok {
					So(err, ShouldBeNil)
					So(got, ShouldResemble, tc.want)
				} else {
					So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
				}
			})
		}
	})

	Convey("Given explicit changepoint flags", t, func() {
		def := forecaster.Definition{Settings: forecaster.DefaultSettings()}
		mf := modelFlags{changepoints: []string{"2023-01-10", "2023-01-20"}}

		So(mf.apply(&def), ShouldBeNil)
		So(def.Settings.Changepoints, ShouldResemble, []time.Time{day0.AddDate(0, 0, 9), day0.AddDate(0, 0, 19)})

		Convey("When a date is malformed", func() {
			bad := modelFlags{changepoints: []string{"soon"}}

			So(errors.Is(bad.apply(&def), model.ErrValidation), ShouldBeTrue)
		})
	})
}
