package seasonality

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/trendcast/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func dates(start time.Time, step time.Duration, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * step)
	}
	return out
}

func names(cs []Component) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestParseSetting(t *testing.T) {
	Convey("Given seasonality settings as text", t, func() {
		cases := map[string]Setting{
			"auto":  Auto,
			"":      Auto,
			"true":  {Enabled: true},
			"False": {},
			"6":     {Enabled: true, Order: 6},
			"0":     {},
		}
		for in, want := range cases {
			got, err := ParseSetting(in)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, want)
		}

		_, err := ParseSetting("-2")
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
		_, err = ParseSetting("sometimes")
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)

		So(Auto.String(), ShouldEqual, "auto")
		So(Setting{Enabled: true, Order: 6}.String(), ShouldEqual, "6")
		So(Setting{Enabled: true}.String(), ShouldEqual, "true")
		So(Setting{}.String(), ShouldEqual, "false")
	})
}

func TestResolveAuto(t *testing.T) {
	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	Convey("Given the auto rule", t, func() {
		Convey("When three years of daily data are supplied", func() {
			got, _, err := Resolve(nil, nil, dates(start, day, 3*365), 10)

			Convey("Then yearly and weekly are enabled but not daily", func() {
				So(err, ShouldBeNil)
				So(names(got), ShouldResemble, []string{"yearly", "weekly"})
				So(got[0].FourierOrder, ShouldEqual, 10)
				So(got[1].FourierOrder, ShouldEqual, 3)
				So(got[0].PriorScale, ShouldEqual, 10)
			})
		})

		Convey("When three weeks of hourly data are supplied", func() {
			got, _, err := Resolve(nil, nil, dates(start, time.Hour, 21*24), 10)

			Convey("Then weekly and daily are enabled", func() {
				So(err, ShouldBeNil)
				So(names(got), ShouldResemble, []string{"weekly", "daily"})
				So(got[1].FourierOrder, ShouldEqual, 4)
			})
		})

		Convey("When a long history is only weekly", func() {
			got, notes, err := Resolve(nil, nil, dates(start, 7*day, 200), 10)

			Convey("Then weekly is disabled because spacing is not below a week", func() {
				So(err, ShouldBeNil)
				So(names(got), ShouldResemble, []string{"yearly"})
				So(len(notes), ShouldEqual, 2)
			})
		})

		Convey("When five daily points are supplied", func() {
			got, _, err := Resolve(nil, nil, dates(start, day, 5), 10)

			Convey("Then nothing is enabled", func() {
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})
	})

	Convey("Given explicit settings", t, func() {
		short := dates(start, day, 5)
		settings := map[string]Setting{"yearly": {Enabled: true, Order: 2}, "weekly": {Enabled: true}, "daily": {}}
		got, _, err := Resolve(nil, settings, short, 3)

		Convey("Then they override the auto rule", func() {
			So(err, ShouldBeNil)
			So(names(got), ShouldResemble, []string{"yearly", "weekly"})
			So(got[0].FourierOrder, ShouldEqual, 2)
			So(got[1].FourierOrder, ShouldEqual, 3)
			So(got[1].PriorScale, ShouldEqual, 3)
		})
	})

	Convey("Given a custom seasonality named like a built-in", t, func() {
		custom := []Component{
			{Name: "monthly", Period: 30.5, FourierOrder: 5, PriorScale: 1},
			{Name: "weekly", Period: 7, FourierOrder: 8, PriorScale: 2},
		}
		got, _, err := Resolve(custom, map[string]Setting{"weekly": {Enabled: true}}, dates(start, day, 3*365), 10)

		Convey("Then customs come first and the built-in is replaced", func() {
			So(err, ShouldBeNil)
			So(names(got), ShouldResemble, []string{"monthly", "weekly", "yearly"})
			So(got[1].FourierOrder, ShouldEqual, 8)
		})
	})

	Convey("Given an invalid custom seasonality", t, func() {
		_, _, err := Resolve([]Component{{Name: "bad", Period: 0, FourierOrder: 1, PriorScale: 1}}, nil, nil, 10)
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
	})
}

func TestFourierSeries(t *testing.T) {
	Convey("Given the weekly basis", t, func() {
		epoch := time.Unix(0, 0).UTC()
		x := FourierSeries([]time.Time{epoch, epoch.Add(7 * 24 * time.Hour), epoch.Add(42 * time.Hour)}, 7, 2)

		Convey("Then columns alternate sin and cos per harmonic", func() {
			r, c := x.Dims()
			So(r, ShouldEqual, 3)
			So(c, ShouldEqual, 4)
			So(x.At(0, 0), ShouldAlmostEqual, 0)
			So(x.At(0, 1), ShouldAlmostEqual, 1)
			So(x.At(1, 0), ShouldAlmostEqual, 0, 1e-9)
			So(x.At(1, 3), ShouldAlmostEqual, 1, 1e-9)

			phase := 2 * math.Pi * 1.75 / 7
			So(x.At(2, 0), ShouldAlmostEqual, math.Sin(phase), 1e-12)
			So(x.At(2, 2), ShouldAlmostEqual, math.Sin(2*phase), 1e-12)
			So(x.At(2, 3), ShouldAlmostEqual, math.Cos(2*phase), 1e-12)
		})
	})
}

func TestBuild(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	ds := dates(start, 24*time.Hour, 4)

	Convey("Given seasonalities and a regressor", t, func() {
		comps := []Component{
			{Name: "weekly", Period: 7, FourierOrder: 2, PriorScale: 10},
			{Name: "monthly", Period: 30.5, FourierOrder: 1, PriorScale: 5},
		}
		reg := Regressor{Name: "temp", PriorScale: 3, Standardize: StandardizeTrue}.Fit([]float64{10, 20, 30, 40})
		f, err := Build(ds, comps, []Regressor{reg}, map[string][]float64{"temp": {10, 20, 30, 40}})

		Convey("Then columns are ordered and named deterministically", func() {
			So(err, ShouldBeNil)
			So(f.Columns, ShouldResemble, []string{"weekly#1", "weekly#2", "weekly#3", "weekly#4", "monthly#1", "monthly#2", "temp"})
			So(f.PriorScales, ShouldResemble, []float64{10, 10, 10, 10, 5, 5, 3})
			So(f.Order, ShouldResemble, []string{"weekly", "monthly", "temp"})
			So(f.Width(), ShouldEqual, 7)
		})

		Convey("Then components and groups map back to columns", func() {
			So(f.Components["weekly"], ShouldResemble, []int{0, 1, 2, 3})
			So(f.Components["monthly"], ShouldResemble, []int{4, 5})
			So(f.Components[GroupSeasonalities], ShouldResemble, []int{0, 1, 2, 3, 4, 5})
			So(f.Components[GroupExtraRegressors], ShouldResemble, []int{6})
		})

		Convey("Then the regressor column is standardized", func() {
			So(f.X.At(0, 6), ShouldAlmostEqual, (10-25)/reg.Std)
			So(f.X.At(3, 6), ShouldAlmostEqual, (40-25)/reg.Std)
		})

		Convey("Then a component contribution is the dot product of its columns", func() {
			beta := []float64{1, 0, 0, 0, 0, 0, 2}
			got := Contribution(f.X, f.Components["temp"], beta)
			So(got[0], ShouldAlmostEqual, 2*f.X.At(0, 6))
			weekly := Contribution(f.X, f.Components["weekly"], beta)
			So(weekly[1], ShouldAlmostEqual, f.X.At(1, 0))
		})
	})

	Convey("Given no seasonality and no regressor", t, func() {
		f, err := Build(ds, nil, nil, nil)

		Convey("Then a single zero column with unit prior is used", func() {
			So(err, ShouldBeNil)
			So(f.Columns, ShouldResemble, []string{"zeros"})
			So(f.PriorScales, ShouldResemble, []float64{1})
			r, c := f.X.Dims()
			So(r, ShouldEqual, 4)
			So(c, ShouldEqual, 1)
			So(f.X.At(2, 0), ShouldEqual, 0)
		})
	})

	Convey("Given a regressor without values", t, func() {
		_, err := Build(ds, nil, []Regressor{{Name: "temp", PriorScale: 1}}, nil)
		So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
	})
}

func TestRegressorStandardization(t *testing.T) {
	Convey("Given regressors in auto mode", t, func() {
		Convey("When the column is binary", func() {
			r := Regressor{Name: "promo", Standardize: StandardizeAuto}.Fit([]float64{0, 1, 1, 0})
			So(r.Mu, ShouldEqual, 0)
			So(r.Std, ShouldEqual, 1)
		})

		Convey("When the column is constant", func() {
			r := Regressor{Name: "c", Standardize: StandardizeAuto}.Fit([]float64{3, 3, 3})
			So(r.Mu, ShouldEqual, 0)
			So(r.Std, ShouldEqual, 1)
		})

		Convey("When the column is continuous", func() {
			r := Regressor{Name: "temp", Standardize: StandardizeAuto}.Fit([]float64{1, 2, 3})
			So(r.Mu, ShouldAlmostEqual, 2)
			So(r.Std, ShouldAlmostEqual, 1)
			So(r.Apply([]float64{3}), ShouldResemble, []float64{1})
		})
	})

	Convey("Given forced standardization of a constant column", t, func() {
		r := Regressor{Name: "c", Standardize: StandardizeTrue}.Fit([]float64{4, 4})
		So(r.Mu, ShouldEqual, 4)
		So(r.Std, ShouldEqual, 4)

		z := Regressor{Name: "z", Standardize: StandardizeTrue}.Fit([]float64{0, 0})
		So(z.Std, ShouldEqual, 1)
	})

	Convey("Given standardization modes as text", t, func() {
		m, err := ParseStandardize("")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, StandardizeAuto)
		m, err = ParseStandardize("FALSE")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, StandardizeFalse)
		_, err = ParseStandardize("maybe")
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
	})
}

func TestValidateName(t *testing.T) {
	Convey("Given component names", t, func() {
		So(ValidateName("monthly", true), ShouldBeNil)
		So(ValidateName("weekly", true), ShouldBeNil)
		So(errors.Is(ValidateName("weekly", false), model.ErrConfiguration), ShouldBeTrue)
		So(errors.Is(ValidateName("trend", true), model.ErrConfiguration), ShouldBeTrue)
		So(errors.Is(ValidateName("yhat_upper", false), model.ErrConfiguration), ShouldBeTrue)
		So(errors.Is(ValidateName("cap", false), model.ErrConfiguration), ShouldBeTrue)
		So(errors.Is(ValidateName("a#b", true), model.ErrConfiguration), ShouldBeTrue)
		So(errors.Is(ValidateName("", true), model.ErrConfiguration), ShouldBeTrue)
	})
}
