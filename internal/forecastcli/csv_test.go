package forecastcli

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

var day0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// historyCSV renders n daily rows of a trending weekly series. extra adds
// columns: a header suffix and a per-row suffix.
func historyCSV(n int, header string, row func(i int) string) string {
	var b strings.Builder
	b.WriteString("ds,y" + header + "\n")
	for i := 0; i < n; i++ {
		y := 20 + 0.3*float64(i) + 2*math.Sin(2*math.Pi*float64(i)/7)
		fmt.Fprintf(&b, "%s,%.4f", day0.AddDate(0, 0, i).Format("2006-01-02"), y)
		if row != nil {
			b.WriteString(row(i))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func TestReadCSV(t *testing.T) {
	Convey("Given a CSV with every column kind", t, func() {
		in := "ds, y, cap, floor, promo\n" +
			"2023-01-01,1.5,10,0,1\n" +
			"2023-01-02 06:00:00,,10,0,0\n" +
			"2023-01-03T00:00:00Z,NaN,,,2.5\n"

		table, err := ReadCSV(strings.NewReader(in))

		Convey("Then every row is parsed", func() {
			So(err, ShouldBeNil)
			So(table.Regressors, ShouldResemble, []string{"promo"})
			So(len(table.Rows), ShouldEqual, 3)

			first := table.Rows[0]
			So(first.DS, ShouldEqual, day0)
			So(*first.Y, ShouldEqual, 1.5)
			So(*first.Cap, ShouldEqual, 10)
			So(*first.Floor, ShouldEqual, 0)
			So(first.Regressors["promo"], ShouldEqual, 1)

			So(table.Rows[1].DS, ShouldEqual, day0.Add(30*time.Hour))
			So(table.Rows[1].Y, ShouldBeNil)
			So(table.Rows[2].Y, ShouldBeNil)
			So(table.Rows[2].Cap, ShouldBeNil)
			So(table.Rows[2].Regressors["promo"], ShouldEqual, 2.5)
		})
	})

	Convey("Given invalid CSV input", t, func() {
		cases := []struct {
			name, in, contains string
		}{
			{"empty input", "", "empty csv"},
			{"missing ds", "y\n1\n", `missing "ds"`},
			{"duplicate column", "ds,y,y\n2023-01-01,1,1\n", "duplicate column"},
			{"bad date", "ds,y\n2023-01-01,1\nyesterday,2\n", "line 3"},
			{"bad value", "ds,y\n2023-01-01,abc\n", "y"},
			{"bad regressor", "ds,y,promo\n2023-01-01,1,\n", "promo"},
			{"ragged row", "ds,y\n2023-01-01,1,7\n", "wrong number of fields"},
		}
		for _, tc := range cases {
			Convey("When the input has "+tc.name, func() {
				_, err := ReadCSV(strings.NewReader(tc.in))

				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, tc.contains)
			})
		}
	})
}

func TestWriteCSV(t *testing.T) {
	Convey("Given forecast records with named components", t, func() {
		records := []model.ForecastRecord{
			{
				DS:    day0,
				Trend: 1, TrendLower: 0.5, TrendUpper: 1.5,
				Seasonal: 0.25, SeasonalLower: 0.25, SeasonalUpper: 0.25,
				Components: map[string]model.Interval{
					"weekly": {Value: 0.25, Lower: 0.2, Upper: 0.3},
					"promo":  {Value: 0, Lower: 0, Upper: 0},
				},
				YHat: 1.25, YHatLower: 0.75, YHatUpper: 1.75,
			},
		}

		var out bytes.Buffer
		So(WriteCSV(&out, records), ShouldBeNil)
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")

		Convey("Then the header lists sorted components between seasonal and yhat", func() {
			So(lines[0], ShouldEqual, "ds,trend,trend_lower,trend_upper,seasonal,seasonal_lower,seasonal_upper,"+
				"promo,promo_lower,promo_upper,weekly,weekly_lower,weekly_upper,yhat,yhat_lower,yhat_upper")
		})

		Convey("Then daily timestamps are written as dates", func() {
			So(lines[1], ShouldEqual, "2023-01-01,1,0.5,1.5,0.25,0.25,0.25,0,0,0,0.25,0.2,0.3,1.25,0.75,1.75")
		})

		Convey("When a timestamp has a time of day", func() {
			records[0].DS = day0.Add(90 * time.Minute)
			out.Reset()
			So(WriteCSV(&out, records), ShouldBeNil)

			So(out.String(), ShouldContainSubstring, "2023-01-01T01:30:00Z,")
		})
	})

	Convey("Given no records", t, func() {
		var out bytes.Buffer
		So(WriteCSV(&out, nil), ShouldBeNil)
		So(out.String(), ShouldEqual, "ds,trend,trend_lower,trend_upper,seasonal,seasonal_lower,seasonal_upper,yhat,yhat_lower,yhat_upper\n")
	})
}
