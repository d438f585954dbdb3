package seasonality

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

const secondsPerDay = 86400

// epochDays returns days since the Unix epoch.
func epochDays(d time.Time) float64 {
	return float64(d.Unix())/secondsPerDay + float64(d.Nanosecond())/(secondsPerDay*1e9)
}

// FourierSeries returns a len(dates) x 2*order matrix whose columns are
// sin(2*pi*i*t/period), cos(2*pi*i*t/period) for i = 1..order, with t in
// days since the Unix epoch.
func FourierSeries(dates []time.Time, period float64, order int) *mat.Dense {
	out := mat.NewDense(len(dates), 2*order, nil)
	for r, d := range dates {
		x := 2 * math.Pi * epochDays(d) / period
		for i := 1; i <= order; i++ {
			s, c := math.Sincos(float64(i) * x)
			out.Set(r, 2*(i-1), s)
			out.Set(r, 2*(i-1)+1, c)
		}
	}
	return out
}
