package forecastcli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/trendcast/internal/domain/model"
)

// Reserved CSV columns. Every other column is a regressor.
const (
	colDS    = "ds"
	colY     = "y"
	colCap   = "cap"
	colFloor = "floor"
)

// dateLayouts are tried in order when parsing ds values.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// Table is a parsed input file.
type Table struct {
	Rows       []model.Observation
	Regressors []string // regressor columns in file order
}

func parseDS(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid ds %q", model.ErrValidation, s)
}

func parseOptional(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "na") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadCSV parses a headed CSV with a ds column and optional y, cap, floor
// and regressor columns. Empty y, cap and floor cells are left unset.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty csv", model.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrValidation, err)
	}

	idx := map[string]int{}
	t := &Table{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", model.ErrValidation, name)
		}
		idx[name] = i
		switch name {
		case colDS, colY, colCap, colFloor:
		default:
			t.Regressors = append(t.Regressors, name)
		}
	}
	dsCol, ok := idx[colDS]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q column", model.ErrValidation, colDS)
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrValidation, err)
		}

		ds, err := parseDS(rec[dsCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		o := model.Observation{DS: ds}
		for _, f := range []struct {
			col string
			dst **float64
		}{{colY, &o.Y}, {colCap, &o.Cap}, {colFloor, &o.Floor}} {
			i, ok := idx[f.col]
			if !ok {
				continue
			}
			if *f.dst, err = parseOptional(rec[i]); err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %w", model.ErrValidation, line, f.col, err)
			}
		}
		if len(t.Regressors) > 0 {
			o.Regressors = make(map[string]float64, len(t.Regressors))
			for _, name := range t.Regressors {
				v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[name]]), 64)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %s: %w", model.ErrValidation, line, name, err)
				}
				o.Regressors[name] = v
			}
		}
		t.Rows = append(t.Rows, o)
	}
	return t, nil
}

// WriteCSV writes records as ds, trend, seasonal, each component and yhat,
// every value followed by its _lower and _upper bounds.
func WriteCSV(w io.Writer, records []model.ForecastRecord) error {
	var components []string
	if len(records) > 0 {
		for name := range records[0].Components {
			components = append(components, name)
		}
		sort.Strings(components)
	}

	header := []string{colDS}
	for _, name := range append(append([]string{"trend", "seasonal"}, components...), "yhat") {
		header = append(header, name, name+"_lower", name+"_upper")
	}

	dateOnly := true
	for _, r := range records {
		if !r.DS.Equal(r.DS.Truncate(24 * time.Hour)) {
			dateOnly = false
			break
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, r := range records {
		row = row[:0]
		if dateOnly {
			row = append(row, r.DS.Format("2006-01-02"))
		} else {
			row = append(row, r.DS.Format(time.RFC3339))
		}
		row = appendInterval(row, model.Interval{Value: r.Trend, Lower: r.TrendLower, Upper: r.TrendUpper})
		row = appendInterval(row, model.Interval{Value: r.Seasonal, Lower: r.SeasonalLower, Upper: r.SeasonalUpper})
		for _, name := range components {
			row = appendInterval(row, r.Components[name])
		}
		row = appendInterval(row, model.Interval{Value: r.YHat, Lower: r.YHatLower, Upper: r.YHatUpper})
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func appendInterval(row []string, v model.Interval) []string {
	return append(row,
		strconv.FormatFloat(v.Value, 'g', -1, 64),
		strconv.FormatFloat(v.Lower, 'g', -1, 64),
		strconv.FormatFloat(v.Upper, 'g', -1, 64),
	)
}
