package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	repository "github.com/okian/trendcast/internal/adapters/repository"
	"github.com/okian/trendcast/internal/domain/forecaster"
	"github.com/okian/trendcast/internal/domain/model"
)

// dateLayouts are tried in order when parsing ds values.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

func parseDS(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid ds %q; use RFC3339 or YYYY-MM-DD", ErrBadRequest, s)
}

// observationRequest is one input row.
type observationRequest struct {
	DS         string             `json:"ds" validate:"required"`
	Y          *float64           `json:"y"`
	Cap        *float64           `json:"cap,omitempty"`
	Floor      *float64           `json:"floor,omitempty"`
	Regressors map[string]float64 `json:"regressors,omitempty"`
}

func toObservations(in []observationRequest) ([]model.Observation, error) {
	out := make([]model.Observation, len(in))
	for i, o := range in {
		ds, err := parseDS(o.DS)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = model.Observation{DS: ds, Y: o.Y, Cap: o.Cap, Floor: o.Floor, Regressors: o.Regressors}
	}
	return out, nil
}

// submitRequest mirrors POST /models.
type submitRequest struct {
	RequestID     string                             `json:"request_id" validate:"omitempty,max=128"`
	Settings      json.RawMessage                    `json:"settings,omitempty"`
	Seasonalities []forecaster.SeasonalityDefinition `json:"seasonalities,omitempty" validate:"dive"`
	Regressors    []forecaster.RegressorDefinition   `json:"regressors,omitempty" validate:"dive"`
	History       []observationRequest               `json:"history" validate:"required,min=2,dive"`
}

// definition overlays the request settings on base.
func (r submitRequest) definition(base forecaster.Definition) (forecaster.Definition, error) {
	def := base
	if len(r.Settings) > 0 {
		dec := json.NewDecoder(bytes.NewReader(r.Settings))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def.Settings); err != nil {
			return forecaster.Definition{}, fmt.Errorf("%w: settings: %w", ErrBadRequest, err)
		}
	}
	def.Seasonalities = r.Seasonalities
	def.Regressors = r.Regressors
	return def, nil
}

// predictRequest mirrors POST /models/{id}/predict and /samples. Rows and
// periods are exclusive; an empty request predicts the history.
type predictRequest struct {
	Rows           []observationRequest `json:"rows,omitempty" validate:"omitempty,dive"`
	Periods        int                  `json:"periods" validate:"gte=0,lte=100000"`
	Freq           string               `json:"freq" default:"D"`
	IncludeHistory bool                 `json:"include_history"`
	Cap            *float64             `json:"cap,omitempty"`
	Floor          *float64             `json:"floor,omitempty"`
}

type modelResponse struct {
	ID           string                 `json:"id"`
	Status       repository.Status      `json:"status"`
	Duplicate    bool                   `json:"duplicate,omitempty"`
	Rows         int                    `json:"rows,omitempty"`
	Error        string                 `json:"error,omitempty"`
	CreatedAt    *time.Time             `json:"created_at,omitempty"`
	UpdatedAt    *time.Time             `json:"updated_at,omitempty"`
	Definition   *forecaster.Definition `json:"definition,omitempty"`
	Changepoints []time.Time            `json:"changepoints,omitempty"`
	Components   []string               `json:"components,omitempty"`
}

func newModelResponse(e repository.Entry) modelResponse {
	out := modelResponse{
		ID:        e.ID,
		Status:    e.Status,
		Rows:      e.Rows,
		Error:     e.Err,
		CreatedAt: &e.CreatedAt,
		UpdatedAt: &e.UpdatedAt,
	}
	// a fit in progress holds the model lock
	if e.Model == nil || !e.Status.Terminal() {
		return out
	}
	def := e.Model.Definition()
	out.Definition = &def
	if cps, err := e.Model.Changepoints(); err == nil {
		out.Changepoints = cps
	}
	if comps, err := e.Model.Seasonalities(); err == nil {
		for _, c := range comps {
			out.Components = append(out.Components, c.Name)
		}
	}
	if regs, err := e.Model.Regressors(); err == nil {
		for _, r := range regs {
			out.Components = append(out.Components, r.Name)
		}
	}
	return out
}

type forecastResponse struct {
	ID       string                 `json:"id"`
	Forecast []model.ForecastRecord `json:"forecast"`
}

type samplesResponse struct {
	ID      string                 `json:"id"`
	Samples *model.PredictiveDraws `json:"samples"`
}

type futureResponse struct {
	ID    string      `json:"id"`
	Dates []time.Time `json:"dates"`
}

type errorResponse struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []fieldError `json:"fields,omitempty"`
}
