package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	fitqueue "github.com/okian/trendcast/internal/adapters/mq/queue"
	repository "github.com/okian/trendcast/internal/adapters/repository"
	service "github.com/okian/trendcast/internal/app"
	"github.com/okian/trendcast/internal/domain/forecaster"
	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/pkg/logger"
)

// ModelDependencies is what the model handlers need from the service.
type ModelDependencies interface {
	NewDefinition() forecaster.Definition
	Submit(ctx context.Context, sub service.Submission) (service.SubmitResult, error)
	Status(ctx context.Context, id string) (repository.Entry, error)
	Delete(ctx context.Context, id string) error
	Predict(ctx context.Context, id string, q service.PredictQuery) ([]model.ForecastRecord, error)
	Samples(ctx context.Context, id string, q service.PredictQuery) (*model.PredictiveDraws, error)
	FutureDates(ctx context.Context, id string, periods int, freq string, includeHistory bool) ([]time.Time, error)
}

// ModelsHandler serves the /models resource.
type ModelsHandler struct {
	deps   ModelDependencies
	logger logger.Logger
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(deps ModelDependencies) *ModelsHandler {
	return &ModelsHandler{deps: deps, logger: logger.Get().Named("api")}
}

// HandleSubmit handles POST /models.
func (h *ModelsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := readAndValidate(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	def, err := req.definition(h.deps.NewDefinition())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	history, err := toObservations(req.History)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.deps.Submit(r.Context(), service.Submission{
		RequestID:  req.RequestID,
		Definition: def,
		History:    history,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusAccepted
	if res.Duplicate {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/models/"+res.ID)
	writeJSON(w, status, modelResponse{ID: res.ID, Status: res.Status, Duplicate: res.Duplicate, Rows: len(history)})
}

// HandleGet handles GET /models/{id}.
func (h *ModelsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newModelResponse(e))
}

// HandleDelete handles DELETE /models/{id}.
func (h *ModelsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePredict handles POST /models/{id}/predict.
func (h *ModelsHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q, err := readPredictQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	recs, err := h.deps.Predict(r.Context(), id, q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forecastResponse{ID: id, Forecast: recs})
}

// HandleSamples handles POST /models/{id}/samples.
func (h *ModelsHandler) HandleSamples(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q, err := readPredictQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	draws, err := h.deps.Samples(r.Context(), id, q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, samplesResponse{ID: id, Samples: draws})
}

// HandleFuture handles GET /models/{id}/future?periods=N&freq=D&include_history=false.
func (h *ModelsHandler) HandleFuture(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	query := r.URL.Query()

	periods, err := strconv.Atoi(query.Get("periods"))
	if err != nil || periods < 0 {
		h.fail(w, r, &requestError{err: errors.New("periods must be a non-negative integer")})
		return
	}
	includeHistory := false
	if v := query.Get("include_history"); v != "" {
		if includeHistory, err = strconv.ParseBool(v); err != nil {
			h.fail(w, r, &requestError{err: errors.New("include_history must be a boolean")})
			return
		}
	}

	dates, err := h.deps.FutureDates(r.Context(), id, periods, query.Get("freq"), includeHistory)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, futureResponse{ID: id, Dates: dates})
}

func readPredictQuery(r *http.Request) (service.PredictQuery, error) {
	var req predictRequest
	if err := readAndValidate(r, &req); err != nil {
		return service.PredictQuery{}, err
	}
	if len(req.Rows) > 0 && (req.Periods > 0 || req.IncludeHistory) {
		return service.PredictQuery{}, &requestError{err: errors.New("rows and periods are exclusive")}
	}

	q := service.PredictQuery{
		Periods:        req.Periods,
		Freq:           req.Freq,
		IncludeHistory: req.IncludeHistory,
		Cap:            req.Cap,
		Floor:          req.Floor,
	}
	if len(req.Rows) > 0 {
		rows, err := toObservations(req.Rows)
		if err != nil {
			return service.PredictQuery{}, err
		}
		q.Rows = rows
	}
	return q, nil
}

// fail maps err to a status code and writes it.
func (h *ModelsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= statusInternalError {
		h.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path), logger.Error(err))
	}
	var re *requestError
	if errors.As(err, &re) && len(re.fields) > 0 {
		writeJSON(w, status, errorResponse{Code: code, Message: re.Error(), Fields: re.fields})
		return
	}
	writeError(w, status, code, err)
}

// statusFor translates the error taxonomy to HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusBadRequest, "invalid_configuration"
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "invalid_data"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrFitState):
		return http.StatusConflict, "not_ready"
	case errors.Is(err, model.ErrOptimization):
		return http.StatusUnprocessableEntity, "optimization_failed"
	case errors.Is(err, fitqueue.ErrFull), errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, fitqueue.ErrClosed), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
