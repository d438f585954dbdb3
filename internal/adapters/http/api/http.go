// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"
)

const defaultMaxBodyBytes = 32 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ModelDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	modelsHandler *ModelsHandler

	submitLimiter *rate.Limiter
	maxBodyBytes  int64
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithSubmitRateLimit limits POST /models to perSecond with burst. A
// non-positive rate disables limiting.
func WithSubmitRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.submitLimiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.submitLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		modelsHandler: NewModelsHandler(deps),
		maxBodyBytes:  defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	m := s.modelsHandler
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /models", MetricsMiddleware(RateLimit(s.submitLimiter, s.limitBody(m.HandleSubmit)), "submit"))
	mux.HandleFunc("GET /models/{id}", MetricsMiddleware(m.HandleGet, "model"))
	mux.HandleFunc("DELETE /models/{id}", MetricsMiddleware(m.HandleDelete, "model"))
	mux.HandleFunc("POST /models/{id}/predict", MetricsMiddleware(s.limitBody(m.HandlePredict), "predict"))
	mux.HandleFunc("POST /models/{id}/samples", MetricsMiddleware(s.limitBody(m.HandleSamples), "samples"))
	mux.HandleFunc("GET /models/{id}/future", MetricsMiddleware(m.HandleFuture, "future"))
}

func (s *Server) limitBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
