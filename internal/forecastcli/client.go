package forecastcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/trendcast/internal/domain/forecaster"
	"github.com/okian/trendcast/internal/domain/model"
	"github.com/okian/trendcast/pkg/logger"
)

// Client defaults.
const (
	defaultPollInterval = 500 * time.Millisecond
	defaultRetryAfter   = time.Second
)

// Wire types of the forecast server.
type (
	observation struct {
		DS         string             `json:"ds"`
		Y          *float64           `json:"y,omitempty"`
		Cap        *float64           `json:"cap,omitempty"`
		Floor      *float64           `json:"floor,omitempty"`
		Regressors map[string]float64 `json:"regressors,omitempty"`
	}

	submitBody struct {
		RequestID     string                             `json:"request_id,omitempty"`
		Settings      forecaster.Settings                `json:"settings"`
		Seasonalities []forecaster.SeasonalityDefinition `json:"seasonalities,omitempty"`
		Regressors    []forecaster.RegressorDefinition   `json:"regressors,omitempty"`
		History       []observation                      `json:"history"`
	}

	predictBody struct {
		Rows           []observation `json:"rows,omitempty"`
		Periods        int           `json:"periods,omitempty"`
		Freq           string        `json:"freq,omitempty"`
		IncludeHistory bool          `json:"include_history,omitempty"`
		Cap            *float64      `json:"cap,omitempty"`
		Floor          *float64      `json:"floor,omitempty"`
	}

	modelStatus struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		Duplicate bool   `json:"duplicate"`
		Error     string `json:"error"`
	}

	errorBody struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

// Client talks to a running forecast server.
type Client struct {
	baseURL string
	http    *http.Client
	poll    time.Duration
	logger  logger.Logger
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout, poll time.Duration) *Client {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		poll:    poll,
		logger:  logger.Get().Named("client"),
	}
}

func toWire(rows []model.Observation) []observation {
	out := make([]observation, len(rows))
	for i, o := range rows {
		out[i] = observation{DS: o.DS.Format(time.RFC3339Nano), Y: o.Y, Cap: o.Cap, Floor: o.Floor, Regressors: o.Regressors}
	}
	return out
}

// Submit queues a fit and returns the model id. A rate limited submission
// is retried after the server's Retry-After delay until ctx is done.
func (c *Client) Submit(ctx context.Context, requestID string, def forecaster.Definition, history []model.Observation) (string, error) {
	body := submitBody{
		RequestID:     requestID,
		Settings:      def.Settings,
		Seasonalities: def.Seasonalities,
		Regressors:    def.Regressors,
		History:       toWire(history),
	}
	for {
		var st modelStatus
		status, retryAfter, err := c.do(ctx, http.MethodPost, "/models", body, &st)
		if status == http.StatusTooManyRequests {
			c.logger.Warn(ctx, "submission rate limited", logger.Duration("retryAfter", retryAfter))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryAfter):
				continue
			}
		}
		if err != nil {
			return "", err
		}
		c.logger.Info(ctx, "model submitted", logger.String("id", st.ID), logger.Bool("duplicate", st.Duplicate))
		return st.ID, nil
	}
}

// Wait polls the model until its fit finishes.
func (c *Client) Wait(ctx context.Context, id string) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		var st modelStatus
		if _, _, err := c.do(ctx, http.MethodGet, "/models/"+id, nil, &st); err != nil {
			return err
		}
		switch st.Status {
		case "done":
			return nil
		case "failed":
			return fmt.Errorf("%w: fit failed: %s", ErrServer, st.Error)
		}
		c.logger.Debug(ctx, "waiting for fit", logger.String("id", id), logger.String("status", st.Status))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Predict forecasts with a fitted model.
func (c *Client) Predict(ctx context.Context, id string, req Request) ([]model.ForecastRecord, error) {
	body := predictBody{
		Periods:        req.Periods,
		Freq:           req.Freq,
		IncludeHistory: req.IncludeHistory,
		Cap:            req.Cap,
		Floor:          req.Floor,
	}
	if req.Rows != nil {
		body = predictBody{Rows: toWire(req.Rows)}
	}
	var out struct {
		Forecast []model.ForecastRecord `json:"forecast"`
	}
	if _, _, err := c.do(ctx, http.MethodPost, "/models/"+id+"/predict", body, &out); err != nil {
		return nil, err
	}
	return out.Forecast, nil
}

// do sends a JSON request and decodes a 2xx response into out. It returns
// the status code and, for 429, how long to wait.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, time.Duration, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, 0, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return resp.StatusCode, 0, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, 0, nil
	}

	var eb errorBody
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &eb); err != nil || eb.Message == "" {
		eb.Message = strings.TrimSpace(string(data))
	}
	retryAfter := defaultRetryAfter
	if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
		retryAfter = time.Duration(s) * time.Second
	}
	return resp.StatusCode, retryAfter, &StatusError{Status: resp.StatusCode, Code: eb.Code, Message: eb.Message}
}

// StatusError is a non-2xx server response.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap lets callers match ErrServer.
func (e *StatusError) Unwrap() error { return ErrServer }

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
