package forecastcli

import (
	"context"
	"fmt"
	"io"
)

// Submit sends history to the server, waits for the fit and writes the
// forecast of the requested rows to out. future may be nil.
func Submit(ctx context.Context, cfg *Config, history, future io.Reader, out io.Writer) error {
	t, err := ReadCSV(history)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	var ft *Table
	if future != nil {
		if ft, err = ReadCSV(future); err != nil {
			return fmt.Errorf("future: %w", err)
		}
	}
	req, err := newRequest(cfg, t, ft)
	if err != nil {
		return err
	}

	c := NewClient(cfg.BaseURL, cfg.Timeout, cfg.PollInterval)
	id, err := c.Submit(ctx, cfg.RequestID, definitionFor(cfg.Definition, t), t.Rows)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := c.Wait(ctx, id); err != nil {
		return fmt.Errorf("model %s: %w", id, err)
	}
	records, err := c.Predict(ctx, id, req)
	if err != nil {
		return fmt.Errorf("predict %s: %w", id, err)
	}
	return WriteCSV(out, records)
}
