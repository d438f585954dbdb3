// Package repository keeps submitted models and the state of their fits.
package repository

import (
	"context"
	"time"

	"github.com/okian/trendcast/internal/domain/forecaster"
)

// Status is the lifecycle state of a submitted model.
type Status string

// Fit job states.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the fit has finished either way.
func (s Status) Terminal() bool { return s == StatusDone || s == StatusFailed }

// Entry is one submitted model.
type Entry struct {
	ID        string
	Status    Status
	Model     *forecaster.Model
	Rows      int
	Err       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store provides read/write access to submitted models.
type Store interface {
	// Create adds a pending entry. Returns ErrExists when the id is taken.
	Create(ctx context.Context, e Entry) error

	// Get returns the entry for id or ErrNotFound.
	Get(ctx context.Context, id string) (Entry, error)

	// MarkRunning, MarkDone and MarkFailed move an entry through its fit.
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error) error

	// Delete removes an entry. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) int

	// CountByStatus returns the number of entries per status.
	CountByStatus(ctx context.Context) map[Status]int
}
