package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound          = errors.New("model not found")
	ErrExists            = errors.New("model already exists")
	ErrInvalidSize       = errors.New("store size must be positive")
	ErrInvalidTransition = errors.New("invalid status transition")
)
