package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("fit queue is full")
	ErrClosed = errors.New("fit queue is closed")
)
