package solver

import "errors"

// Sentinel kinds for solver errors.
var (
	ErrDimension     = errors.New("solver: initial point does not match objective dimension")
	ErrNonFinite     = errors.New("solver: non-finite result")
	ErrNotConverged  = errors.New("solver: optimization did not converge")
	ErrBadProposal   = errors.New("solver: proposal covariance is not positive definite")
	ErrInvalidDraws  = errors.New("solver: number of draws must be positive")
	ErrUnknownMethod = errors.New("solver: unknown optimization method")
)
