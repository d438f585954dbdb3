package model

import "errors"

// Error taxonomy shared by every domain package. Callers wrap one of these
// with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	// ErrConfiguration covers invalid settings and components.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation covers bad input data.
	ErrValidation = errors.New("validation error")
	// ErrFitState covers calls made in the wrong model lifecycle state.
	ErrFitState = errors.New("fit state error")
	// ErrOptimization is returned when both optimizer attempts fail.
	ErrOptimization = errors.New("optimization failure")
)
