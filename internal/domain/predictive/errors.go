package predictive

import "errors"

// Sentinel kinds for predictive errors.
var (
	ErrNoDraws      = errors.New("predictive: fitted parameters have no draws")
	ErrInvalidWidth = errors.New("predictive: interval width must be in [0, 1]")
	ErrNoPaths      = errors.New("predictive: no simulated paths")
)
