package forecastcli

import "errors"

// ErrServer marks failures reported by the forecast server.
var ErrServer = errors.New("forecast server error")
