package interp

import "errors"

// Error categories. Errors returned by this package wrap one of these,
// test them with errors.Is.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrDecode            = errors.New("decode error")
	ErrSinkUnavailable   = errors.New("sink unavailable")
	ErrSinkWrite         = errors.New("sink write error")
	ErrShapeMismatch     = errors.New("shape mismatch")
	ErrEstimationFailure = errors.New("motion estimation failure")
	ErrDegradedQuality   = errors.New("degraded quality")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrTranscode         = errors.New("transcode error")
)
