package rate

import "errors"

// ErrBackendUnavailable is returned when a remote limiter backend cannot be
// reached. The in-memory limiter never returns it.
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")
