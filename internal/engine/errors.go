package engine

import "errors"

// ErrStopped is returned for reports made after the engine stopped, and is
// delivered to reports still queued when Run gave up.
var ErrStopped = errors.New("engine stopped")
