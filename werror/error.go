package werror

import (
	"errors"
	"fmt"
)

// WaypointError is an error raised by waypoint itself, as opposed to one returned by a scene,
// physics or asset backend.
type WaypointError struct {
	err error
}

// New formats a WaypointError. A %w verb in the format keeps the wrapped error reachable through
// errors.Is and errors.As.
func New(format string, args ...any) *WaypointError {
	return &WaypointError{err: fmt.Errorf(format, args...)}
}

func (e *WaypointError) Error() string {
	return e.err.Error()
}

func (e *WaypointError) Unwrap() error {
	return errors.Unwrap(e.err)
}
