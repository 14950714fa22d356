package assert

import "github.com/oomph-ac/waypoint/werror"

// IsTrue panics with a formatted WaypointError if ok is false. It guards invariants whose
// violation can only be a programming error.
func IsTrue(ok bool, message string, args ...any) {
	if !ok {
		panic(werror.New(message, args...))
	}
}
