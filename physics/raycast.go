package physics

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrNotReady is returned by a backend that has not yet started answering queries.
var ErrNotReady = errors.New("physics backend not ready")

// Hit is the first obstruction found along a ray.
type Hit struct {
	// Entity names the collision geometry that was hit.
	Entity string
	Point  mgl64.Vec3
}

// Raycaster casts rays against collision geometry. RaycastFirst returns the hit closest to from
// along the segment from -> to, or nil if nothing is hit.
type Raycaster interface {
	RaycastFirst(from, to mgl64.Vec3) (*Hit, error)
}
