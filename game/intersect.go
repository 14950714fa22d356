package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ParallelEpsilon is the denominator magnitude below which two segments are treated as parallel.
const ParallelEpsilon = 1e-4

// SegmentsIntersect reports whether the finite segments p1p2 and p3p4 intersect. Coordinates are
// horizontal (x, z) pairs.
//
// Parallel and nearly parallel segments never intersect, even when they are collinear and
// overlap. Zero-length segments are parallel to everything and so never intersect either.
func SegmentsIntersect(p1, p2, p3, p4 mgl64.Vec2) bool {
	x1, y1 := p1.X(), p1.Y()
	x2, y2 := p2.X(), p2.Y()
	x3, y3 := p3.X(), p3.Y()
	x4, y4 := p4.X(), p4.Y()

	d := (x1-x2)*(y3-y4) - (y1-y2)*(x3-x4)
	if math.Abs(d) < ParallelEpsilon {
		return false
	}

	t := ((x1-x3)*(y3-y4) - (y1-y3)*(x3-x4)) / d
	u := -((x1-x2)*(y1-y3) - (y1-y2)*(x1-x3)) / d
	return t >= 0 && t <= 1 && u >= 0 && u <= 1
}
