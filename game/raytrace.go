package game

import (
	"iter"

	"github.com/chewxy/math32"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"
)

// CellsBetween walks the unit grid cells crossed by the segment from start to end, in the order
// the segment enters them. The cell containing start is always yielded first, even for a
// zero-length segment.
//
// The traversal is the usual Amanatides-Woo voxel walk.
func CellsBetween(start, end mgl32.Vec3) iter.Seq[cube.Pos] {
	return func(yield func(cube.Pos) bool) {
		current := cube.PosFromVec3(start)
		if !yield(current) {
			return
		}

		delta := end.Sub(start)
		length := delta.Len()
		if length <= 0 {
			return
		}
		dir := delta.Mul(1 / length)

		var step [3]int
		var tMax, tDelta [3]float32
		for axis := 0; axis < 3; axis++ {
			step[axis] = int(SpaceshipOp(dir[axis], 0))
			tMax[axis] = distanceToCellBoundary(start[axis], dir[axis])
			if dir[axis] != 0 {
				tDelta[axis] = float32(step[axis]) / dir[axis]
			} else {
				tDelta[axis] = math32.MaxFloat32
			}
		}

		for {
			axis := 0
			if tMax[1] < tMax[axis] {
				axis = 1
			}
			if tMax[2] < tMax[axis] {
				axis = 2
			}
			if tMax[axis] > length {
				return
			}
			current[axis] += step[axis]
			tMax[axis] += tDelta[axis]
			if !yield(current) {
				return
			}
		}
	}
}

// distanceToCellBoundary returns the distance along a ray component ds, starting at s, until the
// next integer boundary is crossed.
func distanceToCellBoundary(s, ds float32) float32 {
	if ds == 0 {
		return math32.MaxFloat32
	}

	if ds < 0 {
		s = -s
		ds = -ds

		if math32.Floor(s) == s {
			return 0
		}
	}

	return (1 - (s - math32.Floor(s))) / ds
}
