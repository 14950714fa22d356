package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// Float64ApproxEq determines whether two floating point numbers are close enough to each other
// by a threshold of 1e-9.
func Float64ApproxEq(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

// ClampFloat clamps the given value to the given range.
func ClampFloat(num, min, max float64) float64 {
	if num < min {
		return min
	}
	return math.Min(num, max)
}

// Vec32To64 converts a 32-bit vector to a 64-bit one.
func Vec32To64(vec3 mgl32.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(vec3[0]), float64(vec3[1]), float64(vec3[2])}
}

// Vec64To32 converts a 64-bit vector to a 32-bit one.
func Vec64To32(vec3 mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(vec3[0]), float32(vec3[1]), float32(vec3[2])}
}

// Planar projects a position onto the horizontal (x, z) plane. Height is discarded.
func Planar(pos mgl64.Vec3) mgl64.Vec2 {
	return mgl64.Vec2{pos.X(), pos.Z()}
}

// FlattenHorizontal zeroes the vertical component of the vector and renormalizes it. A vector
// pointing straight up or down flattens to the zero vector.
func FlattenHorizontal(vec3 mgl64.Vec3) mgl64.Vec3 {
	flat := mgl64.Vec3{vec3.X(), 0, vec3.Z()}
	if flat.LenSqr() <= 1e-12 {
		return mgl64.Vec3{}
	}
	return flat.Normalize()
}

// DirectionVector returns a direction vector from the given yaw and pitch values, in degrees.
// A yaw and pitch of zero looks down the negative Z axis.
func DirectionVector(yaw, pitch float64) mgl64.Vec3 {
	yawRad, pitchRad := mgl64.DegToRad(yaw), mgl64.DegToRad(pitch)
	m := math.Cos(pitchRad)

	return mgl64.Vec3{
		-m * math.Sin(yawRad),
		math.Sin(pitchRad),
		-m * math.Cos(yawRad),
	}
}

// RightVector returns the horizontal vector pointing to the right of the given yaw, in degrees.
func RightVector(yaw float64) mgl64.Vec3 {
	yawRad := mgl64.DegToRad(yaw)
	return mgl64.Vec3{math.Cos(yawRad), 0, -math.Sin(yawRad)}
}

// WrapYaw wraps a yaw angle into the range (-180, 180].
func WrapYaw(yaw float64) float64 {
	yaw = math.Mod(yaw, 360)
	if yaw > 180 {
		yaw -= 360
	} else if yaw <= -180 {
		yaw += 360
	}
	return yaw
}

// SpaceshipOp returns -1 if x < y, 0 if x == y, or 1 if x > y
func SpaceshipOp(x, y float32) float32 {
	if x < y {
		return -1
	} else if x == y {
		return 0
	}

	return 1
}
