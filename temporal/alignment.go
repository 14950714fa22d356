package temporal

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oomph-ac/waypoint/scene"
)

// AxisCorrection returns the fixed rotation between the capture authoring convention (Z up) and
// the renderer's (Y up): -90 degrees about the X axis.
func AxisCorrection() mgl64.Mat4 {
	return mgl64.HomogRotate3DX(-math.Pi / 2)
}

// Placement is a decomposed rigid transform with scale.
type Placement struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
	Scale       mgl64.Vec3
}

// PlacementFor returns the placement of a variant root. The reference variant defines the scene's
// frame and only carries its own alignment, if any. Every other variant gets the axis correction
// applied after its alignment, even when the alignment is nil.
func PlacementFor(alignment *mgl64.Mat4, reference bool) Placement {
	m := mgl64.Ident4()
	if !reference {
		m = AxisCorrection()
	}
	if alignment != nil {
		m = m.Mul4(*alignment)
	}
	return Decompose(m)
}

// Decompose splits an affine matrix into translation, rotation and scale. Shear is discarded. A
// reflection is folded into a negative X scale.
func Decompose(m mgl64.Mat4) Placement {
	c0, c1, c2 := m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3()
	p := Placement{
		Translation: m.Col(3).Vec3(),
		Scale:       mgl64.Vec3{c0.Len(), c1.Len(), c2.Len()},
		Rotation:    mgl64.QuatIdent(),
	}
	if m.Mat3().Det() < 0 {
		p.Scale[0] = -p.Scale[0]
	}
	if p.Scale[0] == 0 || p.Scale[1] == 0 || p.Scale[2] == 0 {
		return p
	}

	rot := mgl64.Mat4FromCols(
		c0.Mul(1/p.Scale[0]).Vec4(0),
		c1.Mul(1/p.Scale[1]).Vec4(0),
		c2.Mul(1/p.Scale[2]).Vec4(0),
		mgl64.Vec4{0, 0, 0, 1},
	)
	p.Rotation = mgl64.Mat4ToQuat(rot).Normalize()
	return p
}

// Matrix recomposes the placement into a matrix.
func (p Placement) Matrix() mgl64.Mat4 {
	return mgl64.Translate3D(p.Translation.Elem()).
		Mul4(p.Rotation.Mat4()).
		Mul4(mgl64.Scale3D(p.Scale.Elem()))
}

// Apply sets the placement as the local transform of the entity.
func (p Placement) Apply(e scene.Entity) {
	e.SetLocalScale(p.Scale)
	e.SetLocalRotation(p.Rotation)
	e.SetLocalPosition(p.Translation)
}
