package scene

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind is the kind of asset a Descriptor refers to.
type Kind uint8

const (
	// KindCapture is a renderable capture of the scene, one per time variant.
	KindCapture Kind = iota
	// KindCollisionMesh is invisible geometry used only for raycasts.
	KindCollisionMesh
)

func (k Kind) String() string {
	switch k {
	case KindCapture:
		return "capture"
	case KindCollisionMesh:
		return "collision mesh"
	default:
		return "unknown"
	}
}

// Descriptor identifies an asset to load.
type Descriptor struct {
	Name string
	Path string
	Kind Kind
}

// Entity is a node in the renderer's scene graph.
type Entity interface {
	// Name returns the name of the entity, unique within its scene graph.
	Name() string

	SetLocalPosition(pos mgl64.Vec3)
	SetLocalRotation(rot mgl64.Quat)
	SetLocalScale(scale mgl64.Vec3)
	LocalPosition() mgl64.Vec3
	LocalRotation() mgl64.Quat
	LocalScale() mgl64.Vec3

	// SetEnabled shows or hides the entity.
	SetEnabled(enabled bool)
	Enabled() bool
	// SetCollidable attaches or detaches the entity's collision geometry.
	SetCollidable(collidable bool)
	Collidable() bool
}

// Loader loads assets and instantiates them into the scene graph. Load blocks until the asset
// signals ready or error.
type Loader interface {
	Load(ctx context.Context, desc Descriptor) (Entity, error)
}

// WorldTransform returns the local transform of an entity as a matrix, applying scale, then
// rotation, then translation.
func WorldTransform(e Entity) mgl64.Mat4 {
	s := e.LocalScale()
	return mgl64.Translate3D(e.LocalPosition().Elem()).
		Mul4(e.LocalRotation().Normalize().Mat4()).
		Mul4(mgl64.Scale3D(s.Elem()))
}
