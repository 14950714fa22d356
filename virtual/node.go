package virtual

import (
	"github.com/chewxy/math32"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oomph-ac/waypoint/game"
	"github.com/oomph-ac/waypoint/scene"
	"github.com/sasha-s/go-deadlock"
)

// Node is an entity in a Graph. New nodes are disabled and not collidable.
type Node struct {
	g     *Graph
	id    uint64
	name  string
	boxes []cube.BBox

	mu         deadlock.RWMutex
	pos, scale mgl64.Vec3
	rot        mgl64.Quat
	enabled    bool
	collidable bool
}

func newNode(g *Graph, id uint64, name string, boxes []cube.BBox) *Node {
	return &Node{
		g:     g,
		id:    id,
		name:  name,
		boxes: boxes,
		scale: mgl64.Vec3{1, 1, 1},
		rot:   mgl64.QuatIdent(),
	}
}

// ID returns a stable id derived from the asset path the node was loaded from.
func (n *Node) ID() uint64 {
	return n.id
}

// Name ...
func (n *Node) Name() string {
	return n.name
}

// SetLocalPosition ...
func (n *Node) SetLocalPosition(pos mgl64.Vec3) {
	n.mu.Lock()
	n.pos = pos
	n.mu.Unlock()
	n.refreshCollision()
}

// SetLocalRotation ...
func (n *Node) SetLocalRotation(rot mgl64.Quat) {
	n.mu.Lock()
	n.rot = rot
	n.mu.Unlock()
	n.refreshCollision()
}

// SetLocalScale ...
func (n *Node) SetLocalScale(scale mgl64.Vec3) {
	n.mu.Lock()
	n.scale = scale
	n.mu.Unlock()
	n.refreshCollision()
}

// LocalPosition ...
func (n *Node) LocalPosition() mgl64.Vec3 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pos
}

// LocalRotation ...
func (n *Node) LocalRotation() mgl64.Quat {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.rot
}

// LocalScale ...
func (n *Node) LocalScale() mgl64.Vec3 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.scale
}

// SetEnabled ...
func (n *Node) SetEnabled(enabled bool) {
	n.mu.Lock()
	n.enabled = enabled
	n.mu.Unlock()
}

// Enabled ...
func (n *Node) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// SetCollidable attaches the node's boxes to the physics world, or detaches them.
func (n *Node) SetCollidable(collidable bool) {
	n.mu.Lock()
	n.collidable = collidable
	n.mu.Unlock()
	n.refreshCollision()
}

// Collidable ...
func (n *Node) Collidable() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.collidable
}

// WorldBoxes returns the node's collision boxes transformed into world space.
func (n *Node) WorldBoxes() []cube.BBox {
	m := scene.WorldTransform(n)
	out := make([]cube.BBox, 0, len(n.boxes))
	for _, bb := range n.boxes {
		out = append(out, transformBox(bb, m))
	}
	return out
}

func (n *Node) refreshCollision() {
	if len(n.boxes) == 0 {
		return
	}
	if !n.Collidable() {
		n.g.world.Detach(n.name)
		return
	}
	n.g.world.Attach(n.name, n.WorldBoxes()...)
}

// transformBox returns the axis-aligned box enclosing bb after transformation by m.
func transformBox(bb cube.BBox, m mgl64.Mat4) cube.BBox {
	lo, hi := bb.Min(), bb.Max()
	min := mgl32.Vec3{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32}
	max := mgl32.Vec3{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32}
	for i := 0; i < 8; i++ {
		corner := mgl32.Vec3{lo[0], lo[1], lo[2]}
		if i&1 != 0 {
			corner[0] = hi[0]
		}
		if i&2 != 0 {
			corner[1] = hi[1]
		}
		if i&4 != 0 {
			corner[2] = hi[2]
		}
		p := game.Vec64To32(mgl64.TransformCoordinate(game.Vec32To64(corner), m))
		for axis := 0; axis < 3; axis++ {
			min[axis] = math32.Min(min[axis], p[axis])
			max[axis] = math32.Max(max[axis], p[axis])
		}
	}
	return cube.Box(min[0], min[1], min[2], max[0], max[1], max[2])
}

var _ scene.Entity = (*Node)(nil)
