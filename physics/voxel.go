package physics

import (
	"github.com/chewxy/math32"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oomph-ac/waypoint/game"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/atomic"
)

// maxCellsPerBox caps how many grid cells a single box is indexed into. Boxes larger than this
// are kept in an unindexed list and tested against every ray.
const maxCellsPerBox = 4096

type body struct {
	entity string
	bb     cube.BBox
}

// VoxelWorld is a Raycaster over axis-aligned collision boxes, indexed into a unit grid. A ray is
// walked cell by cell and only the boxes in the cells it crosses are tested.
//
// A VoxelWorld answers nothing until Start is called, mirroring a physics backend that is still
// booting after its geometry has been handed over.
type VoxelWorld struct {
	mu deadlock.RWMutex

	bodies map[string][]cube.BBox
	cells  map[cube.Pos][]body
	large  []body

	started atomic.Bool
}

// NewVoxelWorld returns an empty world that has not been started.
func NewVoxelWorld() *VoxelWorld {
	return &VoxelWorld{
		bodies: make(map[string][]cube.BBox),
		cells:  make(map[cube.Pos][]body),
	}
}

// Start makes the world answer raycasts.
func (w *VoxelWorld) Start() {
	w.started.Store(true)
}

// Stop makes the world refuse raycasts with ErrNotReady.
func (w *VoxelWorld) Stop() {
	w.started.Store(false)
}

// Started ...
func (w *VoxelWorld) Started() bool {
	return w.started.Load()
}

// Attach adds collision boxes for an entity, replacing any boxes the entity already had.
func (w *VoxelWorld) Attach(entity string, boxes ...cube.BBox) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.detach(entity)
	w.bodies[entity] = append([]cube.BBox(nil), boxes...)
	for _, bb := range boxes {
		w.index(body{entity: entity, bb: bb})
	}
}

// Detach removes all collision boxes of an entity.
func (w *VoxelWorld) Detach(entity string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.detach(entity)
}

// Attached returns true if the entity currently has collision boxes in the world.
func (w *VoxelWorld) Attached(entity string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.bodies[entity]
	return ok
}

func (w *VoxelWorld) index(b body) {
	min, max := cube.PosFromVec3(b.bb.Min()), cube.PosFromVec3(b.bb.Max())
	count := (max[0] - min[0] + 1) * (max[1] - min[1] + 1) * (max[2] - min[2] + 1)
	if count > maxCellsPerBox {
		w.large = append(w.large, b)
		return
	}

	for x := min[0]; x <= max[0]; x++ {
		for y := min[1]; y <= max[1]; y++ {
			for z := min[2]; z <= max[2]; z++ {
				pos := cube.Pos{x, y, z}
				w.cells[pos] = append(w.cells[pos], b)
			}
		}
	}
}

func (w *VoxelWorld) detach(entity string) {
	if _, ok := w.bodies[entity]; !ok {
		return
	}
	delete(w.bodies, entity)

	for pos, bodies := range w.cells {
		kept := bodies[:0]
		for _, b := range bodies {
			if b.entity != entity {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			delete(w.cells, pos)
		} else {
			w.cells[pos] = kept
		}
	}

	kept := w.large[:0]
	for _, b := range w.large {
		if b.entity != entity {
			kept = append(kept, b)
		}
	}
	w.large = kept
}

// RaycastFirst implements Raycaster.
func (w *VoxelWorld) RaycastFirst(from, to mgl64.Vec3) (*Hit, error) {
	if !w.started.Load() {
		return nil, ErrNotReady
	}

	start, end := game.Vec64To32(from), game.Vec64To32(to)

	w.mu.RLock()
	defer w.mu.RUnlock()

	var (
		closest     *Hit
		closestDist float32 = math32.MaxFloat32
	)
	consider := func(b body) {
		if within(b.bb, start) {
			// Rays starting inside geometry hit it immediately.
			closest, closestDist = &Hit{Entity: b.entity, Point: from}, 0
			return
		}
		res, ok := trace.BBoxIntercept(b.bb, start, end)
		if !ok {
			return
		}
		if dist := res.Position().Sub(start).Len(); dist < closestDist {
			closest, closestDist = &Hit{Entity: b.entity, Point: game.Vec32To64(res.Position())}, dist
		}
	}

	for _, b := range w.large {
		consider(b)
	}
	for pos := range game.CellsBetween(start, end) {
		for _, b := range w.cells[pos] {
			consider(b)
		}
		// Boxes are indexed into every cell they touch, so once a hit lies within a cell that has
		// already been walked no later cell can hold a closer one.
		if closest != nil && cellContains(pos, closest.Point) {
			break
		}
	}
	return closest, nil
}

func within(bb cube.BBox, v mgl32.Vec3) bool {
	min, max := bb.Min(), bb.Max()
	return v[0] > min[0] && v[0] < max[0] && v[1] > min[1] && v[1] < max[1] && v[2] > min[2] && v[2] < max[2]
}

func cellContains(pos cube.Pos, point mgl64.Vec3) bool {
	return cube.PosFromVec3(game.Vec64To32(point)) == pos
}

// Box is a convenience constructor for a collision box from 64-bit corners.
func Box(min, max mgl64.Vec3) cube.BBox {
	return cube.Box(float32(min[0]), float32(min[1]), float32(min[2]), float32(max[0]), float32(max[1]), float32(max[2]))
}

var _ Raycaster = (*VoxelWorld)(nil)
