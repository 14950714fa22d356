package boundary

import (
	"github.com/elliotchance/orderedmap/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oomph-ac/waypoint/game"
)

// Arbiter blocks movement that crosses any wall in its Store. Only the horizontal plane is
// considered: a wall extends infinitely up and down.
type Arbiter struct {
	store *Store
}

// NewArbiter returns an Arbiter testing against the store passed. A nil store is replaced with
// an empty one.
func NewArbiter(store *Store) *Arbiter {
	if store == nil {
		store = NewStore()
	}
	return &Arbiter{store: store}
}

// Store returns the wall store the arbiter tests against.
func (a *Arbiter) Store() *Store {
	return a.store
}

// Blocks returns true if the movement from oldPos to newPos crosses a wall.
func (a *Arbiter) Blocks(oldPos, newPos mgl64.Vec3) bool {
	_, crossed := a.store.firstCrossed(game.Planar(oldPos), game.Planar(newPos))
	return crossed
}

// Collision returns the first wall, in insertion order, that the movement crosses.
func (a *Arbiter) Collision(oldPos, newPos mgl64.Vec3) (Segment, bool) {
	return a.store.firstCrossed(game.Planar(oldPos), game.Planar(newPos))
}

// Describe ...
func (a *Arbiter) Describe(oldPos, newPos mgl64.Vec3) (*orderedmap.OrderedMap[string, any], bool) {
	seg, ok := a.Collision(oldPos, newPos)
	if !ok {
		return nil, false
	}

	data := orderedmap.NewOrderedMap[string, any]()
	data.Set("segment", seg.Name)
	data.Set("start", seg.Start)
	data.Set("end", seg.End)
	return data, true
}
