package boundary

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oomph-ac/waypoint/game"
	"github.com/sasha-s/go-deadlock"
)

// DefaultColor is the debug colour given to segments added without one.
var DefaultColor = mgl32.Vec4{1, 0, 0, 1}

// Segment is a virtual wall on the horizontal plane. Start and End are (x, z) coordinates.
type Segment struct {
	Name       string
	Start, End mgl64.Vec2
	Color      mgl32.Vec4
}

// Store holds the virtual walls of a scene. It is safe for concurrent use, so an authoring tool
// may edit walls while the navigation loop is testing against them.
//
// Names are not required to be unique. Lookup and Remove act on the first segment, in insertion
// order, that carries the name.
type Store struct {
	mu       deadlock.RWMutex
	segments []Segment
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Add appends a wall from start to end. An empty name is replaced with wall_<count>, where count
// is the number of walls already stored. A zero colour is replaced with DefaultColor.
func (s *Store) Add(start, end mgl64.Vec2, name string, color mgl32.Vec4) Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		name = fmt.Sprintf("wall_%d", len(s.segments))
	}
	if color == (mgl32.Vec4{}) {
		color = DefaultColor
	}
	seg := Segment{Name: name, Start: start, End: end, Color: color}
	s.segments = append(s.segments, seg)
	return seg
}

// Load appends all segments passed, naming unnamed ones the same way Add does.
func (s *Store) Load(segments []Segment) {
	for _, seg := range segments {
		s.Add(seg.Start, seg.End, seg.Name, seg.Color)
	}
}

// Remove deletes the first segment with the name passed. It returns false if no segment has
// that name.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, seg := range s.segments {
		if seg.Name == name {
			s.segments = append(s.segments[:i], s.segments[i+1:]...)
			return true
		}
	}
	return false
}

// Lookup returns the first segment with the name passed.
func (s *Store) Lookup(name string) (Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, seg := range s.segments {
		if seg.Name == name {
			return seg, true
		}
	}
	return Segment{}, false
}

// Clear removes every segment.
func (s *Store) Clear() {
	s.mu.Lock()
	s.segments = nil
	s.mu.Unlock()
}

// Len returns the number of stored segments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}

// Segments returns a copy of the stored segments in insertion order.
func (s *Store) Segments() []Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// firstCrossed returns the first segment, in insertion order, that the planar movement from a
// to b crosses.
func (s *Store) firstCrossed(a, b mgl64.Vec2) (Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, seg := range s.segments {
		if game.SegmentsIntersect(a, b, seg.Start, seg.End) {
			return seg, true
		}
	}
	return Segment{}, false
}
