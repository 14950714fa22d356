package boundary

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

func TestArbiterBlocksCrossing(t *testing.T) {
	a := NewArbiter(nil)
	a.Store().Add(mgl64.Vec2{0, 0}, mgl64.Vec2{10, 0}, "w1", mgl32.Vec4{})

	// Height is ignored: the wall stops movement at any y.
	if !a.Blocks(mgl64.Vec3{5, 40, -1}, mgl64.Vec3{5, 40, 1}) {
		t.Fatalf("expected movement across w1 to be blocked")
	}
	if a.Blocks(mgl64.Vec3{5, 0, 1}, mgl64.Vec3{5, 0, 3}) {
		t.Fatalf("expected movement beside w1 to be allowed")
	}
}

func TestArbiterAfterRemove(t *testing.T) {
	a := NewArbiter(NewStore())
	a.Store().Add(mgl64.Vec2{0, 0}, mgl64.Vec2{10, 0}, "w1", mgl32.Vec4{})
	a.Store().Remove("w1")

	if _, ok := a.Store().Lookup("w1"); ok {
		t.Fatalf("expected w1 to be gone")
	}
	if a.Blocks(mgl64.Vec3{5, 0, -1}, mgl64.Vec3{5, 0, 1}) {
		t.Fatalf("expected movement across the removed wall to be allowed")
	}
}

func TestArbiterDescribeReportsFirstInsertion(t *testing.T) {
	a := NewArbiter(nil)
	a.Store().Add(mgl64.Vec2{0, 0}, mgl64.Vec2{10, 0}, "first", mgl32.Vec4{})
	a.Store().Add(mgl64.Vec2{0, 0.5}, mgl64.Vec2{10, 0.5}, "second", mgl32.Vec4{})

	seg, ok := a.Collision(mgl64.Vec3{5, 0, 2}, mgl64.Vec3{5, 0, -2})
	if !ok || seg.Name != "first" {
		t.Fatalf("expected first inserted wall, got %+v", seg)
	}

	data, ok := a.Describe(mgl64.Vec3{5, 0, 2}, mgl64.Vec3{5, 0, -2})
	if !ok {
		t.Fatalf("expected a description")
	}
	if name, _ := data.Get("segment"); name != "first" {
		t.Fatalf("expected segment name in diagnostics, got %v", name)
	}
	if _, ok := a.Describe(mgl64.Vec3{20, 0, 2}, mgl64.Vec3{20, 0, -2}); ok {
		t.Fatalf("expected no description for a free move")
	}
}
