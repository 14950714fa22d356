package navigation

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestHistoryWrapsAround(t *testing.T) {
	h := NewHistory(3)
	if _, ok := h.Latest(); ok {
		t.Fatalf("empty history should have no latest pose")
	}
	for i := int64(1); i <= 5; i++ {
		h.Add(HistoricalPosition{Frame: i, Position: mgl64.Vec3{float64(i), 0, 0}})
	}
	if h.Len() != 3 || h.Capacity() != 3 {
		t.Fatalf("expected 3/3, got %d/%d", h.Len(), h.Capacity())
	}
	if _, ok := h.Get(2); ok {
		t.Fatalf("frame 2 should have been evicted")
	}
	if p, ok := h.Get(4); !ok || p.Position.X() != 4 {
		t.Fatalf("expected frame 4, got %+v", p)
	}
	if p, _ := h.Latest(); p.Frame != 5 {
		t.Fatalf("expected latest frame 5, got %d", p.Frame)
	}
}

func TestHistoryClosestAndRange(t *testing.T) {
	h := NewHistory(10)
	for _, f := range []int64{10, 20, 30} {
		h.Add(HistoricalPosition{Frame: f})
	}
	if p, _ := h.Closest(24); p.Frame != 20 {
		t.Fatalf("expected closest frame 20, got %d", p.Frame)
	}
	r := h.Range(15, 30)
	if len(r) != 2 || r[0].Frame != 30 || r[1].Frame != 20 {
		t.Fatalf("unexpected range %+v", r)
	}
	h.Clear()
	if h.Len() != 0 || h.Range(0, 100) != nil {
		t.Fatalf("clear should empty the history")
	}
}
