package temporal

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oomph-ac/waypoint/werror"
)

// Variant is one capture of the scene, taken at a particular time.
type Variant struct {
	ID     string
	Label  string
	Source string
	// Alignment maps the variant's coordinate space onto the reference variant's. Nil means the
	// variant is already aligned.
	Alignment *mgl64.Mat4
}

// AlignmentFromSlice builds an alignment matrix from 16 column-major values. An empty slice
// yields a nil alignment.
func AlignmentFromSlice(values []float64) (*mgl64.Mat4, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if len(values) != 16 {
		return nil, werror.New("alignment must have 16 values, got %d", len(values))
	}
	var m mgl64.Mat4
	copy(m[:], values)
	return &m, nil
}

// LoadState is the load state of a variant.
type LoadState uint8

const (
	StateUnloaded LoadState = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "error"
	default:
		return "unknown"
	}
}
