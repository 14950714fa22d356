package virtual

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ethaniccc/float32-cube/cube"
	"github.com/oomph-ac/waypoint/frame"
	"github.com/oomph-ac/waypoint/physics"
	"github.com/oomph-ac/waypoint/scene"
	"github.com/oomph-ac/waypoint/werror"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
	"go.uber.org/atomic"
)

// Asset is a registered asset: the collision boxes of its geometry in local space. A capture
// with no boxes is purely visual.
type Asset struct {
	Boxes []cube.BBox
}

// Graph is an in-memory scene graph and asset loader. Collidable nodes feed their boxes, in world
// space, into a physics.VoxelWorld so that raycasts see whatever the scene currently exposes.
type Graph struct {
	log   logrus.FieldLogger
	world *physics.VoxelWorld
	clock frame.TimeProvider

	// Latency delays every load, as a streaming asset pipeline would.
	Latency time.Duration

	mu       deadlock.RWMutex
	assets   map[string]Asset
	failures map[string]error
	gates    map[string]chan struct{}
	nodes    map[string]*Node
	loads    map[string]*atomic.Int64
}

// NewGraph returns an empty graph feeding the world passed. A nil logger discards output and a
// nil clock uses the system time.
func NewGraph(log logrus.FieldLogger, world *physics.VoxelWorld, clock frame.TimeProvider) *Graph {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if clock == nil {
		clock = frame.SystemTime{}
	}
	if world == nil {
		world = physics.NewVoxelWorld()
	}
	return &Graph{
		log:      log,
		world:    world,
		clock:    clock,
		assets:   make(map[string]Asset),
		failures: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		nodes:    make(map[string]*Node),
		loads:    make(map[string]*atomic.Int64),
	}
}

// World returns the physics world the graph feeds.
func (g *Graph) World() *physics.VoxelWorld {
	return g.world
}

// Register makes an asset available at the path passed.
func (g *Graph) Register(path string, asset Asset) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assets[path] = asset
	delete(g.failures, path)
}

// Fail makes every subsequent load of the path fail with err. A nil err clears the failure.
func (g *Graph) Fail(path string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, path)
		return
	}
	g.failures[path] = err
}

// Hold makes loads of the path block until the returned release function is called. Release
// may be called more than once.
func (g *Graph) Hold(path string) (release func()) {
	ch := make(chan struct{})
	g.mu.Lock()
	g.gates[path] = ch
	g.mu.Unlock()

	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			g.mu.Lock()
			if g.gates[path] == ch {
				delete(g.gates, path)
			}
			g.mu.Unlock()
			close(ch)
		}
	}
}

// Loads returns how many load requests reached the graph for the path.
func (g *Graph) Loads(path string) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if c, ok := g.loads[path]; ok {
		return c.Load()
	}
	return 0
}

// Node returns the node with the name passed.
func (g *Graph) Node(name string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[name]
	return n, ok
}

// Load implements scene.Loader.
func (g *Graph) Load(ctx context.Context, desc scene.Descriptor) (scene.Entity, error) {
	g.mu.Lock()
	counter, ok := g.loads[desc.Path]
	if !ok {
		counter = atomic.NewInt64(0)
		g.loads[desc.Path] = counter
	}
	gate := g.gates[desc.Path]
	g.mu.Unlock()
	counter.Inc()

	g.log.WithField("path", desc.Path).Debugf("loading %s", desc.Kind)
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.Latency > 0 {
		select {
		case <-g.clock.After(g.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.failures[desc.Path]; err != nil {
		return nil, werror.New("load %s %q: %w", desc.Kind, desc.Path, err)
	}
	asset, ok := g.assets[desc.Path]
	if !ok {
		return nil, werror.New("load %s %q: asset not found", desc.Kind, desc.Path)
	}

	name := desc.Name
	if name == "" {
		name = desc.Path
	}
	if _, exists := g.nodes[name]; exists {
		name = fmt.Sprintf("%s#%x", name, xxh3.HashString(name+desc.Path)&0xffff)
	}
	n := newNode(g, xxh3.HashString(desc.Path), name, asset.Boxes)
	g.nodes[name] = n
	return n, nil
}

var _ scene.Loader = (*Graph)(nil)
