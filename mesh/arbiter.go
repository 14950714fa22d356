package mesh

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oomph-ac/waypoint/frame"
	"github.com/oomph-ac/waypoint/game"
	"github.com/oomph-ac/waypoint/physics"
	"github.com/oomph-ac/waypoint/scene"
	"github.com/oomph-ac/waypoint/werror"
	"github.com/oomph-ac/waypoint/worker"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// probeFrom and probeTo form the trivial ray cast to check that the physics backend answers. The
// result is irrelevant, only whether the call succeeds.
var (
	probeFrom = mgl64.Vec3{0, 0, 0}
	probeTo   = mgl64.Vec3{0, -1, 0}
)

// Options configure an Arbiter.
type Options struct {
	// ClearanceRadius is the distance to geometry below which a move is blocked.
	ClearanceRadius float64
	// ProbeDelays are the delays, from the mesh finishing its load, at which the backend is probed.
	// Each delay is measured from the mesh load, not from the previous probe.
	ProbeDelays []time.Duration
	// Debug shows the collision mesh once it is loaded.
	Debug bool
}

// DefaultOptions returns the default arbiter options.
func DefaultOptions() Options {
	return Options{
		ClearanceRadius: game.DefaultClearanceRadius,
		ProbeDelays:     append([]time.Duration(nil), game.DefaultProbeDelays...),
	}
}

// Arbiter blocks movement that would bring the viewer closer than the clearance radius to the
// collision mesh. It is a safety net, not a guarantee: whenever the mesh or the physics backend
// is unavailable, or a ray cast fails, movement is allowed.
type Arbiter struct {
	log   logrus.FieldLogger
	ray   physics.Raycaster
	clock frame.TimeProvider
	opts  Options

	enabled      atomic.Bool
	meshLoaded   atomic.Bool
	physicsReady atomic.Bool
	debug        atomic.Bool

	meshMu deadlock.Mutex
	mesh   scene.Entity
}

// NewArbiter returns a disabled Arbiter casting rays through the Raycaster passed. A nil logger
// discards output and a nil clock uses the system time.
func NewArbiter(log logrus.FieldLogger, ray physics.Raycaster, clock frame.TimeProvider, opts Options) *Arbiter {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if clock == nil {
		clock = frame.SystemTime{}
	}
	if opts.ClearanceRadius <= 0 {
		opts.ClearanceRadius = game.DefaultClearanceRadius
	}
	if opts.ProbeDelays == nil {
		opts.ProbeDelays = append([]time.Duration(nil), game.DefaultProbeDelays...)
	}

	a := &Arbiter{log: log, ray: ray, clock: clock, opts: opts}
	a.debug.Store(opts.Debug)
	return a
}

// Enabled returns true if mesh collision is currently enforced.
func (a *Arbiter) Enabled() bool {
	return a.enabled.Load()
}

// SetEnabled turns mesh collision on or off. Enabling has no effect on Blocks until the mesh is
// loaded and the backend has been confirmed ready.
func (a *Arbiter) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
}

// MeshLoaded returns true once the collision mesh has loaded.
func (a *Arbiter) MeshLoaded() bool {
	return a.meshLoaded.Load()
}

// PhysicsReady returns true once a probe ray cast has succeeded.
func (a *Arbiter) PhysicsReady() bool {
	return a.physicsReady.Load()
}

// ClearanceRadius ...
func (a *Arbiter) ClearanceRadius() float64 {
	return a.opts.ClearanceRadius
}

// LoadMesh loads the collision mesh through the loader, attaches its collision geometry and
// schedules the readiness handshake on the worker pool. Load failures are returned and leave the
// arbiter disabled.
func (a *Arbiter) LoadMesh(ctx context.Context, loader scene.Loader, desc scene.Descriptor) error {
	desc.Kind = scene.KindCollisionMesh
	e, err := loader.Load(ctx, desc)
	if err != nil {
		a.log.WithField("path", desc.Path).Errorf("collision mesh failed to load: %v", err)
		return werror.New("load collision mesh: %w", err)
	}
	a.AttachMesh(e)

	handshakeCtx := context.WithoutCancel(ctx)
	worker.Submit(func() {
		a.Handshake(handshakeCtx)
	})
	return nil
}

// AttachMesh marks an already loaded entity as the collision mesh. The handshake must be run
// separately.
func (a *Arbiter) AttachMesh(e scene.Entity) {
	e.SetCollidable(true)
	e.SetEnabled(a.debug.Load())

	a.meshMu.Lock()
	a.mesh = e
	a.meshMu.Unlock()
	a.meshLoaded.Store(true)
}

// SetDebug shows or hides the collision mesh. It does not affect collision testing.
func (a *Arbiter) SetDebug(visible bool) {
	a.debug.Store(visible)

	a.meshMu.Lock()
	defer a.meshMu.Unlock()
	if a.mesh != nil {
		a.mesh.SetEnabled(visible)
	}
}

// Debug ...
func (a *Arbiter) Debug() bool {
	return a.debug.Load()
}

// Handshake confirms that the physics backend answers ray casts, probing once at each configured
// delay. The first successful probe enables collision and returns true. There are no retries
// beyond the configured delays.
func (a *Arbiter) Handshake(ctx context.Context) bool {
	if a.physicsReady.Load() {
		return true
	}

	start := a.clock.Now()
	for attempt, delay := range a.opts.ProbeDelays {
		if wait := start.Add(delay).Sub(a.clock.Now()); wait > 0 {
			select {
			case <-a.clock.After(wait):
			case <-ctx.Done():
				return false
			}
		}

		if err := a.probe(); err != nil {
			a.log.WithField("attempt", attempt+1).Warnf("physics backend not ready: %v", err)
			continue
		}
		a.physicsReady.Store(true)
		a.enabled.Store(true)
		a.log.WithField("attempt", attempt+1).Info("mesh collision enabled")
		return true
	}
	a.log.Warnf("mesh collision stays disabled after %d probes", len(a.opts.ProbeDelays))
	return false
}

func (a *Arbiter) probe() (err error) {
	if a.ray == nil {
		return werror.New("no raycaster")
	}
	defer func() {
		if v := recover(); v != nil {
			err = werror.New("probe panicked: %v", v)
		}
	}()
	_, err = a.ray.RaycastFirst(probeFrom, probeTo)
	return err
}

// active returns true if the arbiter is in a state where it may block movement.
func (a *Arbiter) active() bool {
	return a.enabled.Load() && a.meshLoaded.Load() && a.physicsReady.Load() && a.ray != nil
}

// Blocks returns true if the movement from oldPos to newPos hits the collision mesh within the
// clearance radius of oldPos.
func (a *Arbiter) Blocks(oldPos, newPos mgl64.Vec3) bool {
	_, dist, ok := a.nearestHit(oldPos, newPos)
	return ok && dist < a.opts.ClearanceRadius
}

// Describe ...
func (a *Arbiter) Describe(oldPos, newPos mgl64.Vec3) (*orderedmap.OrderedMap[string, any], bool) {
	hit, dist, ok := a.nearestHit(oldPos, newPos)
	if !ok || dist >= a.opts.ClearanceRadius {
		return nil, false
	}

	data := orderedmap.NewOrderedMap[string, any]()
	data.Set("entity", hit.Entity)
	data.Set("point", hit.Point)
	data.Set("distance", fmt.Sprintf("%.3f", dist))
	data.Set("clearance", a.opts.ClearanceRadius)
	return data, true
}

func (a *Arbiter) nearestHit(oldPos, newPos mgl64.Vec3) (hit *physics.Hit, dist float64, ok bool) {
	if !a.active() || oldPos == newPos {
		return nil, 0, false
	}

	defer func() {
		if v := recover(); v != nil {
			a.log.Errorf("raycast panicked, allowing movement: %v", v)
			hit, dist, ok = nil, 0, false
		}
	}()

	hit, err := a.ray.RaycastFirst(oldPos, newPos)
	if err != nil {
		a.log.Errorf("raycast failed, allowing movement: %v", err)
		return nil, 0, false
	}
	if hit == nil {
		return nil, 0, false
	}
	return hit, hit.Point.Sub(oldPos).Len(), true
}
