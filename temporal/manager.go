package temporal

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/oomph-ac/waypoint/assert"
	"github.com/oomph-ac/waypoint/frame"
	"github.com/oomph-ac/waypoint/game"
	"github.com/oomph-ac/waypoint/scene"
	"github.com/oomph-ac/waypoint/werror"
	"github.com/oomph-ac/waypoint/worker"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnknownVariant is returned for a variant id that was not configured.
	ErrUnknownVariant = errors.New("unknown variant")
	// ErrTransitionLocked is returned when a switch is requested while another one is in flight
	// or cooling down. The request is dropped, not queued.
	ErrTransitionLocked = errors.New("variant transition in progress")
	// ErrNotInitialized is returned when switching before Initialize.
	ErrNotInitialized = errors.New("temporal manager not initialized")
)

// Options configure a Manager.
type Options struct {
	// Variants in declaration order. Cycle moves through them in this order.
	Variants []Variant
	// DefaultID is the variant loaded by Initialize. Empty means the first variant.
	DefaultID string
	// Cooldown is how long the transition lock stays held after a switch finishes. Zero disables
	// the cooldown and a negative value selects game.DefaultSwitchCooldown.
	Cooldown time.Duration
	// HandoffFrames is the number of frames both variants stay visible during a switch.
	HandoffFrames int
}

type slot struct {
	variant Variant
	state   LoadState
	handle  scene.Entity
	err     error
}

// Manager owns the time variants of a scene: their load state, their alignment, which one is
// active, and the protocol for switching between them.
//
// Only one variant is visible and collidable at a time once Initialize returns. Variants are
// loaded at most once, on first use, and never reloaded; switching only toggles visibility.
type Manager struct {
	log    logrus.FieldLogger
	loader scene.Loader
	frames frame.Waiter
	clock  frame.TimeProvider
	opts   Options

	slots *orderedmap.OrderedMap[string, *slot]
	loads singleflight.Group

	active atomic.String

	initMu deadlock.Mutex

	// mu guards the slots' mutable fields and the transition lock.
	mu            deadlock.Mutex
	locked        bool
	cooldownUntil time.Time

	hMu deadlock.RWMutex
	h   Handler
}

// NewManager validates the options and returns a Manager. Nothing is loaded until Initialize.
func NewManager(log logrus.FieldLogger, loader scene.Loader, frames frame.Waiter, clock frame.TimeProvider, opts Options) (*Manager, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if clock == nil {
		clock = frame.SystemTime{}
	}
	if loader == nil {
		return nil, werror.New("temporal manager needs an asset loader")
	}
	if frames == nil {
		return nil, werror.New("temporal manager needs a frame waiter")
	}
	if len(opts.Variants) == 0 {
		return nil, werror.New("temporal manager needs at least one variant")
	}
	if opts.Cooldown < 0 {
		opts.Cooldown = game.DefaultSwitchCooldown
	}
	if opts.HandoffFrames <= 0 {
		opts.HandoffFrames = game.HandoffFrames
	}

	slots := orderedmap.NewOrderedMap[string, *slot]()
	for _, v := range opts.Variants {
		if v.ID == "" {
			return nil, werror.New("variant with source %q has no id", v.Source)
		}
		if _, ok := slots.Get(v.ID); ok {
			return nil, werror.New("duplicate variant id %q", v.ID)
		}
		slots.Set(v.ID, &slot{variant: v})
	}
	if opts.DefaultID == "" {
		opts.DefaultID = opts.Variants[0].ID
	}
	if _, ok := slots.Get(opts.DefaultID); !ok {
		return nil, werror.New("default variant %q: %w", opts.DefaultID, ErrUnknownVariant)
	}

	return &Manager{
		log:    log,
		loader: loader,
		frames: frames,
		clock:  clock,
		opts:   opts,
		slots:  slots,
		h:      NopHandler{},
	}, nil
}

// SetHandler sets the handler notified of state changes. A nil handler resets it.
func (m *Manager) SetHandler(h Handler) {
	if h == nil {
		h = NopHandler{}
	}
	m.hMu.Lock()
	m.h = h
	m.hMu.Unlock()
}

func (m *Manager) handler() Handler {
	m.hMu.RLock()
	defer m.hMu.RUnlock()
	return m.h
}

// Initialize loads the default variant and makes it active. Other variants are not loaded. It is
// safe to call more than once, also concurrently: every call returns the active variant's handle
// and the handler is notified once.
func (m *Manager) Initialize(ctx context.Context) (scene.Entity, error) {
	if id := m.active.Load(); id != "" {
		h, _ := m.Handle(id)
		return h, nil
	}

	// Concurrent calls share one load.
	e, err := m.Load(ctx, m.opts.DefaultID)
	if err != nil {
		return nil, err
	}

	m.initMu.Lock()
	if id := m.active.Load(); id != "" {
		m.initMu.Unlock()
		return e, nil
	}
	e.SetEnabled(true)
	e.SetCollidable(true)
	m.active.Store(m.opts.DefaultID)
	m.initMu.Unlock()

	def, _ := m.slots.Get(m.opts.DefaultID)
	m.log.WithField("variant", m.opts.DefaultID).Info("temporal manager initialized")
	m.handler().HandleInitialize(m.Variants(), def.variant)
	return e, nil
}

// Load returns the scene handle of a variant, loading it if necessary. Concurrent calls for the
// same variant share a single request to the asset loader. A variant that is not active is loaded
// hidden and not collidable.
//
// A load cannot be cancelled once started: cancelling ctx only stops this caller from waiting.
// A variant whose load failed is retried by the next explicit Load.
func (m *Manager) Load(ctx context.Context, id string) (scene.Entity, error) {
	s, ok := m.slots.Get(id)
	if !ok {
		return nil, werror.New("load variant %q: %w", id, ErrUnknownVariant)
	}

	m.mu.Lock()
	if s.state == StateLoaded {
		h := s.handle
		m.mu.Unlock()
		return h, nil
	}
	m.mu.Unlock()

	loadCtx := context.WithoutCancel(ctx)
	ch := m.loads.DoChan(id, func() (any, error) {
		return m.load(loadCtx, s)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(scene.Entity), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) load(ctx context.Context, s *slot) (e scene.Entity, err error) {
	v := s.variant

	m.mu.Lock()
	if s.state == StateLoaded {
		h := s.handle
		m.mu.Unlock()
		return h, nil
	}
	s.state = StateLoading
	m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			e, err = nil, werror.New("loader panicked: %v", r)
		}
		if err != nil {
			m.mu.Lock()
			s.state, s.err = StateFailed, err
			m.mu.Unlock()

			m.log.WithField("variant", v.ID).Errorf("variant failed to load: %v", err)
			m.handler().HandleLoadFailed(v, err)
			err = werror.New("load variant %q: %w", v.ID, err)
		}
	}()

	m.log.WithField("variant", v.ID).Debugf("loading variant from %s", v.Source)
	e, err = m.loader.Load(ctx, scene.Descriptor{Name: v.ID, Path: v.Source, Kind: scene.KindCapture})
	if err != nil {
		return nil, err
	}

	PlacementFor(v.Alignment, v.ID == m.opts.DefaultID).Apply(e)
	visible := m.active.Load() == v.ID
	e.SetEnabled(visible)
	e.SetCollidable(visible)

	m.mu.Lock()
	s.handle, s.state, s.err = e, StateLoaded, nil
	m.mu.Unlock()

	m.log.WithField("variant", v.ID).Info("variant loaded")
	return e, nil
}

// Prefetch loads a variant in the background so that a later switch does not wait on it. A
// prefetched variant stays resident next to the active one, so callers give up single variant
// residency for that variant.
func (m *Manager) Prefetch(id string) {
	worker.Submit(func() {
		if _, err := m.Load(context.Background(), id); err != nil {
			m.log.WithField("variant", id).Debugf("prefetch failed: %v", err)
		}
	})
}

// Switch makes the variant with the id passed the active one. Switching to the active variant is
// a no-op. A switch requested while another is in flight or cooling down is dropped and
// ErrTransitionLocked returned.
//
// The target is made visible first, both variants stay visible for the configured number of
// frames, and only then is the previous variant hidden, so no frame is drawn without either.
func (m *Manager) Switch(ctx context.Context, id string) error {
	current := m.active.Load()
	if current == "" {
		return ErrNotInitialized
	}
	if id == current {
		return nil
	}
	target, ok := m.slots.Get(id)
	if !ok {
		return werror.New("switch to %q: %w", id, ErrUnknownVariant)
	}

	if !m.acquire() {
		m.log.WithField("variant", id).Debug("switch dropped, transition in progress")
		return ErrTransitionLocked
	}
	defer m.release()

	handle, err := m.Load(ctx, id)
	if err != nil {
		return werror.New("switch to %q: %w", id, err)
	}

	prevID := m.active.Load()
	prev, _ := m.slots.Get(prevID)
	m.mu.Lock()
	prevHandle := prev.handle
	m.mu.Unlock()
	assert.IsTrue(prevHandle != nil, "active variant %q has no scene handle", prevID)

	handle.SetEnabled(true)
	handle.SetCollidable(true)
	if err := m.frames.WaitFrames(ctx, m.opts.HandoffFrames); err != nil {
		handle.SetEnabled(false)
		handle.SetCollidable(false)
		return werror.New("switch to %q: %w", id, err)
	}
	prevHandle.SetEnabled(false)
	prevHandle.SetCollidable(false)

	m.active.Store(id)
	m.log.WithFields(logrus.Fields{"from": prevID, "to": id}).Info("switched variant")
	m.handler().HandleSwitch(prev.variant, target.variant)
	return nil
}

// Cycle switches to the previous (direction < 0) or next (direction > 0) variant in declaration
// order. It does not wrap around: cycling past either end is a no-op.
func (m *Manager) Cycle(ctx context.Context, direction int) error {
	if direction == 0 {
		return nil
	}
	current := m.active.Load()
	if current == "" {
		return ErrNotInitialized
	}

	keys := make([]string, 0, len(m.opts.Variants))
	for el := m.slots.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Key)
	}
	idx := 0
	for i, k := range keys {
		if k == current {
			idx = i
			break
		}
	}
	next := idx + 1
	if direction < 0 {
		next = idx - 1
	}
	if next < 0 || next >= len(keys) {
		return nil
	}
	return m.Switch(ctx, keys[next])
}

// acquire takes the transition lock, returning false if it is held or cooling down.
func (m *Manager) acquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locked || m.clock.Now().Before(m.cooldownUntil) {
		return false
	}
	m.locked = true
	return true
}

// release frees the transition lock. It keeps rejecting switches until the cooldown, measured
// from now, has passed.
func (m *Manager) release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.locked = false
	m.cooldownUntil = m.clock.Now().Add(m.opts.Cooldown)
}

// Locked returns true if a switch request would currently be dropped.
func (m *Manager) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked || m.clock.Now().Before(m.cooldownUntil)
}

// Active returns the id of the active variant, or an empty string before Initialize.
func (m *Manager) Active() string {
	return m.active.Load()
}

// ActiveVariant returns the active variant, or false before Initialize.
func (m *Manager) ActiveVariant() (Variant, bool) {
	s, ok := m.slots.Get(m.active.Load())
	if !ok {
		return Variant{}, false
	}
	return s.variant, true
}

// Variants returns the configured variants in declaration order.
func (m *Manager) Variants() []Variant {
	out := make([]Variant, 0, len(m.opts.Variants))
	for el := m.slots.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.variant)
	}
	return out
}

// State returns the load state of a variant.
func (m *Manager) State(id string) (LoadState, bool) {
	s, ok := m.slots.Get(id)
	if !ok {
		return StateUnloaded, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return s.state, true
}

// Err returns the error of the last failed load of a variant, if any.
func (m *Manager) Err(id string) error {
	s, ok := m.slots.Get(id)
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return s.err
}

// Handle returns the scene handle of a loaded variant.
func (m *Manager) Handle(id string) (scene.Entity, bool) {
	s, ok := m.slots.Get(id)
	if !ok {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return s.handle, s.handle != nil
}
