package temporal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oomph-ac/waypoint/frame"
	"github.com/oomph-ac/waypoint/physics"
	"github.com/oomph-ac/waypoint/scene"
	"github.com/oomph-ac/waypoint/virtual"
)

type instantFrames struct {
	mu    sync.Mutex
	calls int
}

func (f *instantFrames) WaitFrames(context.Context, int) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return nil
}

type recordingHandler struct {
	NopHandler

	mu       sync.Mutex
	inits    int
	switches [][2]string
	failures []string
}

func (h *recordingHandler) HandleInitialize([]Variant, Variant) {
	h.mu.Lock()
	h.inits++
	h.mu.Unlock()
}

func (h *recordingHandler) HandleSwitch(from, to Variant) {
	h.mu.Lock()
	h.switches = append(h.switches, [2]string{from.ID, to.ID})
	h.mu.Unlock()
}

func (h *recordingHandler) HandleLoadFailed(v Variant, _ error) {
	h.mu.Lock()
	h.failures = append(h.failures, v.ID)
	h.mu.Unlock()
}

var testVariants = []Variant{
	{ID: "a", Label: "2019", Source: "a.cap"},
	{ID: "b", Label: "2021", Source: "b.cap"},
	{ID: "c", Label: "2024", Source: "c.cap"},
}

type fixture struct {
	graph   *virtual.Graph
	clock   *frame.MockTime
	m       *Manager
	handler *recordingHandler
}

func newFixture(t *testing.T, frames frame.Waiter) *fixture {
	t.Helper()

	clock := frame.NewMockTime(time.Unix(0, 0))
	g := virtual.NewGraph(nil, physics.NewVoxelWorld(), clock)
	for _, v := range testVariants {
		g.Register(v.Source, virtual.Asset{Boxes: floor()})
	}
	if frames == nil {
		frames = &instantFrames{}
	}
	m, err := NewManager(nil, g, frames, clock, Options{Variants: testVariants, Cooldown: 300 * time.Millisecond, HandoffFrames: 2})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	h := &recordingHandler{}
	m.SetHandler(h)
	return &fixture{graph: g, clock: clock, m: m, handler: h}
}

func floor() []cube.BBox {
	return []cube.BBox{physics.Box(mgl64.Vec3{-5, -1, -5}, mgl64.Vec3{5, 0, 5})}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func node(t *testing.T, f *fixture, id string) scene.Entity {
	t.Helper()
	e, ok := f.m.Handle(id)
	if !ok {
		t.Fatalf("variant %s has no handle", id)
	}
	return e
}

func TestNewManagerValidation(t *testing.T) {
	g := virtual.NewGraph(nil, nil, nil)
	frames := &instantFrames{}

	if _, err := NewManager(nil, g, frames, nil, Options{}); err == nil {
		t.Fatalf("expected error for no variants")
	}
	dup := []Variant{{ID: "a", Source: "a.cap"}, {ID: "a", Source: "b.cap"}}
	if _, err := NewManager(nil, g, frames, nil, Options{Variants: dup}); err == nil {
		t.Fatalf("expected error for duplicate ids")
	}
	_, err := NewManager(nil, g, frames, nil, Options{Variants: testVariants, DefaultID: "z"})
	if !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant for bad default, got %v", err)
	}
	m, err := NewManager(nil, g, frames, nil, Options{Variants: testVariants})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Variants(); len(got) != 3 || got[0].ID != "a" || got[2].ID != "c" {
		t.Fatalf("variants out of declaration order: %+v", got)
	}
}

func TestSwitchBeforeInitialize(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.m.Switch(context.Background(), "b"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInitializeLoadsOnlyDefault(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	e, err := f.m.Initialize(ctx)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !e.Enabled() || !e.Collidable() {
		t.Fatalf("default variant should be visible and collidable")
	}
	if f.m.Active() != "a" {
		t.Fatalf("expected a active, got %q", f.m.Active())
	}
	if f.graph.Loads("a.cap") != 1 || f.graph.Loads("b.cap") != 0 || f.graph.Loads("c.cap") != 0 {
		t.Fatalf("only the default variant should be loaded")
	}
	if s, _ := f.m.State("b"); s != StateUnloaded {
		t.Fatalf("expected b unloaded, got %v", s)
	}

	again, err := f.m.Initialize(ctx)
	if err != nil || again != e {
		t.Fatalf("second initialize should return the same handle")
	}
	if f.graph.Loads("a.cap") != 1 || f.handler.inits != 1 {
		t.Fatalf("initialize should be idempotent")
	}
}

func TestConcurrentLoadSharesRequest(t *testing.T) {
	f := newFixture(t, nil)
	release := f.graph.Hold("b.cap")

	const callers = 8
	handles := make([]scene.Entity, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = f.m.Load(context.Background(), "b")
		}(i)
	}
	waitFor(t, "load to start", func() bool { return f.graph.Loads("b.cap") == 1 })
	if s, _ := f.m.State("b"); s != StateLoading {
		t.Fatalf("expected b loading, got %v", s)
	}
	release()
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Fatalf("caller %d got a different handle", i)
		}
	}
	if n := f.graph.Loads("b.cap"); n != 1 {
		t.Fatalf("expected exactly one load request, got %d", n)
	}
	if handles[0].Enabled() || handles[0].Collidable() {
		t.Fatalf("a variant loaded while inactive should be hidden")
	}
}

func TestLoadCallerCancelDoesNotAbortLoad(t *testing.T) {
	f := newFixture(t, nil)
	release := f.graph.Hold("b.cap")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.m.Load(ctx, "b")
		done <- err
	}()
	waitFor(t, "load to start", func() bool { return f.graph.Loads("b.cap") == 1 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	release()
	waitFor(t, "load to finish", func() bool {
		s, _ := f.m.State("b")
		return s == StateLoaded
	})
	if _, err := f.m.Load(context.Background(), "b"); err != nil {
		t.Fatalf("load after completion: %v", err)
	}
	if n := f.graph.Loads("b.cap"); n != 1 {
		t.Fatalf("expected one load request, got %d", n)
	}
}

func TestSwitchHandoff(t *testing.T) {
	barrier := frame.NewBarrier()
	f := newFixture(t, barrier)
	ctx := context.Background()
	if _, err := f.m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- f.m.Switch(ctx, "b") }()
	waitFor(t, "handoff wait", func() bool { return barrier.Waiting() == 1 })

	a, b := node(t, f, "a"), node(t, f, "b")
	if !a.Enabled() || !b.Enabled() {
		t.Fatalf("both variants should be visible during the handoff")
	}
	if f.m.Active() != "a" {
		t.Fatalf("active should not change before the handoff completes")
	}

	barrier.Complete()
	if !a.Enabled() {
		t.Fatalf("previous variant hidden after a single frame")
	}
	barrier.Complete()
	if err := <-done; err != nil {
		t.Fatalf("switch: %v", err)
	}
	if a.Enabled() || a.Collidable() {
		t.Fatalf("previous variant should be hidden after the switch")
	}
	if !b.Enabled() || !b.Collidable() {
		t.Fatalf("target variant should be visible after the switch")
	}
	if f.m.Active() != "b" {
		t.Fatalf("expected b active, got %q", f.m.Active())
	}
	if len(f.handler.switches) != 1 || f.handler.switches[0] != [2]string{"a", "b"} {
		t.Fatalf("unexpected switch notifications: %v", f.handler.switches)
	}
}

func TestSwitchCooldown(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := f.m.Switch(ctx, "b"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if err := f.m.Switch(ctx, "a"); !errors.Is(err, ErrTransitionLocked) {
		t.Fatalf("expected ErrTransitionLocked during cooldown, got %v", err)
	}
	if f.m.Active() != "b" {
		t.Fatalf("dropped switch changed the active variant")
	}

	f.clock.Advance(299 * time.Millisecond)
	if !f.m.Locked() {
		t.Fatalf("expected lock to be held before cooldown elapses")
	}
	f.clock.Advance(time.Millisecond)
	if err := f.m.Switch(ctx, "a"); err != nil {
		t.Fatalf("switch after cooldown: %v", err)
	}
	if f.m.Active() != "a" {
		t.Fatalf("expected a active, got %q", f.m.Active())
	}
	if n := f.graph.Loads("a.cap"); n != 1 {
		t.Fatalf("switching back should not reload, got %d loads", n)
	}
}

func TestSwitchDuringLoadDropped(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	release := f.graph.Hold("b.cap")

	done := make(chan error, 1)
	go func() { done <- f.m.Switch(ctx, "b") }()
	waitFor(t, "load to start", func() bool { return f.graph.Loads("b.cap") == 1 })

	if err := f.m.Switch(ctx, "c"); !errors.Is(err, ErrTransitionLocked) {
		t.Fatalf("expected ErrTransitionLocked, got %v", err)
	}
	release()
	if err := <-done; err != nil {
		t.Fatalf("switch: %v", err)
	}
	if f.m.Active() != "b" {
		t.Fatalf("expected b active, got %q", f.m.Active())
	}
	if f.graph.Loads("c.cap") != 0 {
		t.Fatalf("dropped switch should not load c")
	}
}

func TestSwitchToActiveIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := f.m.Switch(ctx, "a"); err != nil {
		t.Fatalf("switch to active: %v", err)
	}
	if f.m.Locked() {
		t.Fatalf("switching to the active variant should not take the lock")
	}
	if err := f.m.Switch(ctx, "zzz"); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestLoadFailureKeepsActive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	boom := errors.New("network down")
	f.graph.Fail("b.cap", boom)

	if err := f.m.Switch(ctx, "b"); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if f.m.Active() != "a" {
		t.Fatalf("failed switch changed the active variant")
	}
	if a := node(t, f, "a"); !a.Enabled() || !a.Collidable() {
		t.Fatalf("active variant should stay visible after a failed switch")
	}
	if s, _ := f.m.State("b"); s != StateFailed || s.String() != "error" {
		t.Fatalf("expected b in error state, got %v", s)
	}
	if !errors.Is(f.m.Err("b"), boom) {
		t.Fatalf("expected recorded error, got %v", f.m.Err("b"))
	}
	if len(f.handler.failures) != 1 || f.handler.failures[0] != "b" {
		t.Fatalf("expected one failure notification, got %v", f.handler.failures)
	}

	f.graph.Fail("b.cap", nil)
	f.clock.Advance(time.Second)
	if err := f.m.Switch(ctx, "b"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if f.m.Active() != "b" {
		t.Fatalf("expected b active after retry")
	}
}

func TestCycleClamps(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := f.m.Cycle(ctx, -1); err != nil || f.m.Active() != "a" {
		t.Fatalf("cycling before the first variant should be a no-op")
	}
	for _, want := range []string{"b", "c", "c"} {
		if err := f.m.Cycle(ctx, 1); err != nil {
			t.Fatalf("cycle: %v", err)
		}
		if f.m.Active() != want {
			t.Fatalf("expected %s active, got %s", want, f.m.Active())
		}
		f.clock.Advance(time.Second)
	}
	if err := f.m.Cycle(ctx, -1); err != nil || f.m.Active() != "b" {
		t.Fatalf("expected cycling back to b")
	}
}

func TestCollisionFollowsActive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := f.m.Load(ctx, "b"); err != nil {
		t.Fatalf("load: %v", err)
	}
	world := f.graph.World()
	if !world.Attached("a") || world.Attached("b") {
		t.Fatalf("only the active variant should be collidable")
	}
	if err := f.m.Switch(ctx, "b"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if world.Attached("a") || !world.Attached("b") {
		t.Fatalf("collision did not follow the active variant")
	}
}

func TestPlacementAppliedOnLoad(t *testing.T) {
	shift := mgl64.Translate3D(10, 0, 0)
	variants := []Variant{
		{ID: "a", Source: "a.cap"},
		{ID: "b", Source: "b.cap", Alignment: &shift},
	}
	g := virtual.NewGraph(nil, nil, nil)
	g.Register("a.cap", virtual.Asset{})
	g.Register("b.cap", virtual.Asset{})
	m, err := NewManager(nil, g, &instantFrames{}, nil, Options{Variants: variants})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	a, err := m.Initialize(ctx)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !scene.WorldTransform(a).ApproxEqualThreshold(mgl64.Ident4(), 1e-9) {
		t.Fatalf("reference variant should keep its authored frame, got %v", scene.WorldTransform(a))
	}

	b, err := m.Load(ctx, "b")
	if err != nil {
		t.Fatalf("load b: %v", err)
	}
	want := AxisCorrection().Mul4(shift)
	if !scene.WorldTransform(b).ApproxEqualThreshold(want, 1e-9) {
		t.Fatalf("aligned variant transform = %v, want %v", scene.WorldTransform(b), want)
	}
	if !b.LocalPosition().ApproxEqualThreshold(mgl64.Vec3{10, 0, 0}, 1e-9) {
		t.Fatalf("unexpected translation %v", b.LocalPosition())
	}
}

func TestIdentityAlignedVariantDiffersByCorrection(t *testing.T) {
	ident := mgl64.Ident4()
	variants := []Variant{
		{ID: "a", Source: "a.cap"},
		{ID: "b", Source: "b.cap", Alignment: &ident},
		{ID: "c", Source: "c.cap"},
	}
	g := virtual.NewGraph(nil, nil, nil)
	for _, v := range variants {
		g.Register(v.Source, virtual.Asset{})
	}
	m, err := NewManager(nil, g, &instantFrames{}, nil, Options{Variants: variants})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	a, err := m.Initialize(ctx)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	want := AxisCorrection().Mul4(scene.WorldTransform(a))
	for _, id := range []string{"b", "c"} {
		e, err := m.Load(ctx, id)
		if err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		got := scene.WorldTransform(e)
		if !got.ApproxEqualThreshold(want, 1e-9) {
			t.Fatalf("%s transform = %v, want correction x reference = %v", id, got, want)
		}
		if got.ApproxEqualThreshold(scene.WorldTransform(a), 1e-9) {
			t.Fatalf("%s should not share the reference placement", id)
		}
	}
}

func TestDoubleSwitchWithinCooldown(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := f.m.Switch(ctx, "b"); err != nil {
		t.Fatalf("first switch: %v", err)
	}
	if err := f.m.Switch(ctx, "b"); err != nil {
		t.Fatalf("second switch to the now active variant: %v", err)
	}
	if len(f.handler.switches) != 1 || f.handler.switches[0] != [2]string{"a", "b"} {
		t.Fatalf("expected exactly one transition, got %v", f.handler.switches)
	}
	if n := f.graph.Loads("b.cap"); n != 1 {
		t.Fatalf("expected a single load of b, got %d", n)
	}

	// The lock still reflects the first switch's cooldown only.
	f.clock.Advance(300 * time.Millisecond)
	if f.m.Locked() {
		t.Fatalf("second switch should not have taken the lock")
	}
}

func TestZeroCooldown(t *testing.T) {
	g := virtual.NewGraph(nil, nil, nil)
	for _, v := range testVariants {
		g.Register(v.Source, virtual.Asset{})
	}
	m, err := NewManager(nil, g, &instantFrames{}, frame.NewMockTime(time.Unix(0, 0)), Options{Variants: testVariants})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()
	if _, err := m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := m.Switch(ctx, "b"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if err := m.Switch(ctx, "a"); err != nil {
		t.Fatalf("switch without cooldown: %v", err)
	}
}

func TestConcurrentInitialize(t *testing.T) {
	f := newFixture(t, nil)
	release := f.graph.Hold("a.cap")

	const callers = 4
	handles := make([]scene.Entity, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = f.m.Initialize(context.Background())
		}(i)
	}
	waitFor(t, "default load to start", func() bool { return f.graph.Loads("a.cap") == 1 })
	release()
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil || handles[i] != handles[0] {
			t.Fatalf("caller %d: handle %v err %v", i, handles[i], errs[i])
		}
	}
	if f.graph.Loads("a.cap") != 1 || f.handler.inits != 1 {
		t.Fatalf("expected one load and one notification, got %d and %d", f.graph.Loads("a.cap"), f.handler.inits)
	}
	if !handles[0].Enabled() || f.m.Active() != "a" {
		t.Fatalf("default variant should be active and visible")
	}
}

func TestPrefetchLoadsHidden(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	f.m.Prefetch("c")
	waitFor(t, "prefetch", func() bool {
		s, _ := f.m.State("c")
		return s == StateLoaded
	})
	c := node(t, f, "c")
	if c.Enabled() || c.Collidable() {
		t.Fatalf("prefetched variant should stay hidden")
	}
	if f.m.Active() != "a" {
		t.Fatalf("prefetch changed the active variant")
	}
}
