package navigation

import (
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oomph-ac/waypoint/collision"
	"github.com/oomph-ac/waypoint/game"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
)

// Mode is the movement mode of the viewer.
type Mode uint8

const (
	// ModeWalk keeps movement horizontal and subject to collision.
	ModeWalk Mode = iota
	// ModeFly moves freely along the view direction and ignores collision.
	ModeFly
)

func (m Mode) String() string {
	if m == ModeFly {
		return "fly"
	}
	return "walk"
}

// Options configure a Navigator.
type Options struct {
	// Speed is the base movement speed in units per second.
	Speed float64
	// SprintMultiplier scales Speed while sprinting.
	SprintMultiplier float64
	// JoystickSmoothing is the rate, per second, at which the smoothed joystick vector approaches
	// the raw one.
	JoystickSmoothing float64
	// HistorySize is the number of committed poses kept.
	HistorySize int
	Mode        Mode
}

// DefaultOptions ...
func DefaultOptions() Options {
	return Options{
		Speed:             game.DefaultWalkSpeed,
		SprintMultiplier:  game.DefaultSprintMultiplier,
		JoystickSmoothing: game.DefaultJoystickSmoothing,
		HistorySize:       game.DefaultHistorySize,
	}
}

// Input is the input accumulated over one frame.
type Input struct {
	// Move holds the keyboard axes: X strafes right, Y moves forward. Each is in [-1, 1].
	Move mgl64.Vec2
	// Joystick is the raw joystick vector, using the same axes as Move.
	Joystick mgl64.Vec2
	// Vertical moves up (positive) or down (negative).
	Vertical float64
	Sprint   bool
}

// Spawn is the initial camera pose. It is also what a persistence layer saves and restores.
type Spawn struct {
	Position mgl64.Vec3
	Yaw      float64
	Pitch    float64
}

// Tracker receives the committed position every frame, whether or not the viewer moved.
type Tracker interface {
	Track(pos mgl64.Vec3)
}

// Result is the outcome of a single frame.
type Result struct {
	// Position is the committed position after the frame.
	Position mgl64.Vec3
	// Moved is true if a candidate move was committed.
	Moved bool
	// Blocked is true if a candidate move was rejected by an arbiter.
	Blocked bool
	// Verdict describes the rejection, if any.
	Verdict collision.Verdict
}

// Navigator moves a first-person viewer through the scene. Every frame it turns input into a
// candidate position and, in walk mode, asks its collision chain whether the move is legal. A
// rejected move is discarded whole: the viewer stays where it was for that frame.
type Navigator struct {
	log      logrus.FieldLogger
	chain    *collision.Chain
	trackers []Tracker
	opts     Options

	mu         deadlock.Mutex
	spawn      Spawn
	pos        mgl64.Vec3
	yaw, pitch float64
	mode       Mode
	joystick   mgl64.Vec2
	frame      int64
	history    *History
}

// New returns a Navigator placed at the spawn passed. A nil chain allows every move.
func New(log logrus.FieldLogger, chain *collision.Chain, spawn Spawn, opts Options, trackers ...Tracker) *Navigator {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if chain == nil {
		chain = collision.NewChain()
	}
	def := DefaultOptions()
	if opts.Speed <= 0 {
		opts.Speed = def.Speed
	}
	if opts.SprintMultiplier <= 0 {
		opts.SprintMultiplier = def.SprintMultiplier
	}
	if opts.JoystickSmoothing <= 0 {
		opts.JoystickSmoothing = def.JoystickSmoothing
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = def.HistorySize
	}

	n := &Navigator{
		log:      log,
		chain:    chain,
		trackers: trackers,
		opts:     opts,
		mode:     opts.Mode,
		history:  NewHistory(opts.HistorySize),
	}
	n.place(spawn)
	n.spawn = n.Snapshot()
	return n
}

// Tick advances the navigator by dt seconds.
func (n *Navigator) Tick(dt float64, in Input) Result {
	n.mu.Lock()
	oldPos := n.pos
	newPos := n.candidate(dt, in)
	res := Result{Position: oldPos}

	if newPos != oldPos {
		if n.mode == ModeWalk {
			res.Verdict = n.chain.Evaluate(oldPos, newPos)
		}
		if res.Verdict.Blocked {
			res.Blocked = true
			n.log.WithField("source", res.Verdict.Source).Debug("move rejected")
		} else {
			n.pos = newPos
			res.Position, res.Moved = newPos, true
		}
	}

	n.frame++
	n.history.Add(HistoricalPosition{Frame: n.frame, Position: n.pos, Yaw: n.yaw, Pitch: n.pitch})
	pos := n.pos
	n.mu.Unlock()

	for _, t := range n.trackers {
		t.Track(pos)
	}
	return res
}

// candidate returns the position the input would move the viewer to. n.mu must be held.
func (n *Navigator) candidate(dt float64, in Input) mgl64.Vec3 {
	if dt <= 0 {
		return n.pos
	}

	alpha := game.ClampFloat(n.opts.JoystickSmoothing*dt, 0, 1)
	n.joystick = n.joystick.Add(in.Joystick.Sub(n.joystick).Mul(alpha))

	speed := n.opts.Speed
	if in.Sprint {
		speed *= n.opts.SprintMultiplier
	}

	forward, right := game.DirectionVector(n.yaw, n.pitch), game.RightVector(n.yaw)
	up := mgl64.Vec3{0, 1, 0}
	if n.mode == ModeWalk {
		forward, right = game.FlattenHorizontal(forward), game.FlattenHorizontal(right)
	}

	axes := in.Move.Add(n.joystick)
	move := forward.Mul(axes.Y()).Add(right.Mul(axes.X())).Add(up.Mul(in.Vertical))
	if move.LenSqr() <= 1e-12 {
		return n.pos
	}
	return n.pos.Add(move.Mul(speed * dt))
}

// Look rotates the view by the deltas passed, in degrees. Pitch is clamped so the viewer can
// never look straight up or down.
func (n *Navigator) Look(deltaYaw, deltaPitch float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.yaw = game.WrapYaw(n.yaw + deltaYaw)
	n.pitch = game.ClampFloat(n.pitch+deltaPitch, -game.MaxPitch, game.MaxPitch)
}

// SetMode ...
func (n *Navigator) SetMode(mode Mode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.mode != mode {
		n.log.WithField("mode", mode).Debug("navigation mode changed")
	}
	n.mode = mode
}

// Mode ...
func (n *Navigator) Mode() Mode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mode
}

// Position returns the committed position.
func (n *Navigator) Position() mgl64.Vec3 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pos
}

// Rotation returns the yaw and pitch of the view, in degrees.
func (n *Navigator) Rotation() (yaw, pitch float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.yaw, n.pitch
}

// Snapshot returns the current pose in a form that can be saved and passed back to Respawn.
func (n *Navigator) Snapshot() Spawn {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Spawn{Position: n.pos, Yaw: n.yaw, Pitch: n.pitch}
}

// Respawn moves the viewer to the spawn passed without arbitration. A nil spawn returns the
// viewer to the pose it was created with.
func (n *Navigator) Respawn(spawn *Spawn) {
	n.mu.Lock()
	if spawn == nil {
		spawn = &n.spawn
	}
	n.place(*spawn)
	n.joystick = mgl64.Vec2{}
	n.history.Clear()
	n.mu.Unlock()
}

func (n *Navigator) place(spawn Spawn) {
	n.pos = spawn.Position
	n.yaw = game.WrapYaw(spawn.Yaw)
	n.pitch = game.ClampFloat(spawn.Pitch, -game.MaxPitch, game.MaxPitch)
}

// History returns the poses committed during the last frames, most recent first.
func (n *Navigator) History(frames int64) []HistoricalPosition {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.history.Range(n.frame-frames+1, n.frame)
}

// Frame returns the number of frames ticked since creation.
func (n *Navigator) Frame() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frame
}
