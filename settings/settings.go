package settings

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oomph-ac/waypoint/boundary"
	"github.com/oomph-ac/waypoint/game"
	"github.com/oomph-ac/waypoint/mesh"
	"github.com/oomph-ac/waypoint/navigation"
	"github.com/oomph-ac/waypoint/physics"
	"github.com/oomph-ac/waypoint/portal"
	"github.com/oomph-ac/waypoint/temporal"
	"github.com/pelletier/go-toml"
)

// Settings contains everything that can be configured for a scene.
type Settings struct {
	Log struct {
		// Level is a logrus level name.
		Level string `env:"WAYPOINT_LOG_LEVEL"`
	}
	Sentry struct {
		// DSN enables error reporting when set.
		DSN string `env:"WAYPOINT_SENTRY_DSN"`
	}
	Frame struct {
		// Rate is the number of frames per second the frame loop runs at.
		Rate int `env:"WAYPOINT_FRAME_RATE"`
	}
	Temporal struct {
		DefaultVariant string `env:"WAYPOINT_DEFAULT_VARIANT"`
		CooldownMillis int    `env:"WAYPOINT_SWITCH_COOLDOWN_MS"`
		HandoffFrames  int
		Variants       []Variant
	}
	Collision struct {
		MeshPath         string  `env:"WAYPOINT_COLLISION_MESH"`
		ClearanceRadius  float64 `env:"WAYPOINT_CLEARANCE_RADIUS"`
		ProbeDelayMillis []int
		Debug            bool `env:"WAYPOINT_COLLISION_DEBUG"`
		Boxes            []Box
	}
	Navigation struct {
		Speed             float64 `env:"WAYPOINT_WALK_SPEED"`
		SprintMultiplier  float64
		JoystickSmoothing float64
		HistorySize       int
		Fly               bool `env:"WAYPOINT_FLY"`
		Spawn             Spawn
	}
	Walls   []Wall
	Portals []Portal
}

// Variant is a time variant of the scene.
type Variant struct {
	ID     string
	Label  string
	Source string
	// Alignment is an optional column-major 4x4 matrix.
	Alignment []float64
	// Boxes is the geometry the demo asset loader serves for the variant, in capture space.
	Boxes []Box
}

// Box is an axis-aligned box given by two opposite corners.
type Box struct {
	Min, Max []float64
}

// Wall is a boundary segment on the ground plane.
type Wall struct {
	Name                       string
	StartX, StartZ, EndX, EndZ float64
	// Color is an optional RGBA colour.
	Color []float32
}

// Portal is a spherical portal.
type Portal struct {
	Name    string
	X, Y, Z float64
	Radius  float64
	Sealed  bool
}

// Spawn is the initial camera pose.
type Spawn struct {
	X, Y, Z    float64
	Yaw, Pitch float64
}

// DefaultSettings returns the settings of a small demo scene with three variants.
func DefaultSettings() Settings {
	s := Settings{}
	s.Log.Level = "info"
	s.Frame.Rate = 60

	// The reference capture defines the scene frame. The others are authored Z up.
	reference := []Box{{Min: []float64{-20, -1, -20}, Max: []float64{20, 0, 20}}}
	floor := []Box{{Min: []float64{-20, -20, -1}, Max: []float64{20, 20, 0}}}
	s.Temporal.DefaultVariant = "2019"
	s.Temporal.CooldownMillis = int(game.DefaultSwitchCooldown / time.Millisecond)
	s.Temporal.HandoffFrames = game.HandoffFrames
	s.Temporal.Variants = []Variant{
		{ID: "2019", Label: "Spring 2019", Source: "captures/2019.splat", Boxes: reference},
		{ID: "2021", Label: "Autumn 2021", Source: "captures/2021.splat", Boxes: floor},
		{
			ID: "2024", Label: "Summer 2024", Source: "captures/2024.splat", Boxes: floor,
			Alignment: []float64{
				1, 0, 0, 0,
				0, 1, 0, 0,
				0, 0, 1, 0,
				0.25, 0, -0.1, 1,
			},
		},
	}

	s.Collision.MeshPath = "captures/collision.glb"
	s.Collision.ClearanceRadius = game.DefaultClearanceRadius
	for _, d := range game.DefaultProbeDelays {
		s.Collision.ProbeDelayMillis = append(s.Collision.ProbeDelayMillis, int(d/time.Millisecond))
	}
	s.Collision.Boxes = []Box{{Min: []float64{-1, 0, -9}, Max: []float64{1, 3, -8}}}

	s.Navigation.Speed = game.DefaultWalkSpeed
	s.Navigation.SprintMultiplier = game.DefaultSprintMultiplier
	s.Navigation.JoystickSmoothing = game.DefaultJoystickSmoothing
	s.Navigation.HistorySize = game.DefaultHistorySize
	s.Navigation.Spawn.Y = 1.6

	s.Walls = []Wall{
		{Name: "north", StartX: -10, StartZ: -10, EndX: 10, EndZ: -10},
		{Name: "south", StartX: -10, StartZ: 10, EndX: 10, EndZ: 10},
		{Name: "west", StartX: -10, StartZ: -10, EndX: -10, EndZ: 10},
		{Name: "east", StartX: 10, StartZ: -10, EndX: 10, EndZ: 10},
	}
	s.Portals = []Portal{{Name: "archive", X: 5, Y: 1.6, Z: 5, Radius: 1}}
	return s
}

// SaveDefault will create and save the default settings file. If the file already exists, it will return an error.
func SaveDefault(path string) error {
	s := DefaultSettings()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if data, err := toml.Marshal(s); err != nil {
			return fmt.Errorf("failed encoding default settings: %w", err)
		} else if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed creating settings file: %w", err)
		}
		return nil
	}
	return errors.New("settings file already exists")
}

// Load will load the settings from your settings file, and return an error if the file does not exist.
// Environment variables are applied on top of the file.
func Load(path string) (Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Settings{}, errors.New("settings file doesn't exist")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed reading settings file: %w", err)
	}
	settings := Settings{}
	if err = toml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed decoding settings file: %w", err)
	}
	if err := ParseEnv(&settings); err != nil {
		return Settings{}, err
	}
	return settings, settings.Validate()
}

// ParseEnv overrides settings from WAYPOINT_* environment variables.
func ParseEnv(s *Settings) error {
	if err := env.Parse(s); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (s Settings) Validate() error {
	if len(s.Temporal.Variants) == 0 {
		return errors.New("at least one temporal variant is required")
	}
	for _, v := range s.Temporal.Variants {
		if _, err := temporal.AlignmentFromSlice(v.Alignment); err != nil {
			return fmt.Errorf("variant %q: %w", v.ID, err)
		}
		if _, err := boxes(v.Boxes); err != nil {
			return fmt.Errorf("variant %q: %w", v.ID, err)
		}
	}
	if _, err := boxes(s.Collision.Boxes); err != nil {
		return fmt.Errorf("collision: %w", err)
	}
	if s.Collision.ClearanceRadius < 0 {
		return errors.New("collision clearance radius cannot be negative")
	}
	for _, w := range s.Walls {
		if len(w.Color) != 0 && len(w.Color) != 4 {
			return fmt.Errorf("wall %q: colour must have 4 components", w.Name)
		}
	}
	return nil
}

// TemporalOptions returns the options of the temporal capture manager.
func (s Settings) TemporalOptions() (temporal.Options, error) {
	opts := temporal.Options{
		DefaultID:     s.Temporal.DefaultVariant,
		Cooldown:      time.Duration(s.Temporal.CooldownMillis) * time.Millisecond,
		HandoffFrames: s.Temporal.HandoffFrames,
	}
	for _, v := range s.Temporal.Variants {
		alignment, err := temporal.AlignmentFromSlice(v.Alignment)
		if err != nil {
			return temporal.Options{}, fmt.Errorf("variant %q: %w", v.ID, err)
		}
		opts.Variants = append(opts.Variants, temporal.Variant{ID: v.ID, Label: v.Label, Source: v.Source, Alignment: alignment})
	}
	return opts, nil
}

// MeshOptions returns the options of the mesh collision arbiter.
func (s Settings) MeshOptions() mesh.Options {
	opts := mesh.DefaultOptions()
	if s.Collision.ClearanceRadius > 0 {
		opts.ClearanceRadius = s.Collision.ClearanceRadius
	}
	if len(s.Collision.ProbeDelayMillis) > 0 {
		opts.ProbeDelays = opts.ProbeDelays[:0]
		for _, ms := range s.Collision.ProbeDelayMillis {
			opts.ProbeDelays = append(opts.ProbeDelays, time.Duration(ms)*time.Millisecond)
		}
	}
	opts.Debug = s.Collision.Debug
	return opts
}

// NavigationOptions returns the options of the navigator.
func (s Settings) NavigationOptions() navigation.Options {
	opts := navigation.Options{
		Speed:             s.Navigation.Speed,
		SprintMultiplier:  s.Navigation.SprintMultiplier,
		JoystickSmoothing: s.Navigation.JoystickSmoothing,
		HistorySize:       s.Navigation.HistorySize,
	}
	if s.Navigation.Fly {
		opts.Mode = navigation.ModeFly
	}
	return opts
}

// Spawn returns the initial camera pose.
func (s Settings) Spawn() navigation.Spawn {
	sp := s.Navigation.Spawn
	return navigation.Spawn{Position: mgl64.Vec3{sp.X, sp.Y, sp.Z}, Yaw: sp.Yaw, Pitch: sp.Pitch}
}

// Segments returns the configured walls as boundary segments.
func (s Settings) Segments() []boundary.Segment {
	segments := make([]boundary.Segment, 0, len(s.Walls))
	for _, w := range s.Walls {
		seg := boundary.Segment{
			Name:  w.Name,
			Start: mgl64.Vec2{w.StartX, w.StartZ},
			End:   mgl64.Vec2{w.EndX, w.EndZ},
		}
		if len(w.Color) == 4 {
			seg.Color = mgl32.Vec4{w.Color[0], w.Color[1], w.Color[2], w.Color[3]}
		}
		segments = append(segments, seg)
	}
	return segments
}

// PortalList returns the configured portals.
func (s Settings) PortalList() []portal.Portal {
	portals := make([]portal.Portal, 0, len(s.Portals))
	for _, p := range s.Portals {
		portals = append(portals, portal.Portal{Name: p.Name, Center: mgl64.Vec3{p.X, p.Y, p.Z}, Radius: p.Radius, Sealed: p.Sealed})
	}
	return portals
}

// VariantBoxes returns the demo geometry of the variant with the id passed.
func (s Settings) VariantBoxes(id string) []cube.BBox {
	for _, v := range s.Temporal.Variants {
		if v.ID == id {
			bbs, _ := boxes(v.Boxes)
			return bbs
		}
	}
	return nil
}

// CollisionBoxes returns the demo geometry of the collision mesh.
func (s Settings) CollisionBoxes() []cube.BBox {
	bbs, _ := boxes(s.Collision.Boxes)
	return bbs
}

func boxes(in []Box) ([]cube.BBox, error) {
	out := make([]cube.BBox, 0, len(in))
	for i, b := range in {
		if len(b.Min) != 3 || len(b.Max) != 3 {
			return nil, fmt.Errorf("box %d must have 3 component corners", i)
		}
		out = append(out, physics.Box(mgl64.Vec3{b.Min[0], b.Min[1], b.Min[2]}, mgl64.Vec3{b.Max[0], b.Max[1], b.Max[2]}))
	}
	return out, nil
}
