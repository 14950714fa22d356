package game

import "time"

const (
	// DefaultClearanceRadius is the distance to mesh geometry below which a move is blocked.
	DefaultClearanceRadius = 0.3
	// DefaultSwitchCooldown is how long the transition lock stays held after a switch completes.
	DefaultSwitchCooldown = 300 * time.Millisecond
	// HandoffFrames is the number of completed frames both variants stay visible during a switch,
	// so that no frame is drawn with neither of them.
	HandoffFrames = 2

	DefaultWalkSpeed         = 2.0
	DefaultSprintMultiplier  = 2.0
	DefaultJoystickSmoothing = 10.0
	DefaultHistorySize       = 120

	// MaxPitch is the largest pitch, in degrees, the viewer may look up or down.
	MaxPitch = 89.0
)

// DefaultProbeDelays are the delays, measured from the collision mesh finishing its load, at
// which the physics backend is probed before mesh collision is enabled.
var DefaultProbeDelays = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1500 * time.Millisecond}
