package lander

import (
	"math"

	"github.com/landerlink/lander/internal/command"
	"github.com/landerlink/lander/pkg/geometry"
	"github.com/landerlink/lander/pkg/protocol"
)

// Params are the physics constants of a match. Every participant must use
// the same values.
type Params struct {
	Gravity   float64 `json:"gravity" mapstructure:"gravity"`
	Thrust    float64 `json:"thrust" mapstructure:"thrust"`
	BurnRate  float64 `json:"burnRate" mapstructure:"burnRate"`
	SpinAccel float64 `json:"spinAccel" mapstructure:"spinAccel"`
	MaxSpin   float64 `json:"maxSpin" mapstructure:"maxSpin"`

	// Landing policy.
	MaxLandingSpeed float64 `json:"maxLandingSpeed" mapstructure:"maxLandingSpeed"`
	MaxLandingTilt  float64 `json:"maxLandingTilt" mapstructure:"maxLandingTilt"`
	FlagRadius      float64 `json:"flagRadius" mapstructure:"flagRadius"`
}

// DefaultParams are tuned for a 25ms tick.
var DefaultParams = Params{
	Gravity:         0.05,
	Thrust:          0.12,
	BurnRate:        1,
	SpinAccel:       0.004,
	MaxSpin:         0.06,
	MaxLandingSpeed: 1.5,
	MaxLandingTilt:  0.3,
	FlagRadius:      40,
}

// Tick advances l by one tick using DefaultParams.
func Tick(tickNo uint64, cmds []command.Command, l Lander, w World) Lander {
	return DefaultParams.Tick(tickNo, cmds, l, w)
}

// Tick advances l by one tick. cmds are the commands due for this tick in
// arrival order; commands for other tokens are ignored. Terminal landers are
// returned unchanged.
func (p Params) Tick(tickNo uint64, cmds []command.Command, l Lander, w World) Lander {
	if l.Outcome.Terminal() {
		return l
	}

	for _, c := range cmds {
		if c.Token != l.Token {
			continue
		}
		l.Engine = c.Engine
		l.Rotation = c.Rotation
	}

	l.Spin = p.spin(l.Spin, l.Rotation)
	l.Angle += l.Spin

	if l.Fuel <= 0 {
		l.Engine = protocol.EngineOff
	}

	acceleration := geometry.Vector{X: 0, Y: -p.Gravity}
	if l.Engine == protocol.EngineOn {
		acceleration = acceleration.Add(l.Nose().Multiply(p.Thrust))
		l.Fuel = math.Max(0, l.Fuel-p.BurnRate)
		l.BurnTicks++
		if l.Fuel == 0 {
			l.Engine = protocol.EngineOff
		}
	}

	l.Velocity = l.Velocity.Add(acceleration)
	l.Position = l.Position.Add(l.Velocity)

	collisions := geometry.Overlap(Footprint(l), w.Terrain)
	if len(collisions) == 0 {
		return l
	}
	return p.touchdown(tickNo, l, collisions[0], w.Flag)
}

func (p Params) spin(spin float64, r protocol.Rotation) float64 {
	switch r {
	case protocol.RotationLeft:
		spin += p.SpinAccel
	case protocol.RotationRight:
		spin -= p.SpinAccel
	default:
		// damp toward zero without overshooting
		if spin > 0 {
			spin = math.Max(0, spin-p.SpinAccel)
		} else if spin < 0 {
			spin = math.Min(0, spin+p.SpinAccel)
		}
	}
	return math.Max(-p.MaxSpin, math.Min(p.MaxSpin, spin))
}

// touchdown resolves the first contact into a terminal outcome.
func (p Params) touchdown(tickNo uint64, l Lander, c geometry.Collision, flag geometry.Point) Lander {
	if p.Landed(l, c) {
		l.Outcome = Landed
		l.OnTarget = p.OnTarget(l, c, flag)
	} else {
		l.Outcome = Crashed
	}

	l.TouchdownTick = tickNo
	l.Velocity = geometry.Vector{}
	l.Spin = 0
	l.Engine = protocol.EngineOff
	l.Rotation = protocol.RotationOff
	return l
}

// Landed reports whether contact c with the given lander state is a landing
// rather than a crash: slow enough and upright relative to the struck
// segment.
func (p Params) Landed(l Lander, c geometry.Collision) bool {
	if l.Speed() > p.MaxLandingSpeed {
		return false
	}
	return Tilt(l, c) <= p.MaxLandingTilt
}

// OnTarget reports whether a landing at c counts as reaching the flag.
func (p Params) OnTarget(l Lander, c geometry.Collision, flag geometry.Point) bool {
	if flag.X >= c.SegmentStart.X && flag.X <= c.SegmentEnd.X {
		return true
	}
	return math.Abs(l.Position.X-flag.X) <= p.FlagRadius
}

// Tilt is the angle in radians between the lander nose and the upward normal
// of the struck segment.
func Tilt(l Lander, c geometry.Collision) float64 {
	normal := c.SegmentEnd.Subtract(c.SegmentStart).NormalA()
	normal = normal.Multiply(1 / normal.Length())
	cos := geometry.Dot(l.Nose(), normal)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}
