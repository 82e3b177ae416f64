// Package lander simulates a single vehicle over a heightmap. Tick is a pure
// transition: the same lander, commands and world always give the same result.
package lander

import (
	"fmt"
	"math"

	"github.com/landerlink/lander/pkg/geometry"
	"github.com/landerlink/lander/pkg/protocol"
)

// Outcome is the flight state of a lander. Landed and Crashed are terminal.
type Outcome string

const (
	Flying  Outcome = "flying"
	Landed  Outcome = "landed"
	Crashed Outcome = "crashed"
)

// Terminal reports whether the lander is no longer simulated.
func (o Outcome) Terminal() bool {
	return o == Landed || o == Crashed
}

// FullFuel is the fuel a lander spawns with.
const FullFuel = 1000.0

// Spawn is where every lander enters the match.
var Spawn = geometry.Point{X: 1000, Y: 300}

// Lander is the replicated state of one player's vehicle.
type Lander struct {
	Token    string            `json:"token"`
	Color    string            `json:"color"`
	Position geometry.Point    `json:"position"`
	Velocity geometry.Vector   `json:"velocity"`
	Angle    float64           `json:"angle"`
	Engine   protocol.Engine   `json:"engine"`
	Rotation protocol.Rotation `json:"rotation"`
	// Spin is the angular velocity in radians per tick.
	Spin      float64 `json:"spin"`
	BurnTicks uint64  `json:"burnTicks"`
	Fuel      float64 `json:"fuel"`

	Outcome       Outcome `json:"outcome"`
	OnTarget      bool    `json:"onTarget"`
	TouchdownTick uint64  `json:"touchdownTick,omitempty"`
}

// New returns a lander at rest at position, pointing up, with the given fuel.
func New(token, color string, position geometry.Point, fuel float64) Lander {
	return Lander{
		Token:    token,
		Color:    color,
		Position: position,
		Engine:   protocol.EngineOff,
		Rotation: protocol.RotationOff,
		Fuel:     fuel,
		Outcome:  Flying,
	}
}

func (l Lander) String() string {
	return fmt.Sprintf("%s[%s pos=(%.1f,%.1f) vel=(%.2f,%.2f) angle=%.2f fuel=%.0f]",
		l.Token, l.Outcome, l.Position.X, l.Position.Y, l.Velocity.X, l.Velocity.Y, l.Angle, l.Fuel)
}

// Nose is the unit thrust direction for the current angle. At angle 0 the
// nose points straight up.
func (l Lander) Nose() geometry.Vector {
	return geometry.Vector{X: -math.Sin(l.Angle), Y: math.Cos(l.Angle)}
}

// Speed is the length of the velocity vector.
func (l Lander) Speed() float64 {
	return l.Velocity.Length()
}

// World is the static part of a match a lander is simulated against.
type World struct {
	Terrain []geometry.Point
	Flag    geometry.Point
}

// hull is the lander outline in its own frame, clockwise from the top
// left corner. The last four points form the legs.
var hull = []geometry.Point{
	{X: -10, Y: 12},
	{X: 10, Y: 12},
	{X: 10, Y: -6},
	{X: 14, Y: -12},
	{X: -14, Y: -12},
	{X: -10, Y: -6},
}

// Footprint returns the lander outline in world space.
func Footprint(l Lander) []geometry.Point {
	points := make([]geometry.Point, len(hull))
	for i, p := range hull {
		points[i] = l.Position.Add(p).Rotate(l.Position, l.Angle)
	}
	return points
}
