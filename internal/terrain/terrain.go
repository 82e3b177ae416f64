// Package terrain generates the seeded heightmaps a match is played on.
//
// Generation consumes the random source strictly in a fixed order, so every
// participant that starts from the same seed and makes the same sequence of
// calls ends up with identical terrains and flag positions.
package terrain

import (
	"errors"
	"fmt"
	"math"

	"github.com/landerlink/lander/internal/geo"
	"github.com/landerlink/lander/internal/rng"
	"github.com/landerlink/lander/pkg/geometry"
)

const (
	// Scale converts the roughness factor into the first displacement amplitude.
	Scale = 50.0
	// Floor is the elevation of the lowest generated point.
	Floor = 20.0
	// MaxOctaves bounds the control point count to 2^16+1.
	MaxOctaves = 16
)

// ErrInvalidParams is returned when generation parameters cannot produce a terrain.
var ErrInvalidParams = errors.New("invalid terrain parameters")

// ErrInvalidTerrain is returned when a heightmap breaks the terrain invariants.
var ErrInvalidTerrain = errors.New("invalid terrain")

// Terrain is a heightmap: points with evenly spaced, strictly increasing x,
// starting at x=0.
type Terrain []geometry.Point

// Params shape a generated terrain.
type Params struct {
	Width     float64 `json:"width" mapstructure:"width"`
	Segments  int     `json:"segments" mapstructure:"segments"`
	Octaves   int     `json:"octaves" mapstructure:"octaves"`
	Roughness float64 `json:"roughness" mapstructure:"roughness"`
}

// ForegroundParams are the defaults for the collidable terrain.
var ForegroundParams = Params{Width: 10000, Segments: 350, Octaves: 9, Roughness: 4}

// BackgroundParams are the defaults for the parallax terrain before mapping.
var BackgroundParams = Params{Width: 2500, Segments: 350, Octaves: 8, Roughness: 3}

func (p Params) validate() error {
	switch {
	case !(p.Width > 0) || math.IsInf(p.Width, 0):
		return fmt.Errorf("%w: width %v", ErrInvalidParams, p.Width)
	case p.Segments < 1:
		return fmt.Errorf("%w: segments %d", ErrInvalidParams, p.Segments)
	case p.Octaves < 1 || p.Octaves > MaxOctaves:
		return fmt.Errorf("%w: octaves %d", ErrInvalidParams, p.Octaves)
	case p.Roughness < 0 || math.IsNaN(p.Roughness) || math.IsInf(p.Roughness, 0):
		return fmt.Errorf("%w: roughness %v", ErrInvalidParams, p.Roughness)
	}
	return nil
}

// SegmentWidth returns the constant horizontal distance between points.
func (t Terrain) SegmentWidth() float64 {
	if len(t) < 2 {
		return 0
	}
	return t[1].X
}

// Width returns the x of the last point.
func (t Terrain) Width() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].X
}

// Generate builds a heightmap by midpoint displacement over 2^Octaves+1
// control points, then resamples it onto Segments+1 evenly spaced points.
func Generate(p Params, src rng.Source) (Terrain, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	n := 1 << p.Octaves
	ctrl := make([]float64, n+1)
	amp := float64(p.Roughness * Scale)

	ctrl[0] = displace(src, amp)
	ctrl[n] = displace(src, amp)
	for step := n; step > 1; step /= 2 {
		amp /= 2
		half := step / 2
		for i := half; i < n; i += step {
			ctrl[i] = (ctrl[i-half]+ctrl[i+half])/2 + displace(src, amp)
		}
	}

	points := make(Terrain, p.Segments+1)
	segmentWidth := p.Width / float64(p.Segments)
	low := math.Inf(1)
	for i := range points {
		pos := float64(i) * float64(n) / float64(p.Segments)
		k := int(pos)
		if k >= n {
			k = n - 1
		}
		frac := pos - float64(k)
		y := ctrl[k] + float64((ctrl[k+1]-ctrl[k])*frac)
		points[i] = geometry.Point{X: float64(float64(i) * segmentWidth), Y: y}
		low = math.Min(low, y)
	}

	for i := range points {
		points[i].Y = points[i].Y - low + Floor
	}

	return points, nil
}

// Background generates the decorative parallax terrain: the generated
// heightmap is stretched twice as wide and lifted by 50 units.
func Background(p Params, src rng.Source) (Terrain, error) {
	t, err := Generate(p, src)
	if err != nil {
		return nil, err
	}
	for i := range t {
		t[i] = geometry.Point{X: t[i].X * 2, Y: t[i].Y + 50}
	}
	return t, nil
}

func displace(src rng.Source, amp float64) float64 {
	return float64((float64(src.Float64()*2) - 1) * amp)
}

// Validate checks the heightmap invariants: at least two points, first x at
// zero, constant positive segment width, finite elevations and a simple line.
func Validate(t Terrain) error {
	if len(t) < 2 {
		return fmt.Errorf("%w: %d points", ErrInvalidTerrain, len(t))
	}
	if t[0].X != 0 {
		return fmt.Errorf("%w: first x is %v", ErrInvalidTerrain, t[0].X)
	}
	w := t.SegmentWidth()
	if !(w > 0) {
		return fmt.Errorf("%w: segment width %v", ErrInvalidTerrain, w)
	}
	tolerance := w * 1e-9
	for i, p := range t {
		if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("%w: point %d has elevation %v", ErrInvalidTerrain, i, p.Y)
		}
		if i == 0 {
			continue
		}
		dx := p.X - t[i-1].X
		if !(dx > 0) || math.Abs(dx-w) > tolerance {
			return fmt.Errorf("%w: segment %d has width %v, want %v", ErrInvalidTerrain, i-1, dx, w)
		}
	}
	if _, err := geo.CheckHeightmap(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTerrain, err)
	}
	return nil
}
