package terrain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landerlink/lander/internal/rng"
)

// fixedSource replays a fixed sequence of draws and counts them.
type fixedSource struct {
	values []float64
	calls  int
}

func (s *fixedSource) Float64() float64 {
	v := s.values[s.calls%len(s.values)]
	s.calls++
	return v
}

func TestPlaceFlag_ScenarioABC(t *testing.T) {
	r := rng.New("abc")
	fg, err := Generate(Params{Width: 10000, Segments: 350, Octaves: 9, Roughness: 4}, r)
	require.NoError(t, err)
	flag, err := PlaceFlag(fg, r, DefaultFlatness)
	require.NoError(t, err)

	again := rng.New("abc")
	fg2, err := Generate(Params{Width: 10000, Segments: 350, Octaves: 9, Roughness: 4}, again)
	require.NoError(t, err)
	flag2, err := PlaceFlag(fg2, again, DefaultFlatness)
	require.NoError(t, err)

	assert.Equal(t, fg, fg2)
	assert.Equal(t, flag, flag2)

	assert.GreaterOrEqual(t, flag.X, 0.0)
	assert.LessOrEqual(t, flag.X, fg.Width())
	assert.Contains(t, fg, flag, "flag must sit on a terrain point")

	idx := int(flag.X/fg.SegmentWidth() + 0.5)
	require.Equal(t, flag, fg[idx])
	assert.True(t, isFlatAt(fg, idx, DefaultFlatness) || !hasFlatRun(fg), "flag must be on a flat run")
}

// isFlatAt reports whether the point at index i belongs to a segment with
// |slope| within tolerance.
func isFlatAt(t Terrain, i int, tolerance float64) bool {
	if i > 0 && math.Abs(slope(t[i-1], t[i])) <= tolerance {
		return true
	}
	return i+1 < len(t) && math.Abs(slope(t[i], t[i+1])) <= tolerance
}

func hasFlatRun(t Terrain) bool {
	for i := 1; i < len(t)-2; i++ {
		if math.Abs(slope(t[i], t[i+1])) <= DefaultFlatness {
			return true
		}
	}
	return false
}

func TestPlaceFlag_PicksWithinFlatRun(t *testing.T) {
	// segments: steep, flat, flat, steep, flat, steep
	terrain := Terrain{
		{X: 0, Y: 0}, {X: 10, Y: 50}, {X: 20, Y: 50}, {X: 30, Y: 51},
		{X: 40, Y: 100}, {X: 50, Y: 100}, {X: 60, Y: 0},
	}

	// first draw picks the run, second the point inside it
	src := &fixedSource{values: []float64{0.0, 0.99}}
	flag, err := PlaceFlag(terrain, src, 0.15)
	require.NoError(t, err)
	assert.Equal(t, terrain[3], flag)
	assert.Equal(t, 2, src.calls)

	src = &fixedSource{values: []float64{0.99, 0.0}}
	flag, err = PlaceFlag(terrain, src, 0.15)
	require.NoError(t, err)
	assert.Equal(t, terrain[4], flag)
	assert.Equal(t, 2, src.calls)
}

func TestPlaceFlag_FallsBackToFlattestSegment(t *testing.T) {
	terrain := Terrain{
		{X: 0, Y: 0}, {X: 10, Y: 100}, {X: 20, Y: 0}, {X: 30, Y: 40}, {X: 40, Y: 200}, {X: 50, Y: 0},
	}

	src := &fixedSource{values: []float64{0.5}}
	flag, err := PlaceFlag(terrain, src, 0.01)
	require.NoError(t, err)
	// segment 2 (0 -> 40) is the least steep inner segment
	assert.Contains(t, []any{terrain[2], terrain[3]}, flag)
	assert.Equal(t, 2, src.calls)
}

func TestPlaceFlag_RejectsInvalidTerrain(t *testing.T) {
	_, err := PlaceFlag(Terrain{{X: 0, Y: 0}}, &fixedSource{values: []float64{0}}, DefaultFlatness)
	assert.ErrorIs(t, err, ErrInvalidTerrain)
}
