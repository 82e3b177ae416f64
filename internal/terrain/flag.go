package terrain

import (
	"math"

	"github.com/landerlink/lander/internal/rng"
	"github.com/landerlink/lander/pkg/geometry"
)

// DefaultFlatness is the largest |dy/dx| a segment may have to hold the flag.
const DefaultFlatness = 0.15

// run is an inclusive range of point indices whose segments are all flat.
type run struct {
	start, end int
}

// PlaceFlag picks the landing flag on a flat stretch of t. It always draws
// exactly two values from src: one to choose the run, one to choose the point
// inside it. When no stretch is flat enough the flattest segment is used.
func PlaceFlag(t Terrain, src rng.Source, tolerance float64) (geometry.Point, error) {
	if err := Validate(t); err != nil {
		return geometry.Point{}, err
	}

	// keep the flag off the outermost segments when there is room
	first, last := 0, len(t)-2
	if len(t) >= 4 {
		first, last = 1, len(t)-3
	}

	var runs []run
	start := -1
	for i := first; i <= last; i++ {
		if math.Abs(slope(t[i], t[i+1])) <= tolerance {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, run{start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, run{start: start, end: last + 1})
	}

	if len(runs) == 0 {
		runs = append(runs, flattest(t, first, last))
	}

	r := runs[pick(src, len(runs))]
	return t[r.start+pick(src, r.end-r.start+1)], nil
}

func flattest(t Terrain, first, last int) run {
	best := first
	bestSlope := math.Inf(1)
	for i := first; i <= last; i++ {
		if s := math.Abs(slope(t[i], t[i+1])); s < bestSlope {
			best, bestSlope = i, s
		}
	}
	return run{start: best, end: best + 1}
}

func slope(a, b geometry.Point) float64 {
	return (b.Y - a.Y) / (b.X - a.X)
}

func pick(src rng.Source, n int) int {
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
