// Package geo bridges heightmaps and footprints into simplefeatures geometries
// for structural checks that are awkward to express on raw point slices.
package geo

import (
	"errors"
	"fmt"

	"github.com/landerlink/lander/pkg/geometry"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrTooFewPoints is returned when a polyline has fewer than two points.
var ErrTooFewPoints = errors.New("polyline must have at least 2 points")

// ErrNotSimple is returned when a heightmap crosses itself.
var ErrNotSimple = errors.New("heightmap is not a simple line")

// LineString converts points into a 2D geom.LineString.
func LineString(points []geometry.Point) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("%w, got %d", ErrTooFewPoints, len(points))
	}

	flatCoords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flatCoords = append(flatCoords, p.X, p.Y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// CheckHeightmap verifies that points form a simple polyline and returns its
// length along the surface.
func CheckHeightmap(points []geometry.Point) (float64, error) {
	ls, err := LineString(points)
	if err != nil {
		return 0, err
	}
	if !ls.IsSimple() {
		return 0, ErrNotSimple
	}
	return ls.Length(), nil
}

// FootprintRing closes a footprint polygon into a ring, so it can be logged
// or exported as WKT.
func FootprintRing(polygon []geometry.Point) (geom.LineString, error) {
	if len(polygon) == 0 {
		return LineString(nil)
	}
	closed := make([]geometry.Point, 0, len(polygon)+1)
	closed = append(closed, polygon...)
	closed = append(closed, polygon[0])
	return LineString(closed)
}
