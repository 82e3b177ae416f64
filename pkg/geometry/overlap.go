package geometry

import "math"

// Collision records a polygon point that lies on or below the terrain,
// together with the terrain segment it was tested against.
type Collision struct {
	Point        Point
	SegmentStart Point
	SegmentEnd   Point
}

// Overlap tests every point of polygon (already in world space) against the
// heightmap terrain and returns the collisions in polygon order.
//
// The segment for a point is found by dividing its x by the constant segment
// width terrain[1].X. Points left of the terrain are tested against a virtual
// segment ending at the first terrain point, points right of it against one
// starting at the last terrain point. Both virtual segments are flat.
func Overlap(polygon []Point, terrain []Point) []Collision {
	if len(terrain) < 2 {
		return nil
	}

	var collisions []Collision
	segmentWidth := terrain[1].X
	last := len(terrain) - 1

	for _, p := range polygon {
		segment := int(math.Floor(p.X / segmentWidth))

		var a, b Point
		switch {
		case segment < 0 || p.X < terrain[0].X:
			a = Point{X: p.X - 1, Y: terrain[0].Y}
			b = terrain[0]
		case segment >= len(terrain) || p.X > terrain[last].X:
			a = terrain[last]
			b = Point{X: p.X + 1, Y: terrain[last].Y}
		case segment >= last:
			// exactly on the final vertex
			a = terrain[last-1]
			b = terrain[last]
		default:
			a = terrain[segment]
			b = terrain[segment+1]
		}

		relativeX := (p.X - a.X) / (b.X - a.X)
		y := a.Y + float64((b.Y-a.Y)*relativeX)

		if p.Y <= y {
			collisions = append(collisions, Collision{Point: p, SegmentStart: a, SegmentEnd: b})
		}
	}

	return collisions
}
