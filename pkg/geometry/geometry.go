// Package geometry provides the 2D point and vector algebra shared by the
// terrain generator and the lander simulation.
//
// All arithmetic is written with explicit float64 conversions around products
// so the compiler cannot fuse them into FMA instructions. Every participant
// of a match must round identically, whatever GOARCH it runs on.
package geometry

import "math"

// Point is a position on the 2D surface. Y grows upward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector is a direction/magnitude pair. It shares the Point representation.
type Vector = Point

// Add returns p + v.
func (p Point) Add(v Point) Vector {
	return Vector{X: p.X + v.X, Y: p.Y + v.Y}
}

// Subtract returns p - v.
func (p Point) Subtract(v Point) Vector {
	return Vector{X: p.X - v.X, Y: p.Y - v.Y}
}

// Multiply scales p by n.
func (p Point) Multiply(n float64) Vector {
	return Vector{X: float64(p.X * n), Y: float64(p.Y * n)}
}

// Rotate rotates p around pivot by angle radians (counter-clockwise).
func (p Point) Rotate(pivot Point, angle float64) Vector {
	sinA := math.Sin(angle)
	cosA := math.Cos(angle)
	dx := p.X - pivot.X
	dy := p.Y - pivot.Y
	return Vector{
		X: float64(cosA*dx) - float64(sinA*dy) + pivot.X,
		Y: float64(sinA*dx) + float64(cosA*dy) + pivot.Y,
	}
}

// NormalA returns the counter-clockwise perpendicular (-y, x).
func (p Point) NormalA() Vector {
	return Vector{X: -p.Y, Y: p.X}
}

// NormalB returns the clockwise perpendicular (y, -x).
func (p Point) NormalB() Vector {
	return Vector{X: p.Y, Y: -p.X}
}

// Length returns the Euclidean length.
func (p Point) Length() float64 {
	return math.Sqrt(float64(p.X*p.X) + float64(p.Y*p.Y))
}

// Dot returns the dot product of a and b.
func Dot(a, b Vector) float64 {
	return float64(a.X*b.X) + float64(a.Y*b.Y)
}
