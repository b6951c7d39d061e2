// Package geom holds the small amount of 2D math shared by the layout,
// scene and export packages.
package geom

import "fmt"

// Point is a position on the diagram plane. X grows with depth (left to
// right), Y is the vertical coordinate chosen by the tidy layout.
type Point struct {
	X float64
	Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p scaled by k on both axes.
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Lerp interpolates between a and b; t=0 yields a, t=1 yields b.
func Lerp(a, b Point, t float64) Point {
	return Point{
		X: LerpFloat(a.X, b.X, t),
		Y: LerpFloat(a.Y, b.Y, t),
	}
}

// LerpFloat interpolates between two scalars.
func LerpFloat(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// Curve is a cubic Bezier segment.
type Curve struct {
	From, C1, C2, To Point
}

// Diagonal returns the horizontal "elbow" curve used for tree links: both
// control points sit halfway along X, so the curve leaves s and enters d
// horizontally.
func Diagonal(s, d Point) Curve {
	midX := (s.X + d.X) / 2
	return Curve{
		From: s,
		C1:   Point{X: midX, Y: s.Y},
		C2:   Point{X: midX, Y: d.Y},
		To:   d,
	}
}

// At evaluates the curve at t in [0, 1].
func (c Curve) At(t float64) Point {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	cc := 3 * u * t * t
	d := t * t * t
	return Point{
		X: a*c.From.X + b*c.C1.X + cc*c.C2.X + d*c.To.X,
		Y: a*c.From.Y + b*c.C1.Y + cc*c.C2.Y + d*c.To.Y,
	}
}

// Degenerate reports whether all four points coincide (a zero-length link).
func (c Curve) Degenerate() bool {
	return c.From == c.C1 && c.C1 == c.C2 && c.C2 == c.To
}

// SVGPath renders the curve as an SVG path "d" attribute.
func (c Curve) SVGPath() string {
	return fmt.Sprintf("M %s C %s, %s, %s",
		pathPoint(c.From), pathPoint(c.C1), pathPoint(c.C2), pathPoint(c.To))
}

func pathPoint(p Point) string {
	return fmt.Sprintf("%.2f %.2f", p.X, p.Y)
}
