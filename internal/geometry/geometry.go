// Package geometry holds the pure numeric helpers every measurement is built on:
// distances, polyline lengths, polygon areas and unit conversions.
//
// Nothing in this package keeps state; identical input always yields identical output.
package geometry

import "math"

// Point is a 2D coordinate in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points.
func Distance(p1, p2 Point) float64 {
	return math.Hypot(p2.X-p1.X, p2.Y-p1.Y)
}

// PolylineLength sums the distances between consecutive points. When closed is
// true the segment from the last point back to the first is included.
func PolylineLength(points []Point, closed bool) float64 {
	if len(points) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	if closed {
		total += Distance(points[len(points)-1], points[0])
	}
	return total
}

// SignedArea returns the shoelace sum divided by two. The sign follows the
// winding order: positive for counter-clockwise in a y-up frame, which is
// clockwise on screen where y grows downwards.
func SignedArea(points []Point) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := range n {
		j := (i + 1) % n
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return sum / 2
}

// PolygonArea returns the enclosed area of a simple polygon. Fewer than three
// points enclose nothing and yield 0.
func PolygonArea(points []Point) float64 {
	return math.Abs(SignedArea(points))
}

// IsClosed reports whether the first and last points coincide within epsilon.
func IsClosed(points []Point, epsilon float64) bool {
	if len(points) < 2 {
		return false
	}
	return Distance(points[0], points[len(points)-1]) <= epsilon
}

// Close returns a copy of points with the first point appended at the end.
func Close(points []Point) []Point {
	out := make([]Point, len(points), len(points)+1)
	copy(out, points)
	if len(points) == 0 {
		return out
	}
	return append(out, points[0])
}

// Scale multiplies every coordinate by factor and returns a new slice.
func Scale(points []Point, factor float64) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{X: p.X * factor, Y: p.Y * factor}
	}
	return out
}
