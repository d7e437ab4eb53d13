package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// Bounds is an axis-aligned bounding rectangle.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Width of the rectangle.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height of the rectangle.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

func toLineString(points []Point) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.X, p.Y}
	}
	return ls
}

func fromLineString(ls orb.LineString) []Point {
	out := make([]Point, len(ls))
	for i, p := range ls {
		out[i] = Point{X: p[0], Y: p[1]}
	}
	return out
}

// Simplify reduces a path with Douglas-Peucker. Endpoints are kept. A
// non-positive tolerance or a path shorter than three points returns a copy.
func Simplify(points []Point, tolerance float64) []Point {
	if tolerance <= 0 || len(points) < 3 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}
	s := simplify.DouglasPeucker(tolerance).Simplify(toLineString(points))
	ls, ok := s.(orb.LineString)
	if !ok || len(ls) < 2 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}
	return fromLineString(ls)
}

// BoundsOf returns the bounding rectangle of points. Empty input yields the zero value.
func BoundsOf(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := toLineString(points).Bound()
	return Bounds{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
}
