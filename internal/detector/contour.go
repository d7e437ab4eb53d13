package detector

import "github.com/MeKo-Tech/plotmeter/internal/geometry"

// dirIndex returns the position of (dx, dy) in the clockwise neighbour order.
func dirIndex(dx, dy int) int {
	for i := range 8 {
		if dx8[i] == dx && dy8[i] == dy {
			return i
		}
	}
	return 0
}

// traceBoundary follows the outer boundary of component c clockwise with
// Moore-neighbour tracing, starting at its first raster pixel. Points are
// integer pixel coordinates with runs of collinear points collapsed to their
// ends.
func traceBoundary(labels []int32, w, h int, c component) []geometry.Point {
	inside := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == c.label
	}

	sx, sy := c.startX, c.startY
	pts := []geometry.Point{{X: float64(sx), Y: float64(sy)}}

	// The raster-first pixel has no set neighbour to its west.
	cx, cy, back := sx, sy, 4
	firstX, firstY := -1, -1
	maxSteps := 4*c.pixels + 8

	for range maxSteps {
		nx, ny, nback, ok := nextBoundaryPixel(inside, cx, cy, back)
		if !ok {
			break
		}
		if firstX < 0 {
			firstX, firstY = nx, ny
		} else if cx == sx && cy == sy && nx == firstX && ny == firstY {
			break
		}
		cx, cy, back = nx, ny, nback
		pts = appendTrimmed(pts, geometry.Point{X: float64(cx), Y: float64(cy)})
	}

	if n := len(pts); n > 1 && pts[n-1] == pts[0] {
		pts = pts[:n-1]
	}
	return trimWrap(pts)
}

// nextBoundaryPixel scans the neighbours of (cx, cy) clockwise starting just
// after the backtrack direction. It returns the first pixel inside the
// component and the new backtrack direction, which points from the found
// pixel to the last neighbour examined before it.
func nextBoundaryPixel(inside func(x, y int) bool, cx, cy, back int) (int, int, int, bool) {
	for k := 1; k <= 8; k++ {
		i := (back + k) % 8
		nx, ny := cx+dx8[i], cy+dy8[i]
		if !inside(nx, ny) {
			continue
		}
		j := (i + 7) % 8
		px, py := cx+dx8[j], cy+dy8[j]
		return nx, ny, dirIndex(px-nx, py-ny), true
	}
	return 0, 0, 0, false
}

// collinear reports whether b lies on the straight continuation from a to c.
// Reversals (spikes) are not collinear.
func collinear(a, b, c geometry.Point) bool {
	v1x, v1y := b.X-a.X, b.Y-a.Y
	v2x, v2y := c.X-b.X, c.Y-b.Y
	return v1x*v2y-v1y*v2x == 0 && v1x*v2x+v1y*v2y > 0
}

func appendTrimmed(pts []geometry.Point, p geometry.Point) []geometry.Point {
	if n := len(pts); n >= 2 && collinear(pts[n-2], pts[n-1], p) {
		pts = pts[:n-1]
	}
	return append(pts, p)
}

// trimWrap removes collinear points across the seam between the last and
// first point of a closed contour.
func trimWrap(pts []geometry.Point) []geometry.Point {
	if n := len(pts); n >= 3 && collinear(pts[n-2], pts[n-1], pts[0]) {
		pts = pts[:n-1]
	}
	if n := len(pts); n >= 3 && collinear(pts[n-1], pts[0], pts[1]) {
		pts = pts[1:]
	}
	return pts
}
