// Package selector picks the boundary to measure from the detector's
// candidates and normalises point sequences into closed polygons.
package selector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/MeKo-Tech/plotmeter/internal/detector"
	"github.com/MeKo-Tech/plotmeter/internal/geometry"
)

// DefaultCloseEpsilon is the start/end gap in pixels below which a path
// already counts as closed.
const DefaultCloseEpsilon = 5.0

// PointsCloseTolerance is the start/end gap under which a user supplied
// point sequence counts as already closed. Coordinates are exact, so only
// float noise is forgiven.
const PointsCloseTolerance = 1e-9

// ErrNoBoundary is returned when there is nothing to select.
var ErrNoBoundary = errors.New("no boundary detected")

// Options controls selection.
type Options struct {
	CloseEpsilon      float64 // <= 0 uses DefaultCloseEpsilon
	SimplifyTolerance float64 // > 0 applies Douglas-Peucker before closing
}

// DefaultOptions returns the standard selection options.
func DefaultOptions() Options {
	return Options{CloseEpsilon: DefaultCloseEpsilon}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.CloseEpsilon < 0 {
		return fmt.Errorf("close epsilon must be >= 0, got %v", o.CloseEpsilon)
	}
	if o.SimplifyTolerance < 0 {
		return fmt.Errorf("simplify tolerance must be >= 0, got %v", o.SimplifyTolerance)
	}
	return nil
}

func (o Options) epsilon() float64 {
	if o.CloseEpsilon <= 0 {
		return DefaultCloseEpsilon
	}
	return o.CloseEpsilon
}

// Boundary is a polygon ready for measurement.
type Boundary struct {
	// Points form a closed ring: when AutoClosed is set the last point
	// repeats the first.
	Points     []geometry.Point `json:"points"`
	Closed     bool             `json:"closed"`
	AutoClosed bool             `json:"auto_closed"`
}

// Ranked is one candidate in selection order.
type Ranked struct {
	Rank  int     `json:"rank"`
	Order int     `json:"order"`
	Area  float64 `json:"area"`
}

// Selection is the outcome of Select.
type Selection struct {
	Boundary Boundary `json:"boundary"`
	Ranked   []Ranked `json:"ranked"`
	// Extra is the number of candidates that were not selected.
	Extra int `json:"extra"`
}

// ExtraAreas returns the approximate areas of the unselected candidates in
// rank order.
func (s *Selection) ExtraAreas() []float64 {
	if len(s.Ranked) < 2 {
		return nil
	}
	out := make([]float64, 0, len(s.Ranked)-1)
	for _, r := range s.Ranked[1:] {
		out = append(out, r.Area)
	}
	return out
}

// Rank orders candidates by area, largest first. Ties keep detection order.
func Rank(candidates []detector.Contour) []Ranked {
	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		ranked[i] = Ranked{Order: c.Order, Area: c.Area}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Area == ranked[j].Area {
			return ranked[i].Order < ranked[j].Order
		}
		return ranked[i].Area > ranked[j].Area
	})
	for i := range ranked {
		ranked[i].Rank = i
	}
	return ranked
}

// Select picks the largest candidate and closes its path if needed.
func Select(candidates []detector.Contour, opts Options) (*Selection, error) {
	if len(candidates) == 0 {
		return nil, ErrNoBoundary
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ranked := Rank(candidates)
	var chosen *detector.Contour
	for i := range candidates {
		if candidates[i].Order == ranked[0].Order {
			chosen = &candidates[i]
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("candidate order %d not found", ranked[0].Order)
	}

	// Simplify copies, so the boundary never aliases the candidate.
	pts := geometry.Simplify(chosen.Points, opts.SimplifyTolerance)
	var b Boundary
	if chosen.Closed && len(pts) >= 3 {
		b = Boundary{Points: pts, Closed: true}
	} else {
		b = closeBoundary(pts, opts.epsilon())
	}

	return &Selection{Boundary: b, Ranked: ranked, Extra: len(ranked) - 1}, nil
}

// NormalizePoints turns a user supplied point sequence into a boundary.
// Paths of three or more points whose first and last points differ are
// closed by appending the first point. Two-point paths stay open lines.
func NormalizePoints(points []geometry.Point) Boundary {
	if len(points) < 3 {
		out := make([]geometry.Point, len(points))
		copy(out, points)
		return Boundary{Points: out}
	}
	return closeBoundary(points, PointsCloseTolerance)
}

func closeBoundary(points []geometry.Point, epsilon float64) Boundary {
	if len(points) < 3 || geometry.IsClosed(points, epsilon) {
		out := make([]geometry.Point, len(points))
		copy(out, points)
		return Boundary{Points: out, Closed: len(points) >= 3}
	}
	return Boundary{Points: geometry.Close(points), Closed: true, AutoClosed: true}
}
