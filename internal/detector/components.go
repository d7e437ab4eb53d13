package detector

import (
	"github.com/MeKo-Tech/plotmeter/internal/mempool"
	"github.com/MeKo-Tech/plotmeter/internal/utils"
)

// component is one 8-connected region of a mask.
type component struct {
	label          int32
	startX, startY int // first pixel in raster order
	pixels         int
	external       bool // touches the background connected to the image border
}

var (
	dx8 = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	dy8 = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// labelComponents assigns a label (1-based) to every 8-connected region of
// mask, seeding in raster order. labels must have len w*h and be zeroed.
func labelComponents(mask *utils.Mask, labels []int32) []component {
	w, h := mask.Width, mask.Height
	var comps []component
	queue := make([]int, 0, 256)

	for i, set := range mask.Pix {
		if !set || labels[i] != 0 {
			continue
		}
		c := component{label: int32(len(comps) + 1), startX: i % w, startY: i / w}
		labels[i] = c.label
		queue = append(queue[:0], i)
		for len(queue) > 0 {
			ci := queue[0]
			queue = queue[1:]
			c.pixels++
			cx, cy := ci%w, ci/w
			for k := range 8 {
				nx, ny := cx+dx8[k], cy+dy8[k]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if mask.Pix[ni] && labels[ni] == 0 {
					labels[ni] = c.label
					queue = append(queue, ni)
				}
			}
		}
		comps = append(comps, c)
	}
	return comps
}

// markExternal flags the components that are not enclosed by another
// component. Background pixels reachable from the image border through
// 4-connected background are outside; any component touching them, or the
// border itself, is external.
func markExternal(mask *utils.Mask, labels []int32, comps []component) {
	w, h := mask.Width, mask.Height
	outside := mempool.GetBool(w * h)
	defer mempool.PutBool(outside)

	stack := make([]int, 0, 256)
	push := func(x, y int) {
		i := y*w + x
		if mask.Pix[i] {
			comps[labels[i]-1].external = true
			return
		}
		if !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := range w {
		push(x, 0)
		push(x, h-1)
	}
	for y := range h {
		push(0, y)
		push(w-1, y)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		if x > 0 {
			push(x-1, y)
		}
		if x < w-1 {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y < h-1 {
			push(x, y+1)
		}
	}
}

// traceComponents returns the outer contour of every external component of
// mask, in raster order of the components' first pixels.
func traceComponents(mask *utils.Mask) []Contour {
	if mask.Width == 0 || mask.Height == 0 {
		return nil
	}
	labels := mempool.GetInt32(mask.Width * mask.Height)
	defer mempool.PutInt32(labels)

	comps := labelComponents(mask, labels)
	if len(comps) == 0 {
		return nil
	}
	markExternal(mask, labels, comps)

	contours := make([]Contour, 0, len(comps))
	for _, c := range comps {
		if !c.external {
			continue
		}
		pts := traceBoundary(labels, mask.Width, mask.Height, c)
		contours = append(contours, NewContour(pts, len(contours)))
	}
	return contours
}
