package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/MeKo-Tech/plotmeter/internal/utils"
)

func fillMask(m *utils.Mask, x0, y0, x1, y1 int) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			m.Set(x, y, true)
		}
	}
}

func TestTraceComponents_Rectangle(t *testing.T) {
	m := utils.NewMask(10, 10)
	fillMask(m, 2, 3, 5, 5)

	cs := traceComponents(m)
	require.Len(t, cs, 1)
	assert.Equal(t, []geometry.Point{{X: 2, Y: 3}, {X: 5, Y: 3}, {X: 5, Y: 5}, {X: 2, Y: 5}}, cs[0].Points)
	assert.InDelta(t, 6.0, cs[0].Area, 1e-9)
	assert.InDelta(t, 10.0, cs[0].Perimeter, 1e-9)
}

func TestTraceComponents_HollowSquareUsesOuterBoundary(t *testing.T) {
	m := utils.NewMask(30, 30)
	fillMask(m, 5, 5, 24, 24)
	for y := 7; y <= 22; y++ {
		for x := 7; x <= 22; x++ {
			m.Set(x, y, false)
		}
	}

	cs := traceComponents(m)
	require.Len(t, cs, 1)
	assert.Len(t, cs[0].Points, 4)
	assert.InDelta(t, 19.0*19.0, cs[0].Area, 1e-9)
}

func TestTraceComponents_SkipsEnclosedComponents(t *testing.T) {
	m := utils.NewMask(30, 30)
	fillMask(m, 2, 2, 25, 25)
	for y := 4; y <= 23; y++ {
		for x := 4; x <= 23; x++ {
			m.Set(x, y, false)
		}
	}
	fillMask(m, 10, 10, 14, 14)

	cs := traceComponents(m)
	require.Len(t, cs, 1)
	assert.InDelta(t, 23.0*23.0, cs[0].Area, 1e-9)
}

func TestTraceComponents_OrderIsRaster(t *testing.T) {
	m := utils.NewMask(20, 20)
	fillMask(m, 12, 1, 15, 4)
	fillMask(m, 1, 8, 6, 12)
	fillMask(m, 1, 1, 3, 3)

	cs := traceComponents(m)
	require.Len(t, cs, 3)
	assert.Equal(t, geometry.Point{X: 1, Y: 1}, cs[0].Points[0])
	assert.Equal(t, geometry.Point{X: 12, Y: 1}, cs[1].Points[0])
	assert.Equal(t, geometry.Point{X: 1, Y: 8}, cs[2].Points[0])
	for i, c := range cs {
		assert.Equal(t, i, c.Order)
	}
}

func TestTraceComponents_DiagonalIsOneComponent(t *testing.T) {
	m := maskFromRows(
		"#....",
		".#...",
		"..#..",
	)
	assert.Len(t, traceComponents(m), 1)
}

func TestTraceComponents_SinglePixelAndEmpty(t *testing.T) {
	m := utils.NewMask(5, 5)
	assert.Empty(t, traceComponents(m))

	m.Set(2, 2, true)
	cs := traceComponents(m)
	require.Len(t, cs, 1)
	assert.Equal(t, []geometry.Point{{X: 2, Y: 2}}, cs[0].Points)
	assert.Zero(t, cs[0].Area)
}

func TestTraceComponents_LShape(t *testing.T) {
	m := maskFromRows(
		"......",
		".####.",
		".####.",
		".##...",
		".##...",
		"......",
	)
	cs := traceComponents(m)
	require.Len(t, cs, 1)
	b := geometry.BoundsOf(cs[0].Points)
	assert.Equal(t, geometry.Bounds{MinX: 1, MinY: 1, MaxX: 4, MaxY: 4}, b)
	assert.Greater(t, cs[0].Area, 4.0)
	assert.Less(t, cs[0].Area, 9.0)
}

func TestExtractCandidates_DiscardsSmall(t *testing.T) {
	m := utils.NewMask(40, 40)
	fillMask(m, 1, 1, 3, 3)     // area 4
	fillMask(m, 10, 10, 30, 30) // area 400

	det := extractCandidates(m, 50)
	require.Len(t, det.Candidates, 1)
	assert.Equal(t, 1, det.Discarded)
	assert.Equal(t, 0, det.Candidates[0].Order)
	assert.InDelta(t, 400.0, det.Candidates[0].Area, 1e-9)
}
