package testutil

import "github.com/MeKo-Tech/plotmeter/internal/geometry"

// PointFixture is a coordinate-mode input with its expected measurement.
type PointFixture struct {
	Name            string
	Points          []geometry.Point
	ReferencePixels float64
	ReferenceLength float64
	ReferenceUnit   string
	WantLength      string
	WantArea        string
	WantUnit        string
}

// SquareFixture is a 600 px square calibrated at 600 px = 10 m.
func SquareFixture() PointFixture {
	return PointFixture{
		Name:            "calibrated square",
		Points:          []geometry.Point{{X: 100, Y: 100}, {X: 700, Y: 100}, {X: 700, Y: 700}, {X: 100, Y: 700}},
		ReferencePixels: 600,
		ReferenceLength: 10,
		ReferenceUnit:   "meters",
		WantLength:      "40.00",
		WantArea:        "100.00",
		WantUnit:        "meters",
	}
}

// OpenTriangleFixture is an uncalibrated open path that must be auto-closed.
func OpenTriangleFixture() PointFixture {
	return PointFixture{
		Name:       "open triangle",
		Points:     []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}},
		WantLength: "34.14",
		WantArea:   "50.00",
		WantUnit:   "pixels",
	}
}

// Fixtures lists every coordinate fixture.
func Fixtures() []PointFixture {
	return []PointFixture{SquareFixture(), OpenTriangleFixture()}
}
