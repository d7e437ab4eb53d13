package measure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/MeKo-Tech/plotmeter/internal/scale"
)

// InvalidPointSequenceError reports a point list that cannot be measured.
// Index is the offending point, or -1 when the list as a whole is wrong.
type InvalidPointSequenceError struct {
	Index  int
	Reason string
}

func (e *InvalidPointSequenceError) Error() string {
	if e.Index < 0 {
		return "invalid point sequence: " + e.Reason
	}
	return fmt.Sprintf("invalid point sequence: point %d: %s", e.Index, e.Reason)
}

// ValidatePoints checks that points form at least a line with finite
// coordinates.
func ValidatePoints(points []geometry.Point) error {
	if len(points) < 2 {
		return &InvalidPointSequenceError{Index: -1, Reason: fmt.Sprintf("need at least 2 points, got %d", len(points))}
	}
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return &InvalidPointSequenceError{Index: i, Reason: "coordinates must be finite numbers"}
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// ParsePoints decodes a JSON array whose elements are [x, y] pairs or
// {"x": .., "y": ..} objects.
func ParsePoints(data []byte) ([]geometry.Point, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidPointSequenceError{Index: -1, Reason: "expected a JSON array of points"}
	}
	points := make([]geometry.Point, 0, len(raw))
	for i, r := range raw {
		p, err := parsePoint(r)
		if err != nil {
			return nil, &InvalidPointSequenceError{Index: i, Reason: err.Error()}
		}
		points = append(points, p)
	}
	return points, nil
}

func parsePoint(r json.RawMessage) (geometry.Point, error) {
	r = bytes.TrimSpace(r)
	if len(r) == 0 {
		return geometry.Point{}, errors.New("empty point")
	}
	switch r[0] {
	case '[':
		var xy []float64
		if err := json.Unmarshal(r, &xy); err != nil {
			return geometry.Point{}, errors.New("pair must contain numbers")
		}
		if len(xy) != 2 {
			return geometry.Point{}, fmt.Errorf("expected [x, y], got %d values", len(xy))
		}
		return geometry.Point{X: xy[0], Y: xy[1]}, nil
	case '{':
		var obj struct {
			X *float64 `json:"x"`
			Y *float64 `json:"y"`
		}
		if err := json.Unmarshal(r, &obj); err != nil {
			return geometry.Point{}, errors.New("x and y must be numbers")
		}
		if obj.X == nil || obj.Y == nil {
			return geometry.Point{}, errors.New(`object needs both "x" and "y"`)
		}
		return geometry.Point{X: *obj.X, Y: *obj.Y}, nil
	default:
		return geometry.Point{}, errors.New("expected [x, y] or {\"x\": .., \"y\": ..}")
	}
}

// PointsRequest is the JSON body accepted by the points command, the
// coordinate endpoints and the websocket.
type PointsRequest struct {
	Points          json.RawMessage `json:"points"`
	ReferencePixels float64         `json:"reference_pixels,omitempty"`
	ReferenceLength float64         `json:"reference_length,omitempty"`
	ReferenceUnit   string          `json:"reference_unit,omitempty"`
	PixelsPerMeter  float64         `json:"pixels_per_meter,omitempty"`
	Zoom            *int            `json:"zoom,omitempty"`
	Lat             *float64        `json:"lat,omitempty"`
	ZoneType        string          `json:"zone_type,omitempty"`
}

// DecodePointsRequest accepts either a PointsRequest object or a bare point
// array.
func DecodePointsRequest(data []byte) (*PointsRequest, []geometry.Point, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		pts, err := ParsePoints(trimmed)
		return &PointsRequest{Points: trimmed}, pts, err
	}
	var req PointsRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, nil, &InvalidPointSequenceError{Index: -1, Reason: "malformed request body"}
	}
	if len(req.Points) == 0 {
		return &req, nil, &InvalidPointSequenceError{Index: -1, Reason: `missing "points"`}
	}
	pts, err := ParsePoints(req.Points)
	return &req, pts, err
}

// Scale returns the reference and zoom hint carried by the request, if any.
// A reference is present when either the span or the length is set, so that
// a half-filled reference is reported rather than silently ignored. A
// direct pixels_per_meter wins over the reference fields.
func (r *PointsRequest) Scale() (*scale.Reference, *scale.ZoomHint) {
	ref, hint := ScaleInputs(r.ReferencePixels, r.ReferenceLength, r.ReferenceUnit, r.Zoom, r.Lat)
	if r.PixelsPerMeter != 0 {
		ref = scale.NewReference(r.PixelsPerMeter, 1, string(geometry.Meters))
	}
	return ref, hint
}

// ScaleInputs builds the optional scale inputs from loose transport values.
// A zero span and length mean no reference; a nil zoom means no hint.
func ScaleInputs(refPixels, refLength float64, refUnit string, zoom *int, lat *float64) (*scale.Reference, *scale.ZoomHint) {
	var ref *scale.Reference
	if refPixels != 0 || refLength != 0 {
		ref = scale.NewReference(refPixels, refLength, refUnit)
	}
	var hint *scale.ZoomHint
	if zoom != nil {
		hint = &scale.ZoomHint{Zoom: *zoom}
		if lat != nil {
			hint.Latitude = *lat
		}
	}
	return ref, hint
}
