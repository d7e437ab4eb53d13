package measure

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/plotmeter/internal/scale"
	"github.com/MeKo-Tech/plotmeter/internal/selector"
)

// maxListedAreas caps how many extra candidate areas are spelled out.
const maxListedAreas = 5

const (
	noBoundaryNote = "No drawn lines detected in the image; no boundary detected."
	noExtrasNote   = "No extra candidate contours."
	unmeasuredNote = "Scale not applied: nothing was measured."
)

type notes []string

func (n notes) String() string { return strings.Join(n, " ") }

func trimFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func scaleNote(c scale.Calibration) string {
	switch c.Source {
	case scale.SourceReference:
		r := c.Reference
		return fmt.Sprintf("Scale applied: %s %s = %s pixels (%s px/m).",
			trimFloat(r.RealLength), r.Unit, trimFloat(r.PixelSpan), FormatValue(c.PixelsPerMeter))
	case scale.SourceZoomEstimate:
		msg := fmt.Sprintf("Scale estimated from zoom level %d at latitude %s (low confidence).",
			c.Hint.Zoom, trimFloat(c.Hint.Latitude))
		if c.Err != nil {
			msg = fmt.Sprintf("Invalid scale reference (%v); %s", c.Err, msg)
		}
		return msg
	default:
		msg := "No reference scale provided. Measurements in pixels only."
		if c.Err != nil {
			msg = fmt.Sprintf("Invalid scale reference (%v); %s", c.Err, msg)
		}
		return msg
	}
}

// unmeasuredScaleNote describes the scale of a zero result, which is always
// in pixels.
func unmeasuredScaleNote(c scale.Calibration) string {
	if c.Calibrated() {
		return unmeasuredNote
	}
	return scaleNote(c)
}

func closureNote(closed, autoClosed bool) string {
	switch {
	case autoClosed:
		return "Boundary was open and was auto-closed."
	case closed:
		return "Boundary was closed."
	default:
		return "Boundary is an open line; it encloses no area."
	}
}

func extrasNote(sel *selector.Selection) string {
	areas := sel.ExtraAreas()
	if len(areas) == 0 {
		return noExtrasNote
	}
	listed := make([]string, 0, min(len(areas), maxListedAreas))
	for i, a := range areas {
		if i == maxListedAreas {
			listed = append(listed, "...")
			break
		}
		listed = append(listed, FormatValue(a)+" px²")
	}
	return fmt.Sprintf("Discarded %d extra candidate contour(s) (approx. areas: %s).",
		len(areas), strings.Join(listed, ", "))
}

func noiseNote(discarded int, minArea float64) string {
	return fmt.Sprintf("Ignored %d noise contour(s) at or below %s px².", discarded, FormatValue(minArea))
}
