//go:build gocv

package detector

import (
	"image"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/MeKo-Tech/plotmeter/internal/preprocess"
	"github.com/MeKo-Tech/plotmeter/internal/utils"
	"gocv.io/x/gocv"
)

// GoCVAvailable reports whether the binary was built with the OpenCV backend.
const GoCVAvailable = true

// detectGoCV runs denoise, CLAHE, threshold, Canny, color masks and contour
// extraction in OpenCV on src, with the same parameters as the native stages.
func detectGoCV(src image.Image, pc preprocess.Config, cfg Config) (*Detection, error) {
	rgb, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return nil, &ProcessingError{Operation: "gocv convert", Err: err}
	}
	defer rgb.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)

	denoised := gocv.NewMat()
	defer denoised.Close()
	if pc.DenoiseStrength > 0 {
		gocv.FastNlMeansDenoisingWithParams(gray, &denoised, float32(pc.DenoiseStrength), pc.TemplateWindow, pc.SearchWindow)
	} else {
		gray.CopyTo(&denoised)
	}

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	if pc.ClaheClip > 0 {
		clahe := gocv.NewCLAHEWithParams(pc.ClaheClip, image.Pt(pc.ClaheTiles, pc.ClaheTiles))
		clahe.Apply(denoised, &enhanced)
		clahe.Close()
	} else {
		denoised.CopyTo(&enhanced)
	}

	rows, cols := enhanced.Rows(), enhanced.Cols()
	combined := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
	defer combined.Close()
	stats := map[string]int{}

	orInto := func(name string, m gocv.Mat) {
		stats[name] = gocv.CountNonZero(m)
		gocv.BitwiseOr(combined, m, &combined)
	}

	if cfg.UseColors {
		hsv := gocv.NewMat()
		defer hsv.Close()
		gocv.CvtColor(rgb, &hsv, gocv.ColorRGBToHSV)
		colors := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
		defer colors.Close()
		for _, mc := range cfg.MarkerColors {
			for _, r := range mc.Ranges() {
				m := gocv.NewMat()
				gocv.InRangeWithScalar(hsv,
					gocv.NewScalar(r.HMin, r.SMin, r.VMin, 0),
					gocv.NewScalar(r.HMax, r.SMax, r.VMax, 0), &m)
				gocv.BitwiseOr(colors, m, &colors)
				m.Close()
			}
		}
		orInto("color", colors)
	}
	if cfg.UseEdges {
		edges := gocv.NewMat()
		defer edges.Close()
		low, high := cfg.CannyLow, cfg.CannyHigh
		if low == 0 && high == 0 {
			g, err := enhanced.ToImage()
			if err != nil {
				return nil, &ProcessingError{Operation: "gocv thresholds", Err: err}
			}
			low, high = AutoThresholds(utils.ToGray(g))
		}
		gocv.Canny(enhanced, &edges, float32(low), float32(high))
		orInto("edges", edges)
	}
	if cfg.UseThreshold {
		binary := gocv.NewMat()
		defer binary.Close()
		gocv.AdaptiveThreshold(enhanced, &binary, 255,
			gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, pc.ThresholdBlock, float32(pc.ThresholdC))
		orInto("threshold", binary)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(cfg.KernelSize, cfg.KernelSize))
	defer kernel.Close()
	for range cfg.DilateIterations + cfg.CloseIterations {
		gocv.Dilate(combined, &combined, kernel)
	}
	for range cfg.CloseIterations {
		gocv.Erode(combined, &combined, kernel)
	}
	stats["combined"] = gocv.CountNonZero(combined)

	contours := gocv.FindContours(combined, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	det := &Detection{Width: cols, Height: rows, MaskPixels: stats}
	for i := range contours.Size() {
		pv := contours.At(i)
		area := gocv.ContourArea(pv)
		if area <= cfg.MinArea {
			det.Discarded++
			continue
		}
		raw := pv.ToPoints()
		pts := make([]geometry.Point, len(raw))
		for j, p := range raw {
			pts[j] = geometry.Point{X: float64(p.X), Y: float64(p.Y)}
		}
		det.Candidates = append(det.Candidates, Contour{
			Points:    pts,
			Area:      area,
			Perimeter: gocv.ArcLength(pv, true),
			Closed:    true,
			Order:     len(det.Candidates),
		})
	}
	return det, nil
}
