package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/MeKo-Tech/plotmeter/internal/pdf"
	"github.com/MeKo-Tech/plotmeter/internal/preprocess"
	"github.com/MeKo-Tech/plotmeter/internal/render"
	"github.com/MeKo-Tech/plotmeter/internal/scale"
)

// ZonesResponse is the body of /api/measure-zones. Without a usable scale
// Zones only carries the pixel values and a note.
type ZonesResponse struct {
	measure.Result
	ZoneType string         `json:"zone_type,omitempty"`
	Zones    *measure.Zones `json:"zones"`
}

// PropertySummaryRequest is the body of /api/property-measurement-summary.
type PropertySummaryRequest struct {
	Zones          map[string]measure.ZoneInput `json:"zones"`
	PixelsPerMeter float64                      `json:"pixels_per_meter"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.health())
}

// measureImageHandler measures the boundary drawn on an uploaded image or
// PDF plan.
func (s *Server) measureImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, rep, ok := s.measureUpload(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, rep.Result)
}

// measureVisualizationHandler answers with the input image overlaid with
// the detected boundary and its measurements.
func (s *Server) measureVisualizationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	img, rep, ok := s.measureUpload(w, r)
	if !ok {
		return
	}

	out := render.Overlay(img, rep.Boundary, rep.Result, render.DefaultOptions())
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Line-Length", rep.Result.LineLength)
	w.Header().Set("X-Area", rep.Result.Area)
	w.Header().Set("X-Unit", rep.Result.Unit)
	if err := render.EncodePNG(w, out); err != nil {
		s.logger.Error("failed to write overlay", "error", err)
	}
}

func (s *Server) measureCoordinatesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, rep, ok := s.measurePoints(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, rep.Result)
}

func (s *Server) measureZonesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, rep, ok := s.measurePointsMin(w, r, measure.MinZonePoints)
	if !ok {
		return
	}

	zones, err := measure.ZoneSummary(rep, req.ZoneType)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, ZonesResponse{Result: rep.Result, ZoneType: req.ZoneType, Zones: zones})
}

// propertySummaryHandler converts the pixel measurements of several zones
// of one property and totals their area.
func (s *Server) propertySummaryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeRequestBodyError(w, err)
		return
	}

	var req PropertySummaryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeErrorResponse(w, "malformed request body", http.StatusBadRequest)
		return
	}
	summary, err := measure.PropertySummary(req.Zones, req.PixelsPerMeter)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), statusFor(err))
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// measurePoints decodes a points body and measures it. It writes the error
// response itself and reports whether the caller should continue.
func (s *Server) measurePoints(w http.ResponseWriter, r *http.Request) (*measure.PointsRequest, *measure.Report, bool) {
	return s.measurePointsMin(w, r, 0)
}

// measurePointsMin is measurePoints with a lower bound on the point count.
func (s *Server) measurePointsMin(w http.ResponseWriter, r *http.Request, minPoints int) (*measure.PointsRequest, *measure.Report, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeRequestBodyError(w, err)
		return nil, nil, false
	}

	req, pts, err := measure.DecodePointsRequest(body)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), statusFor(err))
		return nil, nil, false
	}
	if len(pts) < minPoints {
		err := &measure.InvalidPointSequenceError{Index: -1, Reason: fmt.Sprintf("at least %d points are required for area calculation", minPoints)}
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}
	ref, hint := req.Scale()
	rep, err := s.engine.FromPoints(r.Context(), pts, ref, hint)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), statusFor(err))
		return nil, nil, false
	}
	recordMeasurement(rep)
	return req, rep, true
}

// measureUpload reads the multipart "image" field and the scale fields and
// runs the image pipeline.
func (s *Server) measureUpload(w http.ResponseWriter, r *http.Request) (image.Image, *measure.Report, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeRequestBodyError(w, err)
		return nil, nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "no image file provided", http.StatusBadRequest)
		return nil, nil, false
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	ref, hint, err := scaleFromForm(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}

	img, err := s.decodeUpload(file, header, r.FormValue("page"), r.FormValue("password"))
	if err != nil {
		s.writeErrorResponse(w, err.Error(), statusFor(err))
		return nil, nil, false
	}

	rep, err := s.engine.FromImage(r.Context(), img, ref, hint)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), statusFor(err))
		return nil, nil, false
	}
	recordMeasurement(rep)
	return img, rep, true
}

func (s *Server) decodeUpload(file multipart.File, header *multipart.FileHeader, pages, password string) (image.Image, error) {
	if !pdf.IsPDF(header.Filename) {
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return preprocess.Decode(data)
	}

	// pdfcpu works on files.
	tmp, err := os.CreateTemp("", "plotmeter-upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("stage pdf upload: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("stage pdf upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("stage pdf upload: %w", err)
	}

	img, page, err := pdf.LoadPlan(tmp.Name(), pages, password)
	if err != nil {
		return nil, &preprocess.InvalidImageError{Reason: "cannot read PDF plan", Err: err}
	}
	s.logger.Debug("using embedded pdf image", "file", header.Filename, "page", page)
	return img, nil
}

// scaleFromForm reads the optional scale fields. Present but non-numeric
// fields are rejected; semantically invalid values are left to calibration.
func scaleFromForm(r *http.Request) (*scale.Reference, *scale.ZoomHint, error) {
	refPixels, err := formFloat(r, "reference_pixels")
	if err != nil {
		return nil, nil, err
	}
	refLength, err := formFloat(r, "reference_length")
	if err != nil {
		return nil, nil, err
	}

	var zoom *int
	if v := r.FormValue("zoom"); v != "" {
		z, err := strconv.Atoi(v)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid zoom %q", v)
		}
		zoom = &z
	}
	var lat *float64
	if v := r.FormValue("lat"); v != "" {
		l, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid lat %q", v)
		}
		lat = &l
	}

	ref, hint := measure.ScaleInputs(refPixels, refLength, r.FormValue("reference_unit"), zoom, lat)
	return ref, hint, nil
}

func formFloat(r *http.Request, key string) (float64, error) {
	v := r.FormValue(key)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return f, nil
}

func recordMeasurement(rep *measure.Report) {
	measurementsTotal.WithLabelValues(rep.Mode, rep.Result.Unit).Inc()
	if rep.Mode == measure.ModeImage && !rep.Found {
		boundariesNotFound.Inc()
	}
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var iie *preprocess.InvalidImageError
	var ipe *measure.InvalidPointSequenceError
	switch {
	case errors.As(err, &iie), errors.As(err, &ipe), errors.Is(err, measure.ErrInvalidZone):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeRequestBodyError(w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		s.writeErrorResponse(w, fmt.Sprintf("request body exceeds %d bytes", mbe.Limit), http.StatusRequestEntityTooLarge)
		return
	}
	s.writeErrorResponse(w, "failed to read request body", http.StatusBadRequest)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeErrorResponse writes {"error": message}.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
