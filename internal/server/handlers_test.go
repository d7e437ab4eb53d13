package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/MeKo-Tech/plotmeter/internal/preprocess"
	"github.com/MeKo-Tech/plotmeter/internal/scale"
	"github.com/MeKo-Tech/plotmeter/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	mc := measure.DefaultConfig()
	mc.Preprocess.TemplateWindow = 3
	mc.Preprocess.SearchWindow = 7
	cfg.Engine = mc
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

// failingEngine returns err from every call.
type failingEngine struct{ err error }

func (f failingEngine) FromImage(context.Context, image.Image, *scale.Reference, *scale.ZoomHint) (*measure.Report, error) {
	return nil, f.err
}

func (f failingEngine) FromPoints(context.Context, []geometry.Point, *scale.Reference, *scale.ZoomHint) (*measure.Report, error) {
	return nil, f.err
}

func multipartRequest(t *testing.T, path, filename string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if file != nil {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) measure.Result {
	t.Helper()
	var res measure.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, Config{})

	w := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Version)
	assert.NotEmpty(t, resp.Time)

	w = serve(s, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPreflight(t *testing.T) {
	s := newTestServer(t, Config{CORSOrigin: "https://plots.example"})

	w := serve(s, httptest.NewRequest(http.MethodOptions, "/api/measure", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://plots.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Config{})
	serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	w := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "plotmeter_http_requests_total")
}

func TestMeasureCoordinates(t *testing.T) {
	s := newTestServer(t, Config{})

	for _, fx := range testutil.Fixtures() {
		t.Run(fx.Name, func(t *testing.T) {
			body, err := json.Marshal(map[string]any{
				"points":           fx.Points,
				"reference_pixels": fx.ReferencePixels,
				"reference_length": fx.ReferenceLength,
				"reference_unit":   fx.ReferenceUnit,
			})
			require.NoError(t, err)

			w := serve(s, httptest.NewRequest(http.MethodPost, "/api/measure-coordinates", bytes.NewReader(body)))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			res := decodeResult(t, w)
			assert.Equal(t, fx.WantLength, res.LineLength)
			assert.Equal(t, fx.WantArea, res.Area)
			assert.Equal(t, fx.WantUnit, res.Unit)
		})
	}
}

func TestMeasureCoordinates_BareArray(t *testing.T) {
	s := newTestServer(t, Config{})

	w := serve(s, httptest.NewRequest(http.MethodPost, "/api/measure-coordinates",
		strings.NewReader(`[[0,0],[10,0],[10,10],[0,10]]`)))
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult(t, w)
	assert.Equal(t, "40.00", res.LineLength)
	assert.Equal(t, "100.00", res.Area)
	assert.Equal(t, "pixels", res.Unit)
}

func TestMeasureCoordinates_InvalidInput(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name string
		body string
	}{
		{"single point", `{"points": [[1, 2]]}`},
		{"empty", `{"points": []}`},
		{"missing points", `{"reference_pixels": 10}`},
		{"malformed json", `{"points": [[1, 2]`},
		{"bad coordinate", `{"points": [[1, "a"], [2, 3]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, httptest.NewRequest(http.MethodPost, "/api/measure-coordinates", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, "invalid point sequence")
		})
	}
}

func TestMeasureCoordinates_InvalidScaleFallsBack(t *testing.T) {
	s := newTestServer(t, Config{})

	w := serve(s, httptest.NewRequest(http.MethodPost, "/api/measure-coordinates",
		strings.NewReader(`{"points": [[0,0],[10,0],[10,10]], "reference_pixels": -5, "reference_length": 2}`)))
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult(t, w)
	assert.Equal(t, "pixels", res.Unit)
	assert.Contains(t, res.Notes, "Invalid scale reference")
}

func TestMeasureZones(t *testing.T) {
	s := newTestServer(t, Config{})
	fx := testutil.SquareFixture()
	body, err := json.Marshal(map[string]any{
		"points":           fx.Points,
		"reference_pixels": fx.ReferencePixels,
		"reference_length": fx.ReferenceLength,
		"zone_type":        "front_yard",
	})
	require.NoError(t, err)

	w := serve(s, httptest.NewRequest(http.MethodPost, "/api/measure-zones", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ZonesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "100.00", resp.Area)
	assert.Equal(t, "front_yard", resp.ZoneType)
	require.NotNil(t, resp.Zones)
	assert.InDelta(t, 100.0, resp.Zones.Area["square_meters"], 1e-9)
	assert.InDelta(t, 1076.39, resp.Zones.Area["square_feet"], 0.01)
	assert.InDelta(t, 40.0, resp.Zones.Perimeter["meters"], 1e-9)
}

func TestMeasureZones_Uncalibrated(t *testing.T) {
	s := newTestServer(t, Config{})

	w := serve(s, httptest.NewRequest(http.MethodPost, "/api/measure-zones",
		strings.NewReader(`{"points": [[0,0],[10,0],[10,10]], "zone_type": "house"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ZonesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pixels", resp.Unit)
	require.NotNil(t, resp.Zones)
	assert.InDelta(t, 50.0, resp.Zones.AreaSqPixels, 1e-9)
	assert.InDelta(t, 34.14, resp.Zones.PerimeterPixels, 1e-9)
	assert.Nil(t, resp.Zones.Area)
	assert.Equal(t, "No scale provided. Measurements in pixels only.", resp.Zones.Note)
}

func TestMeasureZones_PixelsPerMeter(t *testing.T) {
	s := newTestServer(t, Config{})

	w := serve(s, httptest.NewRequest(http.MethodPost, "/api/measure-zones",
		strings.NewReader(`{"points": [[0,0],[100,0],[100,100],[0,100]], "pixels_per_meter": 10, "zone_type": "garden"}`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ZonesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "meters", resp.Unit)
	assert.Equal(t, "100.00", resp.Area)
	require.NotNil(t, resp.Zones)
	assert.InDelta(t, 10.0, resp.Zones.PixelsPerMeter, 1e-9)
	assert.InDelta(t, 100.0, resp.Zones.Area["square_meters"], 1e-9)
	assert.InDelta(t, 10000.0, resp.Zones.AreaSqPixels, 1e-9)
}

func TestMeasureZones_TooFewPoints(t *testing.T) {
	s := newTestServer(t, Config{})

	w := serve(s, httptest.NewRequest(http.MethodPost, "/api/measure-zones",
		strings.NewReader(`{"points": [[0,0],[10,0]], "zone_type": "house"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "at least 3 points")
}

func TestPropertySummary(t *testing.T) {
	s := newTestServer(t, Config{})

	w := serve(s, httptest.NewRequest(http.MethodPost, "/api/property-measurement-summary",
		strings.NewReader(`{"pixels_per_meter": 10, "zones": {
			"house": {"area_pixels": 10000, "perimeter_pixels": 400},
			"garden": {"area_pixels": 20000}
		}}`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp measure.Property
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 300.0, resp.PropertyTotal.Area["square_meters"], 1e-9)
	require.Contains(t, resp.Zones, "house")
	assert.InDelta(t, 40.0, resp.Zones["house"].Perimeter["meters"], 1e-9)
	assert.Nil(t, resp.Zones["garden"].Perimeter)
}

func TestPropertySummary_Rejects(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing scale", `{"zones": {"house": {"area_pixels": 100}}}`, http.StatusBadRequest},
		{"negative area", `{"pixels_per_meter": 10, "zones": {"house": {"area_pixels": -1}}}`, http.StatusBadRequest},
		{"malformed", `{"zones": [`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(s, httptest.NewRequest(http.MethodPost, "/api/property-measurement-summary", strings.NewReader(tc.body)))
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}

	w := serve(s, httptest.NewRequest(http.MethodGet, "/api/property-measurement-summary", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMeasureImage(t *testing.T) {
	s := newTestServer(t, Config{})
	img := testutil.SquarePlot(160, 160, image.Rect(40, 40, 120, 120))

	req := multipartRequest(t, "/api/measure", "plot.png", testutil.PNGBytes(t, img), map[string]string{
		"reference_pixels": "80",
		"reference_length": "8",
		"reference_unit":   "meters",
	})
	w := serve(s, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decodeResult(t, w)
	assert.Equal(t, "meters", res.Unit)
	assert.Contains(t, res.Notes, "Scale applied")
	assert.NotEqual(t, "0.00", res.Area)
}

func TestMeasureImage_BlankImage(t *testing.T) {
	s := newTestServer(t, Config{})
	blank := testutil.Canvas(48, 48, testutil.White)

	w := serve(s, multipartRequest(t, "/api/measure", "blank.png", testutil.PNGBytes(t, blank), nil))
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult(t, w)
	assert.Equal(t, measure.Result{
		LineLength: "0.00",
		Area:       "0.00",
		Unit:       "pixels",
		Notes:      res.Notes,
	}, res)
	assert.Contains(t, res.Notes, "no boundary detected")
}

func TestMeasureImage_BadRequests(t *testing.T) {
	s := newTestServer(t, Config{})
	pngData := testutil.PNGBytes(t, testutil.Canvas(8, 8, testutil.White))

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"no file", multipartRequest(t, "/api/measure", "", nil, map[string]string{"zoom": "18"}), http.StatusBadRequest},
		{"not an image", multipartRequest(t, "/api/measure", "plot.png", []byte("definitely not a png"), nil), http.StatusBadRequest},
		{"non-numeric scale", multipartRequest(t, "/api/measure", "plot.png", pngData,
			map[string]string{"reference_pixels": "many"}), http.StatusBadRequest},
		{"bad zoom", multipartRequest(t, "/api/measure", "plot.png", pngData, map[string]string{"zoom": "close"}), http.StatusBadRequest},
		{"wrong method", httptest.NewRequest(http.MethodGet, "/api/measure", nil), http.StatusMethodNotAllowed},
		{"broken pdf", multipartRequest(t, "/api/measure", "plan.pdf", []byte("%PDF-1.4 junk"), nil), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, tt.req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestMeasureImage_TooLarge(t *testing.T) {
	s := newTestServer(t, Config{MaxUploadMB: 1})
	big := bytes.Repeat([]byte{0xff}, 2<<20)

	w := serve(s, multipartRequest(t, "/api/measure", "huge.png", big, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMeasureWithVisualization(t *testing.T) {
	s := newTestServer(t, Config{})
	img := testutil.SquarePlot(120, 100, image.Rect(30, 25, 90, 75))

	w := serve(s, multipartRequest(t, "/api/measure-with-visualization", "plot.png", testutil.PNGBytes(t, img), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "pixels", w.Header().Get("X-Unit"))

	out, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), out.Bounds())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&preprocess.InvalidImageError{Reason: "x"}, http.StatusBadRequest},
		{&measure.InvalidPointSequenceError{Index: -1, Reason: "x"}, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestEngineFailureIs500(t *testing.T) {
	s := newServer(failingEngine{err: errors.New("detector exploded")}, Config{})

	w := serve(s, httptest.NewRequest(http.MethodPost, "/api/measure-coordinates",
		strings.NewReader(`[[0,0],[1,1]]`)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "detector exploded")
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t, Config{RateLimit: &Limits{RequestsPerMinute: 1}})
	body := `[[0,0],[10,0],[10,10]]`

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/measure-coordinates", strings.NewReader(body))
		r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		return r
	}

	require.Equal(t, http.StatusOK, serve(s, req()).Code)
	w := serve(s, req())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "minute", w.Header().Get("X-RateLimit-Type"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", getClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", getClientIP(r))
}
