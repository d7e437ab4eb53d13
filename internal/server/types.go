// Package server exposes the measurement engine over HTTP and WebSocket.
package server

import (
	"context"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/MeKo-Tech/plotmeter/internal/scale"
	"github.com/MeKo-Tech/plotmeter/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// measurer is the part of *measure.Engine the handlers use.
type measurer interface {
	FromImage(ctx context.Context, img image.Image, ref *scale.Reference, hint *scale.ZoomHint) (*measure.Report, error)
	FromPoints(ctx context.Context, points []geometry.Point, ref *scale.Reference, hint *scale.ZoomHint) (*measure.Report, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	engine      measurer
	logger      *slog.Logger
	corsOrigin  string
	maxUpload   int64 // bytes
	timeout     time.Duration
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	Engine      measure.Config
	// RateLimit enables per-client limits when non-nil.
	RateLimit *Limits
	Logger    *slog.Logger
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the measurement engine and wraps it in a Server.
func NewServer(cfg Config) (*Server, error) {
	eng, err := measure.NewBuilder().WithConfig(cfg.Engine).WithLogger(cfg.Logger).Build()
	if err != nil {
		return nil, err
	}
	return newServer(eng, cfg), nil
}

func newServer(eng measurer, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 50
	}
	s := &Server{
		engine:     eng,
		logger:     logger,
		corsOrigin: origin,
		maxUpload:  maxMB << 20,
		timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
	}
	if cfg.RateLimit != nil {
		s.rateLimiter = NewRateLimiter(*cfg.RateLimit)
	}
	return s
}

// SetupRoutes registers every endpoint on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	api := func(h http.HandlerFunc) http.HandlerFunc {
		return s.corsMiddleware(s.rateLimitMiddleware(s.timeoutMiddleware(h)))
	}

	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/measure", api(s.measureImageHandler))
	mux.HandleFunc("/api/measure-coordinates", api(s.measureCoordinatesHandler))
	mux.HandleFunc("/api/measure-with-visualization", api(s.measureVisualizationHandler))
	mux.HandleFunc("/api/measure-zones", api(s.measureZonesHandler))
	mux.HandleFunc("/api/property-measurement-summary", api(s.propertySummaryHandler))
	mux.HandleFunc("/ws/measure", s.corsMiddleware(s.rateLimitMiddleware(s.measureWebSocketHandler)))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) health() HealthResponse {
	return HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
}
