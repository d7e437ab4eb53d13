package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/plotmeter/internal/config"
	"github.com/MeKo-Tech/plotmeter/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP measurement server",
		Long: `Start an HTTP server that measures uploaded images and coordinate lists.

Endpoints:
  POST /api/measure                    multipart "image" (PNG, JPEG, ..., PDF)
  POST /api/measure-with-visualization multipart "image", answers with a PNG overlay
  POST /api/measure-coordinates        JSON points body
  POST /api/measure-zones              JSON points body (3+ points), adds a zone summary
  POST /api/property-measurement-summary JSON zones in pixels, totals the property area
  GET  /ws/measure                     WebSocket, one points body per message
  GET  /health                         health check
  GET  /metrics                        Prometheus metrics

Examples:
  plotmeter serve
  plotmeter serve --host 0.0.0.0 --port 3000 --rate-limit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := a.httpServer()
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			shutdown := time.Duration(a.cfg.Server.ShutdownTimeout) * time.Second
			return runServer(ctx, srv, ln, shutdown, a.logger)
		},
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origin")
	f.Int("max-upload-mb", 50, "maximum upload size in MB")
	f.Int("timeout-sec", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "graceful shutdown timeout in seconds")
	f.Bool("rate-limit", false, "enable per-client rate limiting")

	a.bindFlags(cmd, map[string]string{
		"server.host":               "host",
		"server.port":               "port",
		"server.cors_origin":        "cors-origin",
		"server.max_upload_mb":      "max-upload-mb",
		"server.timeout_sec":        "timeout-sec",
		"server.shutdown_timeout":   "shutdown-timeout",
		"server.rate_limit.enabled": "rate-limit",
	})
	return cmd
}

// httpServer builds the measurement server from the loaded configuration.
func (a *app) httpServer() (*http.Server, error) {
	mc, err := a.cfg.ToMeasureConfig()
	if err != nil {
		return nil, err
	}
	sc := a.cfg.Server
	s, err := server.NewServer(server.Config{
		CORSOrigin:  sc.CORSOrigin,
		MaxUploadMB: int64(sc.MaxUploadMB),
		TimeoutSec:  sc.TimeoutSec,
		Engine:      mc,
		RateLimit:   limitsFor(sc.RateLimit),
		Logger:      a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	// The per-request timeout is applied by the server's middleware, so the
	// connection timeouts only guard against slow clients.
	return &http.Server{
		Addr:              sc.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelError),
	}, nil
}

func limitsFor(rl config.RateLimitConfig) *server.Limits {
	if !rl.Enabled {
		return nil
	}
	return &server.Limits{
		RequestsPerMinute: rl.RequestsPerMinute,
		RequestsPerHour:   rl.RequestsPerHour,
		MaxRequestsPerDay: rl.MaxRequestsPerDay,
		MaxDataPerDay:     rl.MaxDataPerDay,
	}
}

// runServer serves on ln until ctx is done, then shuts down gracefully
// within shutdown.
func runServer(ctx context.Context, srv *http.Server, ln net.Listener, shutdown time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting plotmeter server", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("starting graceful shutdown", "timeout", shutdown.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("graceful shutdown completed")
	return nil
}
