package cmd

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/MeKo-Tech/plotmeter/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T) *app {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	return &app{cfg: &cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestLimitsFor(t *testing.T) {
	rl := config.DefaultConfig().Server.RateLimit
	assert.Nil(t, limitsFor(rl))

	rl.Enabled = true
	l := limitsFor(rl)
	require.NotNil(t, l)
	assert.Equal(t, rl.RequestsPerMinute, l.RequestsPerMinute)
	assert.Equal(t, rl.MaxDataPerDay, l.MaxDataPerDay)
}

func TestHTTPServer(t *testing.T) {
	a := testApp(t)
	srv, err := a.httpServer()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", srv.Addr)
	assert.NotZero(t, srv.ReadHeaderTimeout)

	a.cfg.Detector.MarkerColors = []string{"purple"}
	_, err = a.httpServer()
	require.Error(t, err)
}

func TestRunServerShutsDownOnCancel(t *testing.T) {
	a := testApp(t)
	srv, err := a.httpServer()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, ln, 5*time.Second, a.logger) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeCommandRejectsInvalidPort(t *testing.T) {
	isolate(t)
	_, _, err := run(t, nil, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}
