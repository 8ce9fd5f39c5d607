package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

func serveProbes(t *testing.T, handler *healthcheck.Handler) (string, context.CancelFunc) {
	t.Helper()

	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	startMetricsServer(ctx, addr, log.WithField("test", "http"), handler)

	base := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/livez")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond, "metrics server did not start")

	return base, cancel
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMetricsServer_RuntimeProbes(t *testing.T) {
	rt, err := Build(context.Background(), fastConfig(), prometheus.NewRegistry(), log.WithField("test", "http"))
	require.NoError(t, err)
	defer func() { require.NoError(t, rt.Close()) }()

	base, _ := serveProbes(t, rt.Health)

	code, body := get(t, base+"/healthz")
	require.Equal(t, http.StatusOK, code)

	var report healthcheck.Response
	require.NoError(t, json.Unmarshal([]byte(body), &report))
	assert.Equal(t, healthcheck.StatusHealthy, report.Status)
	assert.Equal(t, version.GetVersion(), report.Version)
	assert.Contains(t, report.Checks, "storage")
	assert.Contains(t, report.Checks, "payment-breaker")

	code, body = get(t, base+"/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body)

	code, body = get(t, base+"/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsServer_DegradedStaysReady(t *testing.T) {
	handler := healthcheck.NewHandler(version.GetVersion())
	handler.RegisterChecker("totals-cache", healthcheck.NewOptionalChecker("totals-cache", func(context.Context) error {
		return errors.New("redis: connection refused")
	}))

	base, _ := serveProbes(t, handler)

	code, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"status":"degraded"`)

	code, _ = get(t, base+"/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestMetricsServer_UnhealthyStorage(t *testing.T) {
	handler := healthcheck.NewHandler(version.GetVersion())
	handler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func(context.Context) error {
		return errors.New("postgres: connection refused")
	}))

	base, _ := serveProbes(t, handler)

	code, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "postgres: connection refused")

	code, body = get(t, base+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", body)

	// liveness не зависит от проверок
	code, _ = get(t, base+"/livez")
	assert.Equal(t, http.StatusOK, code)
}

func TestMetricsServer_StopsOnContextCancel(t *testing.T) {
	base, cancel := serveProbes(t, healthcheck.NewHandler(version.GetVersion()))
	cancel()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/livez")
		if err != nil {
			return true
		}
		_ = resp.Body.Close()
		return false
	}, 3*time.Second, 20*time.Millisecond, "metrics server still serving after cancel")
}

func TestMetricsServer_InvalidAddrDoesNotPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := startMetricsServer(ctx, "invalid-address", log.WithField("test", "http"), healthcheck.NewHandler("test"))
	require.NotNil(t, srv)
	time.Sleep(50 * time.Millisecond)
}

func TestShutdownHTTP(t *testing.T) {
	shutdownHTTP(nil, log.WithField("test", "http"))

	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))
	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	shutdownHTTP(srv, log.WithField("test", "http"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
