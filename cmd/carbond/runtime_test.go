package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeServesAPIAndMetrics(t *testing.T) {
	cfg := Config{
		HTTPAddr:        "127.0.0.1:0",
		BasePath:        "/carbon",
		RequestTimeout:  time.Second,
		ShutdownTimeout: time.Second,
		Governor:        testGovernor,
		Backend:         backendMemory,
		JWTSecret:       "test-secret",
		JWTIssuer:       "carbond",
		AuditLog:        true,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rt, err := NewRuntime(context.Background(), cfg, logger)
	require.NoError(t, err)
	require.NoError(t, rt.engine.Start(context.Background()))
	t.Cleanup(func() { _ = rt.engine.Stop() })

	ts := httptest.NewServer(rt.httpServer.Handler)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/carbon/governor")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), testGovernor)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRuntimeRejectsBadGovernor(t *testing.T) {
	cfg := Config{Governor: "0xnope", Backend: backendMemory, JWTSecret: "s"}
	_, err := NewRuntime(context.Background(), cfg, slog.Default())
	assert.ErrorContains(t, err, "governor")
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := Config{
		HTTPAddr:        "127.0.0.1:0",
		BasePath:        "/carbon",
		ShutdownTimeout: time.Second,
		Governor:        testGovernor,
		Backend:         backendMemory,
		JWTSecret:       "test-secret",
	}
	rt, err := NewRuntime(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
