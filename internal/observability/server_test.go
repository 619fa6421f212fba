package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready)
	if _, err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec // test-local URL
	if err != nil {
		t.Fatalf("failed to GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, func() bool { return true })

	status, body := get(t, "http://"+server.Addr()+"/metrics")
	if status != http.StatusOK {
		t.Errorf("expected status 200, got %d", status)
	}
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("expected Prometheus exposition format")
	}
	if !strings.Contains(body, "go_") {
		t.Error("expected go_* metrics")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process_* metrics")
	}
}

func TestServer_CustomMetricsIncrement(t *testing.T) {
	server := startServer(t, func() bool { return true })

	metrics := server.Metrics()
	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	metrics.AuthAttemptsTotal.WithLabelValues("login", "wrong_password").Inc()
	metrics.AuthAttemptsTotal.WithLabelValues("login", "wrong_password").Inc()
	metrics.StoreFailuresTotal.WithLabelValues("check session").Inc()
	metrics.MovesSuppressedTotal.WithLabelValues("not_logged_in").Inc()
	metrics.ConnectionsTotal.WithLabelValues("connect").Inc()

	_, body := get(t, "http://"+server.Addr()+"/metrics")

	checks := []string{
		`authflux_auth_attempts_total{command="login",outcome="success"} 1`,
		`authflux_auth_attempts_total{command="login",outcome="wrong_password"} 2`,
		`authflux_store_failures_total{operation="check session"} 1`,
		`authflux_moves_suppressed_total{reason="not_logged_in"} 1`,
		`authflux_connections_total{event="connect"} 1`,
	}
	for _, want := range checks {
		if !strings.Contains(body, want) {
			t.Errorf("expected metric %q in output", want)
		}
	}
}

func TestServer_LivenessReturns200(t *testing.T) {
	server := startServer(t, nil)

	status, body := get(t, "http://"+server.Addr()+"/healthz/liveness")
	if status != http.StatusOK {
		t.Errorf("expected status 200, got %d", status)
	}
	if strings.TrimSpace(body) != "ok" {
		t.Errorf("expected body 'ok', got %q", body)
	}
}

func TestServer_Readiness(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		server := startServer(t, func() bool { return true })

		status, body := get(t, "http://"+server.Addr()+"/healthz/readiness")
		if status != http.StatusOK {
			t.Errorf("expected status 200, got %d", status)
		}
		if strings.TrimSpace(body) != "ok" {
			t.Errorf("expected body 'ok', got %q", body)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		server := startServer(t, func() bool { return false })

		status, body := get(t, "http://"+server.Addr()+"/healthz/readiness")
		if status != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", status)
		}
		if strings.TrimSpace(body) != "not ready" {
			t.Errorf("expected body 'not ready', got %q", body)
		}
	})

	t.Run("nil checker defaults to ready", func(t *testing.T) {
		server := startServer(t, nil)

		status, _ := get(t, "http://"+server.Addr()+"/healthz/readiness")
		if status != http.StatusOK {
			t.Errorf("expected status 200 with nil checker, got %d", status)
		}
	})
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)

	if _, err := server.Start(); err == nil {
		t.Error("expected error on double start, got nil")
	}
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Errorf("stop without start should not error: %v", err)
	}
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	// Force close the underlying listener to trigger an error in Serve()
	if server.listener != nil {
		_ = server.listener.Close()
	}

	select {
	case serveErr := <-errCh:
		if serveErr == nil {
			t.Error("expected an error from the error channel after closing listener")
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error on error channel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Stop(ctx)
}

func TestServer_ErrorChannelClosesOnNormalShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			t.Errorf("unexpected error on normal shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error channel to close")
	}
}
