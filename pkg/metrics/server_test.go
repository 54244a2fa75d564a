package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	srv := NewServer(":0", prometheus.NewRegistry())
	require.NotNil(t, srv)
	require.NotNil(t, srv.httpServer)
	require.Equal(t, ":0", srv.httpServer.Addr)
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestServer_StartAndShutdown(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	srv := NewServer("127.0.0.1:19290", reg)
	errCh := srv.Start()

	// Give the listener a moment to come up.
	time.Sleep(50 * time.Millisecond)

	select {
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	default:
	}

	status, body := httpGet(t, "http://127.0.0.1:19290/health")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body)

	status, body = httpGet(t, "http://127.0.0.1:19290/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "deploytrack_lowest")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
