package pyannote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/audiostudio/conductor/pkg/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestCancelJobIssuesDelete(t *testing.T) {
	var method, path, auth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.CancelJob(context.Background(), "job-1"))

	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/jobs/job-1", path)
	assert.Equal(t, "Bearer test-key", auth)
}

func TestCancelJobSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"job not found"}`))
	})

	err := client.CancelJob(context.Background(), "job-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}

func TestGetJobStatusSurfacesRetryDelay(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetJobStatus(context.Background(), "job-1")
	require.Error(t, err)

	delay, ok := ports.RetryDelay(err)
	require.True(t, ok, "a rate-limited read must carry a retry hint")
	assert.Equal(t, 7*time.Second, delay)
}
