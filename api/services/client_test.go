package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/config"
)

func testServiceConfig() *config.Config {
	return &config.Config{
		Logger: zap.NewNop().Sugar(),
		Environment: &config.Environment{
			CallTimeoutSec: 5,
			PageSize:       50,
			APIToken:       "test-token",
		},
	}
}

func statusServer(t *testing.T, status int) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error": "nope"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDoSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := newRESTClient(testServiceConfig(), "classroom", server.URL, "test-token")
	payload, err := client.do(context.Background(), "GET", server.URL+"/thing", nil, "")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(payload))
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestDoUnauthorizedIsAuthorizationError(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		server := statusServer(t, status)
		client := newRESTClient(testServiceConfig(), "classroom", server.URL, "test-token")

		_, err := client.do(context.Background(), "GET", server.URL+"/thing", nil, "")
		require.Error(t, err)
		assert.True(t, pipeline.IsAuthorization(err), "status %d", status)
	}
}

func TestDoTransientStatuses(t *testing.T) {
	for _, status := range []int{http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		server := statusServer(t, status)
		client := newRESTClient(testServiceConfig(), "classroom", server.URL, "test-token")

		_, err := client.do(context.Background(), "GET", server.URL+"/thing", nil, "")
		require.Error(t, err)
		assert.True(t, pipeline.IsTransient(err), "status %d", status)
		assert.False(t, pipeline.IsAuthorization(err), "status %d", status)
	}
}

func TestDoClientErrorIsPermanent(t *testing.T) {
	server := statusServer(t, http.StatusNotFound)
	client := newRESTClient(testServiceConfig(), "classroom", server.URL, "test-token")

	_, err := client.do(context.Background(), "GET", server.URL+"/thing", nil, "")
	require.Error(t, err)
	assert.False(t, pipeline.IsTransient(err))
	assert.False(t, pipeline.IsAuthorization(err))
	assert.Equal(t, pipeline.Permanent, pipeline.ClassifyError(err))
}

func TestDoConnectionFaultIsTransient(t *testing.T) {
	server := statusServer(t, http.StatusOK)
	baseURL := server.URL
	server.Close()

	client := newRESTClient(testServiceConfig(), "classroom", baseURL, "test-token")
	_, err := client.do(context.Background(), "GET", baseURL+"/thing", nil, "")
	require.Error(t, err)
	assert.True(t, pipeline.IsTransient(err))
}

func TestDoCancelledContext(t *testing.T) {
	server := statusServer(t, http.StatusOK)
	client := newRESTClient(testServiceConfig(), "classroom", server.URL, "test-token")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.do(ctx, "GET", server.URL+"/thing", nil, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTruncateBody(t *testing.T) {
	short := []byte("short body")
	assert.Equal(t, "short body", truncateBody(short))

	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	truncated := truncateBody(long)
	assert.Len(t, truncated, 256+len("..."))
}
