package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
)

func generationOver(t *testing.T, handler http.Handler) *GenerationService {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testServiceConfig()
	cfg.Environment.GenerationAddr = server.URL
	cfg.Environment.GenerationModel = "test-model"
	cfg.Environment.GenerationKey = "secret-key"
	return NewGenerationService(cfg)
}

func TestGenerateFeedbackRequest(t *testing.T) {
	var gotRequest generateRequest
	service := generationOver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
		// key auth travels as a header, never in the URL
		assert.Equal(t, "secret-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&gotRequest)
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "Nice "}, {"text": "work."}]}}]}`))
	}))

	text, err := service.GenerateFeedback(context.Background(), "Review this essay.")
	require.NoError(t, err)
	// multi-part candidates are concatenated
	assert.Equal(t, "Nice work.", text)

	require.Len(t, gotRequest.Contents, 1)
	require.Len(t, gotRequest.Contents[0].Parts, 1)
	assert.Equal(t, "Review this essay.", gotRequest.Contents[0].Parts[0].Text)
}

func TestGenerateFeedbackBlockedPrompt(t *testing.T) {
	service := generationOver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback": {"blockReason": "SAFETY"}}`))
	}))

	_, err := service.GenerateFeedback(context.Background(), "prompt")

	var generation *pipeline.GenerationError
	require.True(t, errors.As(err, &generation))
	assert.Contains(t, generation.Reason, "SAFETY")
	// safety blocks never classify as retryable
	assert.Equal(t, pipeline.Permanent, pipeline.ClassifyError(err))
}

func TestGenerateFeedbackNoCandidates(t *testing.T) {
	service := generationOver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))

	_, err := service.GenerateFeedback(context.Background(), "prompt")

	var generation *pipeline.GenerationError
	require.True(t, errors.As(err, &generation))
}

func TestGenerateFeedbackKeyNeverInErrors(t *testing.T) {
	// transport errors carry the request URL; the key must not be in it
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	cfg := testServiceConfig()
	cfg.Environment.GenerationAddr = server.URL
	cfg.Environment.GenerationModel = "test-model"
	cfg.Environment.GenerationKey = "secret-key"
	service := NewGenerationService(cfg)

	_, err := service.GenerateFeedback(context.Background(), "prompt")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestGenerateFeedbackServerFaultIsTransient(t *testing.T) {
	service := generationOver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := service.GenerateFeedback(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, pipeline.IsTransient(err))
}
