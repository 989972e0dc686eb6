package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy/internal/logging"
)

func TestOpenAIProviderGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "hello", body.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("secret", server.URL, "gpt-test")
	require.NoError(t, err)

	text, err := p.GenerateText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
}

func TestOpenAIProviderServerError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"internal failure","type":"server_error"}}`))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("secret", server.URL, "gpt-test")
	require.NoError(t, err)

	ai := NewAIService(p, 0, time.Second, logging.Discard()).WithRetry(RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		BackoffMultiplier: 2,
	})
	_, err = ai.Generate(context.Background(), ArtifactQuiz, "hello")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "openai", terr.Provider)
	assert.Equal(t, ArtifactQuiz, terr.Artifact)
	assert.Equal(t, int32(3), hits.Load())
}

// flakyProvider fails the first n calls and then answers.
type flakyProvider struct {
	failures int32
	calls    atomic.Int32
}

func (p *flakyProvider) Name() string { return "flaky" }

func (p *flakyProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	if p.calls.Add(1) <= p.failures {
		return "", errors.New("upstream returned 503")
	}
	return `{"ok":true}`, nil
}

func TestAIServiceRetriesTransientFailure(t *testing.T) {
	p := &flakyProvider{failures: 1}
	ai := NewAIService(p, 0, time.Second, logging.Discard()).WithRetry(RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		BackoffMultiplier: 2,
	})

	text, err := ai.Generate(context.Background(), ArtifactStudyGuide, "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestAIServiceWithoutRetry(t *testing.T) {
	p := &flakyProvider{failures: 1}
	ai := NewAIService(p, 0, time.Second, logging.Discard()).WithRetry(RetryConfig{})

	_, err := ai.Generate(context.Background(), ArtifactStudyGuide, "hello")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestRetryBackoff(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff(0))
	assert.Equal(t, time.Second, cfg.Backoff(1))
	assert.Equal(t, 4*time.Second, cfg.Backoff(5))
}

func TestProvidersRequireKey(t *testing.T) {
	_, err := NewOpenAIProvider("", "", "m")
	assert.ErrorIs(t, err, ErrAIUnavailable)
	_, err = NewClaudeProvider("", "m")
	assert.ErrorIs(t, err, ErrAIUnavailable)
	_, err = NewGeminiProvider(context.Background(), "", "m")
	assert.ErrorIs(t, err, ErrAIUnavailable)
}

type slowProvider struct{}

func (slowProvider) Name() string { return "slow" }

func (slowProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAIServiceTimeout(t *testing.T) {
	ai := NewAIService(slowProvider{}, 0, 20*time.Millisecond, logging.Discard())
	_, err := ai.Generate(context.Background(), ArtifactStudyGuide, "hello")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
