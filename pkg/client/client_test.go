package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy/internal/models"
)

const fallbackURL = "https://example.com/fallback.mp3"

func TestProcess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/process-files", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "mitosis.txt", header.Filename)
		assert.Equal(t, "text/plain", header.Header.Get("Content-Type"))
		assert.Equal(t, "Mitosis is cell division", string(data))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":    true,
			"studyGuide": models.StudyGuide{Title: "Study Guide: mitosis.txt", Content: []models.Section{{Section: "Mitosis"}}},
			"flashcards": models.FlashcardSet{Title: "Flashcards"},
			"quiz":       models.Quiz{Title: "Quiz"},
			"audio":      models.AudioResource{Title: "Audio Summary: mitosis.txt", AudioURL: fallbackURL, Fallback: true},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	m, err := c.Process(context.Background(), models.Upload{Name: "mitosis.txt", MediaType: "text/plain", Data: []byte("Mitosis is cell division")})
	require.NoError(t, err)
	require.Len(t, m.StudyGuide.Content, 1)
	assert.Equal(t, "Study Guide: mitosis.txt", m.StudyGuide.Title)
	assert.True(t, m.Audio.Fallback)
}

func TestProcessServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"model unavailable"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Process(context.Background(), models.Upload{Name: "a.txt", Data: []byte("a")})
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Mitosis", body["text"])
		_, _ = w.Write([]byte(`{"success":true,"audioUrl":"http://server/api/audio/1","fallback":false}`))
	}))
	defer srv.Close()

	res, err := NewClient(Config{BaseURL: srv.URL, FallbackAudioURL: fallbackURL}).Synthesize(context.Background(), "Mitosis")
	require.NoError(t, err)
	assert.Equal(t, "http://server/api/audio/1", res.AudioURL)
	assert.False(t, res.Fallback)
}

func TestSynthesizeFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>oops</html>`))
		}},
		{"missing url", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL, FallbackAudioURL: fallbackURL})
			for i := 0; i < 2; i++ {
				res, err := c.Synthesize(context.Background(), "Mitosis")
				require.NoError(t, err)
				assert.Equal(t, fallbackURL, res.AudioURL)
				assert.True(t, res.Fallback)
			}
		})
	}
}

func TestSynthesizeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res, err := NewClient(Config{BaseURL: url}).Synthesize(context.Background(), "Mitosis")
	require.NoError(t, err)
	assert.Equal(t, DefaultFallbackAudioURL, res.AudioURL)
}
