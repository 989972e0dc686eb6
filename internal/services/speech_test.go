package services

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy/internal/db"
	"studybuddy/internal/logging"
)

const fallbackURL = "https://example.com/fallback.mp3"

type fakeSynth struct {
	data []byte
	err  error
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	return f.data, "audio/mpeg", f.err
}

func newStore(t *testing.T) *StudySetService {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewStudySetService(conn)
}

func TestSpeechSynthesizeStoresClip(t *testing.T) {
	store := newStore(t)
	svc := NewSpeechService(&fakeSynth{data: []byte("mp3")}, store, "http://localhost:8080/", fallbackURL, time.Second, logging.Discard())

	res, err := svc.Synthesize(context.Background(), "Mitosis. Cell division.")
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	require.True(t, strings.HasPrefix(res.AudioURL, "http://localhost:8080/api/audio/"))

	id := strings.TrimPrefix(res.AudioURL, "http://localhost:8080/api/audio/")
	clip, err := store.GetAudioClip(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), clip.Data)
	assert.Equal(t, "audio/mpeg", clip.MIMEType)
}

func TestSpeechSynthesizeFallback(t *testing.T) {
	store := newStore(t)
	tests := []struct {
		name  string
		synth Synthesizer
	}{
		{"SynthesizerError", &fakeSynth{err: errors.New("tts backend returned 500")}},
		{"EmptyAudio", &fakeSynth{}},
		{"NoSynthesizer", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewSpeechService(tc.synth, store, "http://localhost", fallbackURL, time.Second, logging.Discard())
			res, err := svc.Synthesize(context.Background(), "some text")
			require.NoError(t, err)
			assert.True(t, res.Fallback)
			assert.Equal(t, fallbackURL, res.AudioURL)
		})
	}
}

func TestSpeechSynthesizeEmptyText(t *testing.T) {
	svc := NewSpeechService(&fakeSynth{data: []byte("x")}, newStore(t), "", fallbackURL, 0, logging.Discard())
	_, err := svc.Synthesize(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptySpeechText)
}

func TestOpenAISynthesizer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-audio"))
	}))
	defer server.Close()

	synth, err := NewOpenAISynthesizer("key", server.URL, "tts-1", "alloy")
	require.NoError(t, err)

	data, mimeType, err := synth.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(data))
	assert.Equal(t, "audio/mpeg", mimeType)
}

func TestOpenAISynthesizerServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer server.Close()

	synth, err := NewOpenAISynthesizer("key", server.URL, "tts-1", "alloy")
	require.NoError(t, err)

	svc := NewSpeechService(synth, newStore(t), "http://localhost", fallbackURL, time.Second, logging.Discard())
	res, err := svc.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, fallbackURL, res.AudioURL)
}

func TestPCMToWAV(t *testing.T) {
	pcm := make([]byte, 480)
	wav := pcmToWAV(pcm, sampleRate("audio/L16;codec=pcm;rate=24000"))

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, 16000, sampleRate("audio/L16;rate=16000"))
	assert.Equal(t, 24000, sampleRate("audio/L16"))
}
