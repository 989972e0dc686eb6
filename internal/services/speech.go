package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"studybuddy/internal/models"
)

// ErrEmptySpeechText is returned when there is nothing to read aloud.
var ErrEmptySpeechText = errors.New("text is required")

const maxSpeechChars = 4096

// Synthesizer converts text into an encoded audio clip.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

// ClipStore keeps synthesized clips so they can be served by id.
type ClipStore interface {
	SaveAudioClip(ctx context.Context, clip models.AudioClip) error
}

// SpeechService backs the speech requester. Failures never reach the caller:
// they come back as the fallback URL with Fallback set.
type SpeechService struct {
	synth       Synthesizer
	store       ClipStore
	baseURL     string
	fallbackURL string
	timeout     time.Duration
	logger      arbor.ILogger
}

func NewSpeechService(synth Synthesizer, store ClipStore, baseURL, fallbackURL string, timeout time.Duration, logger arbor.ILogger) *SpeechService {
	return &SpeechService{
		synth:       synth,
		store:       store,
		baseURL:     strings.TrimRight(baseURL, "/"),
		fallbackURL: fallbackURL,
		timeout:     timeout,
		logger:      logger,
	}
}

func (s *SpeechService) FallbackURL() string {
	return s.fallbackURL
}

func (s *SpeechService) fallback(reason string, err error) models.AudioResource {
	event := s.logger.Warn().Str("reason", reason)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("Using fallback audio")
	return models.AudioResource{AudioURL: s.fallbackURL, Fallback: true}
}

// Synthesize reads the text aloud and returns a URL for the stored clip.
func (s *SpeechService) Synthesize(ctx context.Context, text string) (models.AudioResource, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.AudioResource{}, ErrEmptySpeechText
	}
	if s.synth == nil || s.store == nil {
		return s.fallback("no synthesizer configured", nil), nil
	}
	text, _ = Truncate(text, maxSpeechChars)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	data, mimeType, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return s.fallback(s.synth.Name()+" synthesis failed", err), nil
	}
	if len(data) == 0 {
		return s.fallback(s.synth.Name()+" returned no audio", nil), nil
	}

	clip := models.AudioClip{
		ID:        uuid.NewString(),
		MIMEType:  mimeType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveAudioClip(ctx, clip); err != nil {
		return s.fallback("store clip", err), nil
	}

	s.logger.Debug().
		Str("synthesizer", s.synth.Name()).
		Str("clip_id", clip.ID).
		Int("bytes", len(data)).
		Msg("Speech synthesized")
	return models.AudioResource{AudioURL: s.baseURL + "/api/audio/" + clip.ID}, nil
}

// OpenAISynthesizer uses the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
	voice  string
}

func NewOpenAISynthesizer(apiKey, apiEndpoint, model, voice string) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, ErrAIUnavailable
	}
	cfg := openai.DefaultConfig(apiKey)
	if apiEndpoint != "" {
		cfg.BaseURL = apiEndpoint
	}
	return &OpenAISynthesizer{client: openai.NewClientWithConfig(cfg), model: model, voice: voice}, nil
}

func (s *OpenAISynthesizer) Name() string { return "openai" }

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, "", fmt.Errorf("request openai speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, "", fmt.Errorf("read openai speech: %w", err)
	}
	return data, "audio/mpeg", nil
}

// GeminiSynthesizer uses Gemini's native audio output and wraps the raw PCM
// it returns in a WAV container.
type GeminiSynthesizer struct {
	client *genai.Client
	model  string
	voice  string
}

func NewGeminiSynthesizer(ctx context.Context, apiKey, model, voice string) (*GeminiSynthesizer, error) {
	if apiKey == "" {
		return nil, ErrAIUnavailable
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiSynthesizer{client: client, model: model, voice: voice}, nil
}

func (s *GeminiSynthesizer) Name() string { return "gemini" }

func (s *GeminiSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: s.voice},
			},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(text), config)
	if err != nil {
		return nil, "", fmt.Errorf("gemini speech: %w", err)
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if strings.HasPrefix(part.InlineData.MIMEType, "audio/L16") || strings.Contains(part.InlineData.MIMEType, "pcm") {
				return pcmToWAV(part.InlineData.Data, sampleRate(part.InlineData.MIMEType)), "audio/wav", nil
			}
			return part.InlineData.Data, part.InlineData.MIMEType, nil
		}
	}
	return nil, "", errors.New("gemini returned no audio")
}

// sampleRate reads the rate parameter of an audio/L16 media type.
func sampleRate(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && key == "rate" {
			if rate, err := strconv.Atoi(value); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return 24000
}

// pcmToWAV prefixes 16-bit mono little-endian PCM with a RIFF header.
func pcmToWAV(pcm []byte, rate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
