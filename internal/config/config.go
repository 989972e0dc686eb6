package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config stores runtime configuration loaded from the environment, an optional
// TOML file and a .env file.
type Config struct {
	Port     string
	BaseURL  string
	LogLevel string

	LLMProvider          string
	LLMTimeout           time.Duration
	LLMRequestsPerSecond float64
	MaxContentChars      int

	GeminiKey      string
	GeminiModel    string
	GeminiTTSModel string
	GeminiTTSVoice string

	OpenAIKey      string
	OpenAIEndpoint string
	OpenAIModel    string
	OpenAITTSModel string
	OpenAITTSVoice string

	AnthropicKey   string
	AnthropicModel string

	TTSProvider      string
	FallbackAudioURL string
	AudioOnUpload    bool

	MaxUploadBytes int64
	Database       string

	SessionSecret string
	SessionTTL    time.Duration

	StageOneDelay time.Duration
	StageTwoDelay time.Duration
	FinalizeDelay time.Duration
	OverlayTick   time.Duration
}

const (
	// DefaultFallbackAudioURL is served whenever speech synthesis is unavailable.
	DefaultFallbackAudioURL = "https://storage.googleapis.com/study-buddy-demo/sample-audio.mp3"
	// DefaultMaxContentChars bounds the document text embedded in a prompt.
	DefaultMaxContentChars = 10000
	// DefaultSessionSecret signs session cookies when SESSION_SECRET is unset.
	// It is public, so production deployments must override it.
	DefaultSessionSecret = "change-me"
)

// LoadConfig reads configuration. Precedence: environment, then the TOML file
// named by STUDYBUDDY_CONFIG, then built-in defaults. A .env file in the working
// directory is loaded into the environment first.
func LoadConfig() (Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	src := source{file: map[string]string{}}
	if path := os.Getenv("STUDYBUDDY_CONFIG"); path != "" {
		values, err := readTOML(path)
		if err != nil {
			return Config{}, err
		}
		src.file = values
	}
	return src.build()
}

type source struct {
	file map[string]string
}

func (s source) get(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	if val, ok := s.file[key]; ok && val != "" {
		return val
	}
	return fallback
}

func (s source) build() (Config, error) {
	cfg := Config{}

	cfg.Port = s.get("PORT", "8080")
	cfg.BaseURL = strings.TrimRight(s.get("BASE_URL", fmt.Sprintf("http://localhost:%s", cfg.Port)), "/")
	cfg.LogLevel = s.get("LOG_LEVEL", "info")

	cfg.LLMProvider = strings.ToLower(s.get("LLM_PROVIDER", "gemini"))
	cfg.GeminiKey = s.get("GEMINI_API_KEY", "")
	cfg.GeminiModel = s.get("GEMINI_MODEL", "gemini-2.0-flash")
	cfg.GeminiTTSModel = s.get("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts")
	cfg.GeminiTTSVoice = s.get("GEMINI_TTS_VOICE", "Kore")
	cfg.OpenAIKey = s.get("OPENAI_API_KEY", "")
	cfg.OpenAIEndpoint = s.get("OPENAI_API_ENDPOINT", "https://api.openai.com/v1")
	cfg.OpenAIModel = s.get("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAITTSModel = s.get("OPENAI_TTS_MODEL", "tts-1")
	cfg.OpenAITTSVoice = s.get("OPENAI_TTS_VOICE", "alloy")
	cfg.AnthropicKey = s.get("ANTHROPIC_API_KEY", "")
	cfg.AnthropicModel = s.get("ANTHROPIC_MODEL", "claude-sonnet-4-20250514")

	cfg.TTSProvider = strings.ToLower(s.get("TTS_PROVIDER", "openai"))
	cfg.FallbackAudioURL = s.get("FALLBACK_AUDIO_URL", DefaultFallbackAudioURL)
	cfg.Database = s.get("DATABASE_PATH", ":memory:")
	cfg.SessionSecret = s.get("SESSION_SECRET", DefaultSessionSecret)

	var err error
	if cfg.AudioOnUpload, err = s.parseBool("AUDIO_ON_UPLOAD", false); err != nil {
		return Config{}, err
	}

	maxUploadMB, err := s.parseInt("MAX_UPLOAD_MB", 20)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	maxChars, err := s.parseInt("MAX_CONTENT_CHARS", DefaultMaxContentChars)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxContentChars = int(maxChars)

	if cfg.LLMRequestsPerSecond, err = s.parseFloat("LLM_REQUESTS_PER_SECOND", 2); err != nil {
		return Config{}, err
	}
	timeoutSeconds, err := s.parseInt("LLM_TIMEOUT_SECONDS", 120)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTimeout = time.Duration(timeoutSeconds) * time.Second

	ttlMinutes, err := s.parseInt("SESSION_TTL_MINUTES", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL = time.Duration(ttlMinutes) * time.Minute

	timings := []struct {
		key      string
		fallback int64
		dst      *time.Duration
	}{
		{"STAGE_ONE_DELAY_MS", 2000, &cfg.StageOneDelay},
		{"STAGE_TWO_DELAY_MS", 4000, &cfg.StageTwoDelay},
		{"FINALIZE_DELAY_MS", 1500, &cfg.FinalizeDelay},
		{"OVERLAY_TICK_MS", 50, &cfg.OverlayTick},
	}
	for _, t := range timings {
		ms, err := s.parseInt(t.key, t.fallback)
		if err != nil {
			return Config{}, err
		}
		*t.dst = time.Duration(ms) * time.Millisecond
	}

	switch cfg.LLMProvider {
	case "gemini", "openai", "claude":
	default:
		return Config{}, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
	switch cfg.TTSProvider {
	case "gemini", "openai", "none":
	default:
		return Config{}, fmt.Errorf("unknown TTS_PROVIDER %q", cfg.TTSProvider)
	}

	return cfg, nil
}

func (s source) parseInt(key string, fallback int64) (int64, error) {
	value := s.get(key, "")
	if value == "" {
		return fallback, nil
	}
	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return num, nil
}

func (s source) parseFloat(key string, fallback float64) (float64, error) {
	value := s.get(key, "")
	if value == "" {
		return fallback, nil
	}
	num, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return num, nil
}

func (s source) parseBool(key string, fallback bool) (bool, error) {
	value := s.get(key, "")
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

// readTOML flattens a TOML document into environment-style keys:
// `port = 8080` becomes PORT, `[gemini] api_key = ".."` becomes GEMINI_API_KEY.
func readTOML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string)
	flatten("", doc, out)
	return out, nil
}

func flatten(prefix string, doc map[string]any, out map[string]string) {
	for key, val := range doc {
		name := strings.ToUpper(key)
		if prefix != "" {
			name = prefix + "_" + name
		}
		switch v := val.(type) {
		case map[string]any:
			flatten(name, v, out)
		default:
			out[name] = fmt.Sprint(v)
		}
	}
}

// UsesDefaultSessionSecret reports whether cookies are signed with the built-in secret.
func (c Config) UsesDefaultSessionSecret() bool {
	return c.SessionSecret == DefaultSessionSecret
}
