// Package client talks to a StudyBuddy server over HTTP. It provides the
// content requester and the speech requester used by remote front-ends.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"studybuddy/internal/models"
)

// DefaultFallbackAudioURL is returned by Synthesize whenever the server cannot produce speech.
const DefaultFallbackAudioURL = "https://storage.googleapis.com/study-buddy-demo/sample-audio.mp3"

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL          string
	FallbackAudioURL string
	// Timeout is in seconds.
	Timeout    int
	HTTPClient *http.Client
}

// Client is safe for concurrent use; calls share no request state.
type Client struct {
	baseURL  string
	fallback string
	http     *http.Client
}

// NewClient creates a client with the given configuration
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080"
	}
	if config.FallbackAudioURL == "" {
		config.FallbackAudioURL = DefaultFallbackAudioURL
	}
	if config.Timeout == 0 {
		config.Timeout = 180
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(config.Timeout) * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		fallback: config.FallbackAudioURL,
		http:     httpClient,
	}
}

// RequestError is returned when the server answers with a non-2xx status.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}

type processResponse struct {
	Success    bool                  `json:"success"`
	Error      string                `json:"error"`
	StudyGuide *models.StudyGuide    `json:"studyGuide"`
	Flashcards *models.FlashcardSet  `json:"flashcards"`
	Quiz       *models.Quiz          `json:"quiz"`
	Audio      *models.AudioResource `json:"audio"`
}

// Process uploads one file and returns the generated study materials.
func (c *Client) Process(ctx context.Context, upload models.Upload) (*models.StudyMaterials, error) {
	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/process-files", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var out processResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("process %s: %s", upload.Name, out.Error)
	}
	return &models.StudyMaterials{
		StudyGuide: out.StudyGuide,
		Flashcards: out.Flashcards,
		Quiz:       out.Quiz,
		Audio:      out.Audio,
	}, nil
}

type speechResponse struct {
	Success  bool   `json:"success"`
	AudioURL string `json:"audioUrl"`
	Fallback bool   `json:"fallback"`
}

// Synthesize asks the server to read text aloud. It never fails for server
// trouble: any transport error, non-2xx status or malformed body yields the
// fallback URL with Fallback set.
func (c *Client) Synthesize(ctx context.Context, text string) (models.AudioResource, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return models.AudioResource{}, fmt.Errorf("marshal speech request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/text-to-speech", bytes.NewReader(payload))
	if err != nil {
		return models.AudioResource{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out speechResponse
	if err := c.do(req, &out); err != nil || !out.Success || out.AudioURL == "" {
		return c.fallbackAudio(), nil
	}
	return models.AudioResource{AudioURL: out.AudioURL, Fallback: out.Fallback}, nil
}

func (c *Client) fallbackAudio() models.AudioResource {
	return models.AudioResource{AudioURL: c.fallback, Fallback: true}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &body)
		return &RequestError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func encodeUpload(upload models.Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Name))
	mediaType := upload.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	h.Set("Content-Type", mediaType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
