package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

var (
	// ErrAIUnavailable is returned when no text provider is configured.
	ErrAIUnavailable = errors.New("ai provider is not configured")
)

const (
	generationTemperature = 0.2
	generationMaxTokens   = 8000
)

// Provider sends one prompt to a hosted language model and returns its raw text.
type Provider interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// TransportError means the upstream model could not be reached or refused the
// request. It aborts the whole generation attempt.
type TransportError struct {
	Provider string
	Artifact string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Artifact == "" {
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("failed to generate %s: %s: %v", e.Artifact, e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AIService is the shared backend client. It is constructed once and injected
// into the requesters; every call passes through its rate limiter and timeout.
type AIService struct {
	provider Provider
	limiter  *rate.Limiter
	timeout  time.Duration
	retry    RetryConfig
	logger   arbor.ILogger
}

// RetryConfig bounds how often a failed upstream call is repeated.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

const (
	DefaultMaxRetries        = 2
	DefaultInitialBackoff    = 500 * time.Millisecond
	DefaultMaxBackoff        = 4 * time.Second
	DefaultBackoffMultiplier = 2.0
)

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        DefaultMaxRetries,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

// Backoff returns the wait before retry number attempt (0-based), capped at MaxBackoff.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}
	backoff := time.Duration(float64(c.InitialBackoff) * multiplier)
	if c.MaxBackoff > 0 && backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return backoff
}

func NewAIService(provider Provider, requestsPerSecond float64, timeout time.Duration, logger arbor.ILogger) *AIService {
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		// The three artifact prompts of one upload go out together.
		burst = 3
	}
	return &AIService{
		provider: provider,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  timeout,
		retry:    DefaultRetryConfig(),
		logger:   logger,
	}
}

// WithRetry replaces the retry policy. A zero RetryConfig disables retries.
func (s *AIService) WithRetry(cfg RetryConfig) *AIService {
	s.retry = cfg
	return s
}

func (s *AIService) disabled() bool {
	return s == nil || s.provider == nil
}

func (s *AIService) providerName() string {
	if s.disabled() {
		return "none"
	}
	return s.provider.Name()
}

// Generate sends the prompt and returns the model's free text, retrying
// upstream failures with backoff until the retry budget or the timeout runs
// out. Any failure is reported as a *TransportError.
func (s *AIService) Generate(ctx context.Context, artifact, prompt string) (string, error) {
	if s.disabled() {
		return "", &TransportError{Provider: "none", Artifact: artifact, Err: ErrAIUnavailable}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt <= max(s.retry.MaxRetries, 0); attempt++ {
		if attempt > 0 {
			backoff := s.retry.Backoff(attempt - 1)
			s.logger.Warn().
				Str("provider", s.provider.Name()).
				Str("artifact", artifact).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("Retrying AI request")
			select {
			case <-ctx.Done():
				return "", &TransportError{Provider: s.provider.Name(), Artifact: artifact, Err: lastErr}
			case <-time.After(backoff):
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			if lastErr == nil {
				lastErr = fmt.Errorf("wait for rate limiter: %w", err)
			}
			return "", &TransportError{Provider: s.provider.Name(), Artifact: artifact, Err: lastErr}
		}

		start := time.Now()
		text, err := s.provider.GenerateText(ctx, prompt)
		if err == nil {
			s.logger.Debug().
				Str("provider", s.provider.Name()).
				Str("artifact", artifact).
				Int("chars", len(text)).
				Int("attempt", attempt).
				Dur("elapsed", time.Since(start)).
				Msg("AI request completed")
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	s.logger.Error().
		Str("provider", s.provider.Name()).
		Str("artifact", artifact).
		Err(lastErr).
		Msg("AI request failed")
	return "", &TransportError{Provider: s.provider.Name(), Artifact: artifact, Err: lastErr}
}
