package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"studybuddy/internal/api"
	"studybuddy/internal/config"
	"studybuddy/internal/db"
	"studybuddy/internal/logging"
	"studybuddy/internal/services"
	"studybuddy/internal/session"
)

// audioRetention bounds how long synthesized clips stay playable.
const audioRetention = 24 * time.Hour

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.New("error").Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := logging.New(cfg.LogLevel)
	if cfg.UsesDefaultSessionSecret() {
		logger.Warn().Msg("SESSION_SECRET is not set, session cookies are signed with the built-in default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Database).Msg("Failed to open database")
	}
	defer conn.Close()

	studySets := services.NewStudySetService(conn)
	flashcards := services.NewFlashcardService(conn)

	ai := services.NewAIService(newProvider(ctx, cfg, logger), cfg.LLMRequestsPerSecond, cfg.LLMTimeout, logger)
	speech := services.NewSpeechService(newSynthesizer(ctx, cfg, logger), studySets, cfg.BaseURL, cfg.FallbackAudioURL, cfg.LLMTimeout, logger)
	documents := services.NewDocumentService(services.NewPDFService(), cfg.MaxContentChars, logger)
	generation := services.NewGenerationService(documents, ai, speech, cfg.AudioOnUpload, cfg.FallbackAudioURL, logger)

	manager := session.NewManager(session.Dependencies{
		Content: generation,
		Speech:  speech,
		Archive: services.NewStudyArchive(studySets, flashcards),
		Timings: session.Timings{
			StageOne:    cfg.StageOneDelay,
			StageTwo:    cfg.StageTwoDelay,
			Finalize:    cfg.FinalizeDelay,
			OverlayTick: cfg.OverlayTick,
		},
		Logger: logger,
	}, cfg.SessionTTL)
	defer manager.Close()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 5m", func() { manager.Sweep(time.Now()) }); err != nil {
		logger.Fatal().Err(err).Msg("Failed to schedule session sweep")
	}
	if _, err := scheduler.AddFunc("@hourly", func() { pruneAudio(studySets, logger) }); err != nil {
		logger.Fatal().Err(err).Msg("Failed to schedule audio pruning")
	}
	scheduler.Start()
	defer scheduler.Stop()

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(api.Services{
		Content:    generation,
		Speech:     speech,
		Export:     services.NewExportService(logger),
		StudySets:  studySets,
		Flashcards: flashcards,
	}, manager, api.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		SessionSecret:  cfg.SessionSecret,
		SessionTTL:     cfg.SessionTTL,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		// Generation can take minutes; the AI timeout bounds it instead.
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("llm_provider", cfg.LLMProvider).
			Str("tts_provider", cfg.TTSProvider).
			Msg("StudyBuddy listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func newProvider(ctx context.Context, cfg config.Config, logger arbor.ILogger) services.Provider {
	var (
		provider services.Provider
		err      error
	)
	switch cfg.LLMProvider {
	case "openai":
		provider, err = services.NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIEndpoint, cfg.OpenAIModel)
	case "claude":
		provider, err = services.NewClaudeProvider(cfg.AnthropicKey, cfg.AnthropicModel)
	default:
		provider, err = services.NewGeminiProvider(ctx, cfg.GeminiKey, cfg.GeminiModel)
	}
	if err != nil {
		logger.Warn().Str("provider", cfg.LLMProvider).Err(err).Msg("AI provider unavailable, uploads will fail")
		return nil
	}
	return provider
}

func newSynthesizer(ctx context.Context, cfg config.Config, logger arbor.ILogger) services.Synthesizer {
	var (
		synth services.Synthesizer
		err   error
	)
	switch cfg.TTSProvider {
	case "none":
		return nil
	case "gemini":
		synth, err = services.NewGeminiSynthesizer(ctx, cfg.GeminiKey, cfg.GeminiTTSModel, cfg.GeminiTTSVoice)
	default:
		synth, err = services.NewOpenAISynthesizer(cfg.OpenAIKey, cfg.OpenAIEndpoint, cfg.OpenAITTSModel, cfg.OpenAITTSVoice)
	}
	if err != nil {
		logger.Warn().Str("provider", cfg.TTSProvider).Err(err).Msg("Speech synthesis unavailable, serving fallback audio")
		return nil
	}
	return synth
}

func pruneAudio(store *services.StudySetService, logger arbor.ILogger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	removed, err := store.PruneAudioClips(ctx, time.Now().Add(-audioRetention))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to prune audio clips")
		return
	}
	if removed > 0 {
		logger.Info().Int64("removed", removed).Msg("Pruned audio clips")
	}
}
