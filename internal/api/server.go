package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/ternarybob/arbor"

	"studybuddy/internal/models"
	"studybuddy/internal/services"
	"studybuddy/internal/session"
	"studybuddy/internal/viewer"
)

const (
	sessionHeader = "X-Session-ID"
	cookieName    = "studybuddy"
	cookieKey     = "sid"

	// multipartOverhead leaves room for form boundaries on top of the file limit.
	multipartOverhead = 1 << 20
)

var errNoFile = errors.New("no file uploaded")

// Services groups the backend the handlers call into. StudySets, Flashcards
// and Export may be nil; their routes then answer 503.
type Services struct {
	Content    session.ContentRequester
	Speech     session.SpeechRequester
	Export     *services.ExportService
	StudySets  *services.StudySetService
	Flashcards *services.FlashcardService
}

type Options struct {
	MaxUploadBytes int64
	SessionSecret  string
	SessionTTL     time.Duration
	AllowedOrigins []string
	// EventInterval is the minimum spacing of websocket session updates.
	EventInterval time.Duration
}

type Server struct {
	engine   *gin.Engine
	svc      Services
	sessions *session.Manager
	cookies  *sessions.CookieStore
	opts     Options
	logger   arbor.ILogger
}

func NewServer(svc Services, manager *session.Manager, opts Options, logger arbor.ILogger) *Server {
	if opts.EventInterval <= 0 {
		opts.EventInterval = 100 * time.Millisecond
	}
	cookies := sessions.NewCookieStore([]byte(opts.SessionSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		engine:   gin.New(),
		svc:      svc,
		sessions: manager,
		cookies:  cookies,
		opts:     opts,
		logger:   logger,
	}
	s.engine.Use(gin.Recovery())
	s.engine.Use(requestLogger(logger))
	s.engine.Use(corsMiddleware(opts.AllowedOrigins))
	if opts.MaxUploadBytes > 0 {
		s.engine.Use(maxBodySize(opts.MaxUploadBytes + multipartOverhead))
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/process-files", s.handleProcessFiles)
	api.POST("/text-to-speech", s.handleTextToSpeech)
	api.GET("/audio/:id", s.handleAudio)

	api.GET("/study-sets", s.handleListStudySets)
	api.GET("/study-sets/:id", s.handleGetStudySet)
	api.GET("/study-sets/:id/reviews", s.handleStudySetReviews)

	sess := api.Group("/session")
	sess.GET("", s.handleGetSession)
	sess.DELETE("", s.handleDeleteSession)
	sess.POST("/upload", s.handleSessionUpload)
	sess.GET("/events", s.handleSessionEvents)
	sess.POST("/view", s.sessionAction(bindView))

	sess.POST("/guide/section", s.sessionAction(selectSection))
	sess.POST("/guide/bookmark", s.sessionAction(toggleBookmark))
	sess.GET("/guide/export", s.handleExportGuide)

	sess.POST("/flashcards/next", s.sessionAction(func(_ *gin.Context, ss *session.Session) error { return ss.NextCard() }))
	sess.POST("/flashcards/previous", s.sessionAction(func(_ *gin.Context, ss *session.Session) error { return ss.PreviousCard() }))
	sess.POST("/flashcards/flip", s.sessionAction(func(_ *gin.Context, ss *session.Session) error { return ss.FlipCard() }))
	sess.POST("/flashcards/known", s.sessionAction(func(_ *gin.Context, ss *session.Session) error { return ss.MarkKnown() }))
	sess.POST("/flashcards/unknown", s.sessionAction(func(_ *gin.Context, ss *session.Session) error { return ss.MarkUnknown() }))

	sess.POST("/quiz/select", s.sessionAction(selectAnswer))
	sess.POST("/quiz/submit", s.sessionAction(func(_ *gin.Context, ss *session.Session) error {
		_, err := ss.SubmitAnswer()
		return err
	}))
	sess.POST("/quiz/next", s.sessionAction(func(_ *gin.Context, ss *session.Session) error { return ss.NextQuestion() }))
	sess.POST("/quiz/restart", s.sessionAction(func(_ *gin.Context, ss *session.Session) error { return ss.RestartQuiz() }))

	sess.POST("/audio/toggle", s.sessionAction(func(_ *gin.Context, ss *session.Session) error {
		_, err := ss.ToggleAudio()
		return err
	}))
	sess.POST("/audio/seek", s.sessionAction(seekAudio))
	sess.POST("/audio/skip", s.sessionAction(skipAudio))
	sess.POST("/audio/metadata", s.sessionAction(audioMetadata))
	sess.POST("/audio/section", s.sessionAction(playSection))
}

func (s *Server) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Len()})
}

// readUpload pulls the "file" part out of a multipart request.
func (s *Server) readUpload(c *gin.Context) (models.Upload, error) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return models.Upload{}, errNoFile
		}
		return models.Upload{}, err
	}
	if s.opts.MaxUploadBytes > 0 && header.Size > s.opts.MaxUploadBytes {
		return models.Upload{}, &http.MaxBytesError{Limit: s.opts.MaxUploadBytes}
	}
	data, err := readPart(header)
	if err != nil {
		return models.Upload{}, err
	}
	return models.Upload{
		Name:      header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Data:      data,
	}, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", header.Filename, err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", header.Filename, err)
	}
	return data, nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		maxBytes  *http.MaxBytesError
		transport *services.TransportError
	)
	switch {
	case errors.As(err, &maxBytes), strings.Contains(err.Error(), "request body too large"):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &transport):
		return http.StatusBadGateway
	case errors.Is(err, errNoFile),
		errors.Is(err, errInvalidBody),
		errors.Is(err, services.ErrEmptySpeechText),
		errors.Is(err, services.ErrUnknownExportFormat),
		errors.Is(err, session.ErrUnknownView),
		errors.Is(err, viewer.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, errNoSession),
		errors.Is(err, services.ErrStudySetNotFound),
		errors.Is(err, services.ErrAudioClipNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.Is(err, session.ErrNotReady),
		errors.Is(err, viewer.ErrNoSelection),
		errors.Is(err, viewer.ErrNotSubmitted),
		errors.Is(err, viewer.ErrAlreadyAnswered),
		errors.Is(err, viewer.ErrQuizCompleted),
		errors.Is(err, viewer.ErrNoAudio),
		errors.Is(err, viewer.ErrEmptyArtifact),
		errors.Is(err, context.Canceled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Str("path", c.FullPath()).Err(err).Msg("Request failed")
	}
	writeError(c, status, err.Error())
}

func unavailable(c *gin.Context, what string) {
	writeError(c, http.StatusServiceUnavailable, what+" is not configured")
}
