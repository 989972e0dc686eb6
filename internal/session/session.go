// Package session hosts the presentation session: the upload-to-ready state
// machine with its cosmetic stage sequencer, the generated artifacts and the
// viewers that present them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"studybuddy/internal/models"
	"studybuddy/internal/services"
	"studybuddy/internal/viewer"
)

type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateAnalyzing  State = "analyzing"
	StateExtracting State = "extracting"
	StateGenerating State = "generating"
	StateFinalizing State = "finalizing"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

var stageStates = [4]State{StateAnalyzing, StateExtracting, StateGenerating, StateFinalizing}

const (
	ViewStudyGuide = "studyGuide"
	ViewFlashcards = "flashcards"
	ViewQuiz       = "quiz"
	ViewAudio      = "audio"
)

var (
	ErrClosed      = errors.New("session closed")
	ErrNotReady    = errors.New("study materials are not ready")
	ErrUnknownView = errors.New("unknown view")
)

// ContentRequester turns an upload into study materials.
type ContentRequester interface {
	Process(ctx context.Context, upload models.Upload) (*models.StudyMaterials, error)
}

// SpeechRequester turns a passage into a playable audio resource.
type SpeechRequester interface {
	Synthesize(ctx context.Context, text string) (models.AudioResource, error)
}

// Archive persists finished study sets and flashcard marks. It is optional.
type Archive interface {
	SaveStudySet(ctx context.Context, fileName string, materials *models.StudyMaterials) (string, error)
	RecordMark(ctx context.Context, studySetID string, cardID int, known bool) error
}

// Timings drives the cosmetic processing animation.
type Timings struct {
	StageOne    time.Duration
	StageTwo    time.Duration
	Finalize    time.Duration
	OverlayTick time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		StageOne:    2 * time.Second,
		StageTwo:    4 * time.Second,
		Finalize:    1500 * time.Millisecond,
		OverlayTick: 50 * time.Millisecond,
	}
}

type Notification struct {
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

const (
	KindSuccess     = "success"
	KindDestructive = "destructive"
)

type QuizScore struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

type Dependencies struct {
	Content ContentRequester
	Speech  SpeechRequester
	Archive Archive
	Timings Timings
	Logger  arbor.ILogger
}

// Session is one upload-to-ready lifecycle plus the viewers of its result.
// Every upload bumps a generation token; timer callbacks and requester
// results carrying an older token are dropped.
type Session struct {
	ID string

	mu      sync.Mutex
	deps    Dependencies
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	touched time.Time

	state         State
	token         uint64
	stage         int
	fileName      string
	upload        *models.Upload
	requestCancel context.CancelFunc
	timers        []*time.Timer
	overlay       *viewer.ProcessingOverlay
	finalized     bool
	overlayDone   bool
	lastError     string

	materials   *models.StudyMaterials
	studySetID  string
	view        string
	guide       *viewer.StudyGuideViewer
	cards       *viewer.FlashcardViewer
	quiz        *viewer.QuizRunner
	audio       *viewer.AudioPlayer
	speechToken uint64
	quizScore   *QuizScore

	notifications []Notification
	subscribers   map[int]chan Snapshot
	nextSub       int
}

func New(id string, deps Dependencies) *Session {
	if deps.Timings == (Timings{}) {
		deps.Timings = DefaultTimings()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:          id,
		deps:        deps,
		ctx:         ctx,
		cancel:      cancel,
		touched:     timeNow(),
		state:       StateIdle,
		view:        ViewStudyGuide,
		subscribers: make(map[int]chan Snapshot),
	}
}

// Upload starts processing a file. Unsupported types are rejected without
// touching the current state.
func (s *Session) Upload(upload models.Upload) error {
	if err := services.CheckUpload(upload); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.resetLocked()
	s.touched = timeNow()
	s.token++
	token := s.token
	s.fileName = upload.Name
	s.upload = &upload
	s.state = StateUploading
	s.publishLocked()

	s.enterStageLocked(0)
	t := s.deps.Timings
	s.timers = append(s.timers,
		time.AfterFunc(t.StageOne, func() { s.advanceStage(token, 1) }),
		time.AfterFunc(t.StageTwo, func() { s.advanceStage(token, 2) }),
	)

	s.overlay = viewer.NewProcessingOverlay(t.OverlayTick,
		func(int) { s.overlayTick(token) },
		func() { s.overlayComplete(token) },
	)
	s.overlay.Start()

	ctx, cancel := context.WithCancel(s.ctx)
	s.requestCancel = cancel
	go s.request(ctx, token, upload)

	s.deps.Logger.Info().
		Str("session", s.ID).
		Str("file", upload.Name).
		Int("bytes", len(upload.Data)).
		Msg("Processing started")
	return nil
}

func (s *Session) request(ctx context.Context, token uint64, upload models.Upload) {
	materials, err := s.deps.Content.Process(ctx, upload)
	s.resolve(token, materials, err)
}

func (s *Session) resolve(token uint64, materials *models.StudyMaterials, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || token != s.token {
		s.deps.Logger.Debug().Str("session", s.ID).Msg("Discarding stale processing result")
		return
	}

	s.stopTimersLocked()
	if err != nil {
		s.failLocked(err)
		return
	}

	s.enterStageLocked(3)
	s.setMaterialsLocked(withDefaults(materials))
	s.timers = append(s.timers, time.AfterFunc(s.deps.Timings.Finalize, func() { s.finalize(token) }))
	s.publishLocked()
}

func (s *Session) failLocked(err error) {
	if s.overlay != nil {
		s.overlay.Stop()
	}
	s.state = StateFailed
	s.upload = nil
	s.clearMaterialsLocked()
	s.lastError = err.Error()
	s.notifyLocked(KindDestructive, "Processing failed", err.Error())
	s.deps.Logger.Warn().Str("session", s.ID).Str("file", s.fileName).Err(err).Msg("Processing failed")
	s.publishLocked()
}

func (s *Session) advanceStage(token uint64, stage int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || token != s.token {
		return
	}
	switch s.state {
	case StateAnalyzing, StateExtracting, StateGenerating:
	default:
		return
	}
	if stage <= s.stage {
		return
	}
	s.enterStageLocked(stage)
	s.publishLocked()
}

func (s *Session) enterStageLocked(stage int) {
	s.stage = stage
	s.state = stageStates[stage]
	if s.overlay != nil {
		s.overlay.SetStage(stage)
	}
}

func (s *Session) finalize(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || token != s.token {
		return
	}
	s.finalized = true
	s.maybeReadyLocked()
}

func (s *Session) overlayTick(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || token != s.token {
		return
	}
	s.publishLocked()
}

func (s *Session) overlayComplete(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || token != s.token {
		return
	}
	s.overlayDone = true
	s.maybeReadyLocked()
}

// maybeReadyLocked enters ready once the finalize delay has passed and the
// overlay clock has reached 100.
func (s *Session) maybeReadyLocked() {
	if s.state != StateFinalizing || !s.finalized || !s.overlayDone {
		return
	}
	s.state = StateReady
	s.upload = nil
	s.stopTimersLocked()
	s.notifyLocked(KindSuccess, "Processing complete!", "Your study materials are ready.")
	s.deps.Logger.Info().Str("session", s.ID).Str("file", s.fileName).Msg("Study materials ready")
	s.publishLocked()

	if s.deps.Archive != nil {
		go s.archive(s.token, s.fileName, s.materials.Clone())
	}
}

func (s *Session) archive(token uint64, fileName string, materials *models.StudyMaterials) {
	id, err := s.deps.Archive.SaveStudySet(s.ctx, fileName, materials)
	if err != nil {
		s.deps.Logger.Warn().Str("session", s.ID).Err(err).Msg("Failed to archive study set")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || token != s.token {
		return
	}
	s.studySetID = id
	s.publishLocked()
}

func (s *Session) resetLocked() {
	s.stopTimersLocked()
	if s.overlay != nil {
		s.overlay.Stop()
		s.overlay = nil
	}
	if s.requestCancel != nil {
		s.requestCancel()
		s.requestCancel = nil
	}
	s.clearMaterialsLocked()
	s.stage = 0
	s.finalized = false
	s.overlayDone = false
	s.lastError = ""
	s.quizScore = nil
	s.view = ViewStudyGuide
}

func (s *Session) stopTimersLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

func (s *Session) setMaterialsLocked(m *models.StudyMaterials) {
	s.materials = m
	s.guide = viewer.NewStudyGuideViewer(m.StudyGuide)
	s.cards = viewer.NewFlashcardViewer(m.Flashcards)
	s.quiz = viewer.NewQuizRunner(m.Quiz, s.quizCompletedLocked)
	s.audio = viewer.NewAudioPlayer(*m.Audio)
}

func (s *Session) clearMaterialsLocked() {
	s.materials = nil
	s.studySetID = ""
	s.guide = nil
	s.cards = nil
	s.quiz = nil
	s.audio = nil
}

// quizCompletedLocked runs from QuizRunner.Next, which is called with s.mu held.
func (s *Session) quizCompletedLocked(score, total int) {
	s.quizScore = &QuizScore{Score: score, Total: total}
	s.notifyLocked(KindSuccess, "Quiz completed!", fmt.Sprintf("You scored %d out of %d", score, total))
}

func (s *Session) notifyLocked(kind, title, description string) {
	s.notifications = append(s.notifications, Notification{
		Kind:        kind,
		Title:       title,
		Description: description,
		At:          time.Now().UTC(),
	})
}

// Close stops every timer and in-flight request. Later callbacks are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimersLocked()
	if s.overlay != nil {
		s.overlay.Stop()
	}
	s.cancel()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

// withDefaults substitutes a generic artifact for any the backend left out.
func withDefaults(m *models.StudyMaterials) *models.StudyMaterials {
	out := m.Clone()
	if out == nil {
		out = &models.StudyMaterials{}
	}
	if out.StudyGuide == nil || len(out.StudyGuide.Content) == 0 {
		out.StudyGuide = &models.StudyGuide{
			Title: "Study Guide",
			Content: []models.Section{{
				Section:   "No Content Available",
				KeyPoints: []string{"Please try uploading a different file"},
				Summary:   "No summary available",
			}},
		}
	}
	if out.Flashcards == nil || len(out.Flashcards.Cards) == 0 {
		out.Flashcards = &models.FlashcardSet{
			Title: "Flashcards",
			Cards: []models.Flashcard{{ID: 1, Question: "No flashcards available", Answer: "Please try uploading a different file"}},
		}
	}
	if out.Quiz == nil || len(out.Quiz.Questions) == 0 {
		out.Quiz = &models.Quiz{
			Title: "Quiz",
			Questions: []models.Question{{
				ID:       1,
				Question: "No quiz available",
				Options:  []string{"Option A", "Option B", "Option C", "Option D"},
			}},
		}
	}
	if out.Audio == nil {
		out.Audio = &models.AudioResource{Title: "Audio Summary"}
	}
	return out
}
