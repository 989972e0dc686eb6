package session

import (
	"time"

	"studybuddy/internal/models"
	"studybuddy/internal/viewer"
)

var timeNow = time.Now

const subscriberBuffer = 16

// Snapshot is a deep copy of the session's observable state.
type Snapshot struct {
	ID         string               `json:"id"`
	State      State                `json:"state"`
	Token      uint64               `json:"token"`
	Processing bool                 `json:"processing"`
	FileName   string               `json:"fileName,omitempty"`
	Overlay    *viewer.OverlayState `json:"overlay,omitempty"`
	Error      string               `json:"error,omitempty"`
	View       string               `json:"view"`
	StudySetID string               `json:"studySetId,omitempty"`

	StudyGuide   *models.StudyGuide    `json:"studyGuide,omitempty"`
	Flashcards   *models.FlashcardSet  `json:"flashcards,omitempty"`
	Quiz         *models.Quiz          `json:"quiz,omitempty"`
	Audio        *models.AudioResource `json:"audio,omitempty"`
	Placeholders []string              `json:"placeholders,omitempty"`

	GuideState     *viewer.StudyGuideState `json:"guideState,omitempty"`
	FlashcardState *viewer.FlashcardState  `json:"flashcardState,omitempty"`
	QuizState      *viewer.QuizState       `json:"quizState,omitempty"`
	AudioState     *viewer.AudioState      `json:"audioState,omitempty"`
	QuizScore      *QuizScore              `json:"quizScore,omitempty"`

	Notifications []Notification `json:"notifications"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:            s.ID,
		State:         s.state,
		Token:         s.token,
		Processing:    s.processingLocked(),
		FileName:      s.fileName,
		Error:         s.lastError,
		View:          s.view,
		StudySetID:    s.studySetID,
		Notifications: append([]Notification{}, s.notifications...),
		UpdatedAt:     timeNow().UTC(),
	}
	if s.overlay != nil && snap.Processing {
		st := s.overlay.State()
		snap.Overlay = &st
	}
	if s.quizScore != nil {
		score := *s.quizScore
		snap.QuizScore = &score
	}
	if s.state == StateReady && s.materials != nil {
		m := s.materials.Clone()
		snap.StudyGuide = m.StudyGuide
		snap.Flashcards = m.Flashcards
		snap.Quiz = m.Quiz
		snap.Placeholders = m.Placeholders

		guide := s.guide.State()
		cards := s.cards.State()
		quiz := s.quiz.State()
		audio := s.audio.State()
		snap.GuideState = &guide
		snap.FlashcardState = &cards
		snap.QuizState = &quiz
		snap.AudioState = &audio
		snap.Audio = &models.AudioResource{Title: audio.Title, AudioURL: audio.AudioURL, Fallback: audio.Fallback}
	}
	return snap
}

func (s *Session) processingLocked() bool {
	switch s.state {
	case StateUploading, StateAnalyzing, StateExtracting, StateGenerating, StateFinalizing:
		return true
	}
	return false
}

// Subscribe returns a channel of snapshots sent after every change. Slow
// readers lose intermediate snapshots, never the latest one. The channel is
// closed by the returned cancel func or when the session closes.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	ch <- s.snapshotLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			close(sub)
			delete(s.subscribers, id)
		}
	}
}

func (s *Session) publishLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot to make room for the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// LastActive reports when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

func (s *Session) touch() {
	s.mu.Lock()
	s.touched = timeNow()
	s.mu.Unlock()
}
