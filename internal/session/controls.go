package session

import (
	"context"

	"studybuddy/internal/models"
	"studybuddy/internal/viewer"
)

// ready runs fn against the viewers once materials are ready, then publishes
// the new state.
func (s *Session) ready(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state != StateReady {
		return ErrNotReady
	}
	s.touched = timeNow()
	if err := fn(); err != nil {
		return err
	}
	s.publishLocked()
	return nil
}

func (s *Session) SetView(view string) error {
	switch view {
	case ViewStudyGuide, ViewFlashcards, ViewQuiz, ViewAudio:
	default:
		return ErrUnknownView
	}
	return s.ready(func() error {
		s.view = view
		return nil
	})
}

func (s *Session) SelectSection(i int) error {
	return s.ready(func() error { return s.guide.Select(i) })
}

func (s *Session) ToggleBookmark() (bookmarked bool, err error) {
	err = s.ready(func() error {
		bookmarked = s.guide.ToggleBookmark()
		return nil
	})
	return bookmarked, err
}

// StudyGuide returns a copy of the generated guide for export.
func (s *Session) StudyGuide() (*models.StudyGuide, error) {
	var guide *models.StudyGuide
	err := s.ready(func() error {
		guide = s.materials.Clone().StudyGuide
		return nil
	})
	return guide, err
}

func (s *Session) NextCard() error {
	return s.ready(func() error {
		s.cards.Next()
		return nil
	})
}

func (s *Session) PreviousCard() error {
	return s.ready(func() error {
		s.cards.Previous()
		return nil
	})
}

func (s *Session) FlipCard() error {
	return s.ready(func() error {
		s.cards.Flip()
		return nil
	})
}

func (s *Session) MarkKnown() error {
	return s.markCard(true)
}

func (s *Session) MarkUnknown() error {
	return s.markCard(false)
}

func (s *Session) markCard(known bool) error {
	return s.ready(func() error {
		var (
			id  int
			err error
		)
		if known {
			id, err = s.cards.MarkKnown()
		} else {
			id, err = s.cards.MarkUnknown()
		}
		if err != nil {
			return err
		}
		if s.deps.Archive != nil && s.studySetID != "" {
			go s.recordMark(s.studySetID, id, known)
		}
		return nil
	})
}

func (s *Session) recordMark(studySetID string, cardID int, known bool) {
	if err := s.deps.Archive.RecordMark(s.ctx, studySetID, cardID, known); err != nil {
		s.deps.Logger.Warn().
			Str("session", s.ID).
			Str("study_set", studySetID).
			Int("card", cardID).
			Err(err).
			Msg("Failed to record flashcard review")
	}
}

func (s *Session) SelectAnswer(option int) error {
	return s.ready(func() error { return s.quiz.Select(option) })
}

func (s *Session) SubmitAnswer() (answer viewer.Answer, err error) {
	err = s.ready(func() error {
		var submitErr error
		answer, submitErr = s.quiz.Submit()
		return submitErr
	})
	return answer, err
}

func (s *Session) NextQuestion() error {
	return s.ready(func() error { return s.quiz.Next() })
}

func (s *Session) RestartQuiz() error {
	return s.ready(func() error {
		s.quiz.Restart()
		s.quizScore = nil
		return nil
	})
}

func (s *Session) ToggleAudio() (playing bool, err error) {
	err = s.ready(func() error {
		var toggleErr error
		playing, toggleErr = s.audio.Toggle()
		return toggleErr
	})
	return playing, err
}

func (s *Session) SeekAudio(t float64) (position float64, err error) {
	err = s.ready(func() error {
		position = s.audio.Seek(t)
		return nil
	})
	return position, err
}

// SkipAudio moves the playhead by delta seconds, normally ±viewer.SkipSeconds.
func (s *Session) SkipAudio(delta float64) (position float64, err error) {
	err = s.ready(func() error {
		position = s.audio.Skip(delta)
		return nil
	})
	return position, err
}

// ReportAudioProgress records metadata and playback progress from the client's audio element.
func (s *Session) ReportAudioProgress(duration, position *float64) error {
	return s.ready(func() error {
		if duration != nil {
			s.audio.SetDuration(*duration)
		}
		if position != nil {
			s.audio.SetPosition(*position)
		}
		return nil
	})
}

// PlaySection swaps the audio to a narration of one study guide section. The
// current playback stops before the speech request is made; a newer swap or
// upload makes this one stale.
func (s *Session) PlaySection(ctx context.Context, section int) (models.AudioResource, error) {
	var (
		text        string
		title       string
		token       uint64
		speechToken uint64
	)
	err := s.ready(func() error {
		if section < 0 || section >= len(s.materials.StudyGuide.Content) {
			return viewer.ErrIndexOutOfRange
		}
		s.audio.BeginSwap()
		s.speechToken++
		speechToken = s.speechToken
		token = s.token
		text = s.materials.StudyGuide.Content[section].SpeechText()
		title = s.audio.Resource().Title
		return nil
	})
	if err != nil {
		return models.AudioResource{}, err
	}

	res, err := s.deps.Speech.Synthesize(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || token != s.token || speechToken != s.speechToken || s.audio == nil {
		return models.AudioResource{}, context.Canceled
	}
	if err != nil {
		s.audio.CancelSwap()
		s.publishLocked()
		return models.AudioResource{}, err
	}
	res.Title = title
	s.audio.Bind(res, section)
	s.publishLocked()
	return res, nil
}
