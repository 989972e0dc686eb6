package viewer

import (
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy/internal/models"
)

func guide() *models.StudyGuide {
	return &models.StudyGuide{
		Title: "Study Guide: Mitosis",
		Content: []models.Section{
			{Section: "Phases", KeyPoints: []string{"Prophase"}, Summary: "Steps."},
			{Section: "Outcome", KeyPoints: []string{"Two cells"}, Summary: "Result."},
		},
	}
}

func cards(n int) *models.FlashcardSet {
	set := &models.FlashcardSet{Title: "Flashcards"}
	for i := 1; i <= n; i++ {
		set.Cards = append(set.Cards, models.Flashcard{ID: i, Question: "q", Answer: "a"})
	}
	return set
}

func quiz() *models.Quiz {
	q := &models.Quiz{Title: "Quiz"}
	for i := 0; i < 4; i++ {
		q.Questions = append(q.Questions, models.Question{
			ID: i + 1, Question: "q", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: i,
		})
	}
	return q
}

func TestStudyGuideViewer(t *testing.T) {
	v := NewStudyGuideViewer(guide())

	require.NoError(t, v.Select(1))
	idx, sec := v.Active()
	assert.Equal(t, 1, idx)
	assert.Equal(t, "Outcome", sec.Section)

	assert.ErrorIs(t, v.Select(2), ErrIndexOutOfRange)
	assert.ErrorIs(t, v.Select(-1), ErrIndexOutOfRange)
	idx, _ = v.Active()
	assert.Equal(t, 1, idx, "a rejected selection keeps the active section")

	assert.True(t, v.ToggleBookmark())
	assert.False(t, v.ToggleBookmark())
	assert.Equal(t, "Phases\n\nSteps.\n\n• Prophase\n\nOutcome\n\nResult.\n\n• Two cells", v.PlainText())
}

func TestFlashcardViewerNavigation(t *testing.T) {
	v := NewFlashcardViewer(cards(3))

	assert.False(t, v.Previous())
	assert.True(t, v.Flip())
	assert.True(t, v.Next())
	assert.False(t, v.State().Flipped, "changing card shows the question side")
	assert.True(t, v.Next())
	assert.False(t, v.Next())
	assert.InDelta(t, 100.0, v.Progress(), 0.001)

	v.Flip()
	assert.True(t, v.Previous())
	assert.False(t, v.State().Flipped)
}

func TestFlashcardViewerMarks(t *testing.T) {
	v := NewFlashcardViewer(cards(3))

	id, err := v.MarkKnown()
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Equal(t, []int{1}, v.Known())

	v.Previous()
	id, err = v.MarkUnknown()
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Empty(t, v.Known())
	assert.Equal(t, []int{1}, v.Unknown())
	assert.Equal(t, 1, v.State().Index, "marking advances")
}

func TestFlashcardViewerSetsStayDisjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	v := NewFlashcardViewer(cards(6))

	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			v.MarkKnown()
		case 1:
			v.MarkUnknown()
		case 2:
			v.Previous()
		default:
			v.Next()
		}
		known := map[int]bool{}
		for _, id := range v.Known() {
			known[id] = true
		}
		for _, id := range v.Unknown() {
			require.False(t, known[id], "card %d is both known and unknown", id)
		}
	}
}

func TestQuizRunnerFlow(t *testing.T) {
	var reports [][2]int
	r := NewQuizRunner(quiz(), func(score, total int) { reports = append(reports, [2]int{score, total}) })

	_, err := r.Submit()
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.ErrorIs(t, r.Next(), ErrNotSubmitted)
	assert.ErrorIs(t, r.Select(4), ErrIndexOutOfRange)

	require.NoError(t, r.Select(0))
	answer, err := r.Submit()
	require.NoError(t, err)
	assert.True(t, answer.Correct)

	require.NoError(t, r.Select(3), "selection after submit is ignored")
	assert.Equal(t, 0, *r.State().Selected)

	_, err = r.Submit()
	assert.ErrorIs(t, err, ErrAlreadyAnswered)

	require.NoError(t, r.Next())
	assert.Nil(t, r.State().Selected, "advancing clears the selection")

	for i := 1; i < 4; i++ {
		require.NoError(t, r.Select(0))
		_, err := r.Submit()
		require.NoError(t, err)
		require.NoError(t, r.Next())
	}

	assert.True(t, r.Completed())
	require.Len(t, reports, 1)
	assert.Equal(t, [2]int{1, 4}, reports[0])
	assert.ErrorIs(t, r.Next(), ErrQuizCompleted)
	assert.Len(t, reports, 1)

	r.Restart()
	assert.False(t, r.Completed())
	assert.Zero(t, r.Score())
}

func TestQuizRunnerScoreMatchesCorrectSubmissions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		q := quiz()
		var got []int
		r := NewQuizRunner(q, func(score, total int) { got = append(got, score, total) })

		expected := 0
		for _, question := range q.Questions {
			choice := rng.Intn(4)
			if choice == question.CorrectAnswerIndex {
				expected++
			}
			require.NoError(t, r.Select(choice))
			_, err := r.Submit()
			require.NoError(t, err)
			require.NoError(t, r.Next())
		}
		require.Equal(t, []int{expected, len(q.Questions)}, got)
		assert.Len(t, r.State().Answers, len(q.Questions))
	}
}

func TestAudioPlayerSeekClamps(t *testing.T) {
	p := NewAudioPlayer(models.AudioResource{AudioURL: "https://example.com/a.mp3"})
	p.SetDuration(120)

	for _, tc := range []struct{ in, want float64 }{
		{-5, 0}, {0, 0}, {60.5, 60.5}, {120, 120}, {500, 120},
	} {
		assert.Equal(t, tc.want, p.Seek(tc.in))
	}

	p.Seek(115)
	assert.Equal(t, 120.0, p.Skip(SkipSeconds))
	p.Seek(5)
	assert.Equal(t, 0.0, p.Skip(-SkipSeconds))

	p.SetDuration(30)
	assert.Equal(t, 0.0, p.State().Position)
	p.Seek(25)
	p.SetDuration(20)
	assert.Equal(t, 20.0, p.State().Position)
}

func TestAudioPlayerSwap(t *testing.T) {
	p := NewAudioPlayer(models.AudioResource{AudioURL: "https://example.com/a.mp3"})
	p.SetDuration(60)
	playing, err := p.Toggle()
	require.NoError(t, err)
	assert.True(t, playing)
	p.SetPosition(30)

	p.BeginSwap()
	st := p.State()
	assert.False(t, st.Playing)
	assert.Zero(t, st.Position)
	assert.False(t, st.ControlsEnabled)

	p.Bind(models.AudioResource{AudioURL: "https://example.com/fallback.mp3", Fallback: true}, 1)
	st = p.State()
	assert.True(t, st.Playing)
	assert.True(t, st.ControlsEnabled, "fallback audio keeps controls enabled")
	assert.Equal(t, 1, st.Section)

	p.SetDuration(10)
	p.SetPosition(10)
	assert.False(t, p.State().Playing, "reaching the end stops playback")
}

func TestAudioPlayerWithoutURL(t *testing.T) {
	p := NewAudioPlayer(models.AudioResource{})
	_, err := p.Toggle()
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestProcessingOverlayCompletesOnce(t *testing.T) {
	var completions atomic.Int32
	var last atomic.Int32
	o := NewProcessingOverlay(time.Millisecond, func(p int) { last.Store(int32(p)) }, func() { completions.Add(1) })
	o.Start()

	assert.Eventually(t, func() bool { return completions.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), completions.Load())
	assert.Equal(t, int32(100), last.Load())

	st := o.State()
	assert.Equal(t, 100, st.Percent)
	assert.True(t, st.Completed)
	assert.False(t, o.Advance())
}

func TestProcessingOverlayStop(t *testing.T) {
	var completions atomic.Int32
	o := NewProcessingOverlay(time.Hour, nil, func() { completions.Add(1) })
	for i := 0; i < 10; i++ {
		o.Advance()
	}
	o.Stop()
	o.Stop()
	assert.False(t, o.Advance())
	assert.Equal(t, 10, o.State().Percent)
	assert.Zero(t, completions.Load())

	o.SetStage(2)
	assert.Equal(t, "Generating study materials", o.State().StageName)
	o.SetStage(9)
	assert.Equal(t, 2, o.State().Stage)
}
