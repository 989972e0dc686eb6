package models

import (
	"testing"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuiz() *Quiz {
	return &Quiz{
		Title: "Quiz: Cells",
		Questions: []Question{
			{ID: 1, Question: "What divides?", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 2},
			{ID: 2, Question: "What grows?", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 0},
		},
	}
}

func TestStudyGuideValidate(t *testing.T) {
	guide := &StudyGuide{
		Title:   "Study Guide: Mitosis",
		Content: []Section{{Section: "Phases", KeyPoints: []string{"Prophase"}, Summary: "Cell division."}},
	}
	assert.NoError(t, guide.Validate())

	t.Run("EmptyTitle", func(t *testing.T) {
		g := *guide
		g.Title = ""
		assert.Error(t, g.Validate())
	})

	t.Run("NoSections", func(t *testing.T) {
		g := *guide
		g.Content = nil
		assert.Error(t, g.Validate())
	})

	t.Run("SectionWithoutKeyPoints", func(t *testing.T) {
		g := StudyGuide{Title: "x", Content: []Section{{Section: "Phases"}}}
		assert.NoError(t, g.Validate())
		g.Content[0].KeyPoints = []string{}
		assert.NoError(t, g.Validate())
	})

	t.Run("BlankKeyPoint", func(t *testing.T) {
		g := StudyGuide{Title: "x", Content: []Section{{Section: "Phases", KeyPoints: []string{""}}}}
		assert.Error(t, g.Validate())
	})

	t.Run("UntitledSection", func(t *testing.T) {
		g := StudyGuide{Title: "x", Content: []Section{{KeyPoints: []string{"k"}}}}
		assert.Error(t, g.Validate())
	})
}

func TestFlashcardSetValidate(t *testing.T) {
	set := &FlashcardSet{
		Title: "Flashcards",
		Cards: []Flashcard{{ID: 1, Question: "q1", Answer: "a1"}, {ID: 2, Question: "q2", Answer: "a2"}},
	}
	assert.NoError(t, set.Validate())

	set.Cards[1].ID = 1
	assert.Error(t, set.Validate(), "duplicate ids must be rejected")

	set.Cards[1].ID = 2
	set.Cards[0].Answer = ""
	assert.Error(t, set.Validate())
}

func TestQuizValidate(t *testing.T) {
	assert.NoError(t, validQuiz().Validate())

	t.Run("ThreeOptions", func(t *testing.T) {
		q := validQuiz()
		q.Questions[0].Options = []string{"a", "b", "c"}
		assert.Error(t, q.Validate())
	})

	t.Run("CorrectIndexOutOfRange", func(t *testing.T) {
		q := validQuiz()
		q.Questions[0].CorrectAnswerIndex = 4
		assert.Error(t, q.Validate())
	})

	t.Run("DuplicateIDs", func(t *testing.T) {
		q := validQuiz()
		q.Questions[1].ID = 1
		assert.Error(t, q.Validate())
	})
}

func TestStudyMaterialsClone(t *testing.T) {
	m := &StudyMaterials{
		StudyGuide: &StudyGuide{Title: "g", Content: []Section{{Section: "s", KeyPoints: []string{"k"}}}},
		Flashcards: &FlashcardSet{Title: "f", Cards: []Flashcard{{ID: 1, Question: "q", Answer: "a"}}},
		Quiz:       validQuiz(),
		Audio:      &AudioResource{Title: "a", AudioURL: "u"},
	}
	require.True(t, m.Complete())

	c := m.Clone()
	c.StudyGuide.Content[0].KeyPoints[0] = "changed"
	c.Flashcards.Cards[0].Question = "changed"
	c.Quiz.Questions[0].Options[0] = "changed"
	c.Audio.AudioURL = "changed"

	assert.Equal(t, "k", m.StudyGuide.Content[0].KeyPoints[0])
	assert.Equal(t, "q", m.Flashcards.Cards[0].Question)
	assert.Equal(t, "a", m.Quiz.Questions[0].Options[0])
	assert.Equal(t, "u", m.Audio.AudioURL)

	var missing *StudyMaterials
	assert.False(t, missing.Complete())
	assert.Nil(t, missing.Clone())
}

func TestCardReviewFSRSRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	review := &CardReview{StudySetID: "set", CardID: 3}

	params := fsrs.DefaultParam()
	scheduling := params.Repeat(review.ToFSRSCard(), now)
	review.ApplyFSRSCard(scheduling[fsrs.Good].Card)

	assert.True(t, review.Due.Valid)
	assert.Equal(t, 1, review.Reps)
	assert.NotEqual(t, int(fsrs.New), review.State)
}

func TestSectionSpeechText(t *testing.T) {
	sec := Section{Section: "Phases", Summary: "Cell division", KeyPoints: []string{"Prophase", "Metaphase"}}
	assert.Equal(t, "Phases. Cell division. Key points: Prophase. Metaphase", sec.SpeechText())

	sec.KeyPoints = nil
	assert.Equal(t, "Phases. Cell division", sec.SpeechText())
}
