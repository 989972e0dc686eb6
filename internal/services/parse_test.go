package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guideJSON = `{"title":"Study Guide: Mitosis","content":[{"section":"Overview","keyPoints":["Mitosis is cell division"],"summary":"How cells divide."}]}`

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"Fenced", "Here you go:\n```json\n{\"a\":1}\n```\nThanks", `{"a":1}`, true},
		{"FencedNoLanguage", "```\n{\"a\":2}\n```", `{"a":2}`, true},
		{"Braces", `Sure! {"a":{"b":3}} hope it helps`, `{"a":{"b":3}}`, true},
		{"FenceWithoutObjectFallsBackToBraces", "```\nnot json\n``` then {\"a\":4}", `{"a":4}`, true},
		{"Nothing", "no json here", "", false},
		{"ReversedBraces", "} {", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSON(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseStudyGuide(t *testing.T) {
	guide, err := ParseStudyGuide("```json\n" + guideJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "Study Guide: Mitosis", guide.Title)
	require.Len(t, guide.Content, 1)

	_, err = ParseStudyGuide(`{"title":"","content":[]}`)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ArtifactStudyGuide, perr.Artifact)
	assert.Equal(t, "validate", perr.Reason)

	_, err = ParseStudyGuide("I could not do that")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "extract", perr.Reason)

	guide, err = ParseStudyGuide(`{"title":"Cells","content":[{"section":"Mitosis","keyPoints":[],"summary":"Cell division."}]}`)
	require.NoError(t, err, "sections may have no key points")
	assert.Equal(t, "Mitosis", guide.Content[0].Section)

	guide, err = ParseStudyGuide(`{"title":"Cells","content":[{"section":"Mitosis","summary":"Cell division."}]}`)
	require.NoError(t, err)
	assert.Empty(t, guide.Content[0].KeyPoints)

	_, err = ParseStudyGuide(`{"title": "x", "content": [}`)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "decode", perr.Reason)
}

func TestParseFlashcardsRenumbersIDs(t *testing.T) {
	set, err := ParseFlashcards(`{"title":"Cards","cards":[{"question":"q1","answer":"a1"},{"id":1,"question":"q2","answer":"a2"}]}`)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Cards[0].ID)
	assert.Equal(t, 2, set.Cards[1].ID)

	set, err = ParseFlashcards(`{"title":"Cards","cards":[{"id":7,"question":"q","answer":"a"},{"id":9,"question":"q","answer":"a"}]}`)
	require.NoError(t, err)
	assert.Equal(t, 7, set.Cards[0].ID, "valid ids are kept")

	_, err = ParseFlashcards(`{"title":"Cards","cards":[]}`)
	assert.Error(t, err)
}

func TestParseQuiz(t *testing.T) {
	quiz, err := ParseQuiz(`{"title":"Quiz","questions":[{"id":1,"question":"q","options":["a","b","c","d"],"correctAnswerIndex":3}]}`)
	require.NoError(t, err)
	assert.Equal(t, 3, quiz.Questions[0].CorrectAnswerIndex)

	_, err = ParseQuiz(`{"title":"Quiz","questions":[{"id":1,"question":"q","options":["a","b"],"correctAnswerIndex":0}]}`)
	assert.Error(t, err, "questions need four options")

	_, err = ParseQuiz(`{"title":"Quiz","questions":[{"id":1,"question":"q","options":["a","b","c","d"],"correctAnswerIndex":4}]}`)
	assert.Error(t, err, "answer index must be in range")
}

func TestPlaceholdersAreValid(t *testing.T) {
	inputs := []string{"", "complete garbage", "{ not json", "# Heading only"}
	for _, in := range inputs {
		guide := PlaceholderStudyGuide("notes.txt", in)
		assert.NoError(t, guide.Validate(), in)
		assert.Contains(t, guide.Title, "notes.txt")
	}

	cards := PlaceholderFlashcards("notes.txt")
	require.NoError(t, cards.Validate())
	assert.Len(t, cards.Cards, 5)

	quiz := PlaceholderQuiz("notes.txt")
	require.NoError(t, quiz.Validate())
	assert.Len(t, quiz.Questions, 3)
	for i, q := range quiz.Questions {
		assert.Equal(t, i+1, q.ID)
		assert.Equal(t, []string{"Option A", "Option B", "Option C", "Option D"}, q.Options)
	}
}

func TestPlaceholderStudyGuideFromHeadings(t *testing.T) {
	text := "Overview\n# Phases\nProphase comes first.\n* Prophase\n* Metaphase\n## Outcome\nTwo daughter cells."
	guide := PlaceholderStudyGuide("bio.txt", text)

	require.Len(t, guide.Content, 2)
	assert.Equal(t, "Phases", guide.Content[0].Section)
	assert.Equal(t, "Outcome", guide.Content[1].Section)
	assert.Equal(t, []string{"Prophase", "Metaphase"}, guide.Content[0].KeyPoints)
	assert.Contains(t, guide.Content[1].Summary, "Two daughter cells.")
}

func TestPlaceholderStudyGuideWithoutHeadings(t *testing.T) {
	guide := PlaceholderStudyGuide("bio.txt", "just prose")
	require.Len(t, guide.Content, 1)
	assert.Equal(t, "Main Concepts", guide.Content[0].Section)
}

func TestPlaceholderStudyGuideIgnoresHeadingsAroundBrokenJSON(t *testing.T) {
	text := "# Phases\n* Prophase\n```json\n{\"title\": \"x\", \"content\": [}\n```"
	_, err := ParseStudyGuide(text)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "decode", perr.Reason)

	guide := PlaceholderStudyGuide("bio.txt", text)
	require.Len(t, guide.Content, 1)
	assert.Equal(t, "Main Concepts", guide.Content[0].Section)
}
