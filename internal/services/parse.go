package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"studybuddy/internal/models"
)

const (
	ArtifactStudyGuide = "study guide"
	ArtifactFlashcards = "flashcards"
	ArtifactQuiz       = "quiz"
)

var (
	errNoJSON = errors.New("no json object found")

	fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n(.*?)\r?\n?```")
	headingRE  = regexp.MustCompile(`\n#+\s`)
	bulletRE   = regexp.MustCompile(`(?m)^\s*[*-]\s+(.+)$`)
)

// ParseError describes why a model answer could not become an artifact. It is
// always recovered by substituting a placeholder.
type ParseError struct {
	Artifact string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s: %v", e.Artifact, e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractFenced returns the body of the first fenced code block.
func ExtractFenced(text string) (string, bool) {
	m := fencedJSON.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	body := strings.TrimSpace(m[1])
	if !strings.HasPrefix(body, "{") {
		return "", false
	}
	return body, true
}

// ExtractBraces returns the text from the first '{' to the last '}'.
func ExtractBraces(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// ExtractJSON applies the fenced-block and brace extractors in order.
func ExtractJSON(text string) (string, bool) {
	if body, ok := ExtractFenced(text); ok {
		return body, true
	}
	return ExtractBraces(strings.TrimSpace(text))
}

func decodeArtifact(artifact, text string, out any) error {
	body, ok := ExtractJSON(text)
	if !ok {
		return &ParseError{Artifact: artifact, Reason: "extract", Err: errNoJSON}
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return &ParseError{Artifact: artifact, Reason: "decode", Err: err}
	}
	return nil
}

// ParseStudyGuide extracts and validates a study guide from model output.
func ParseStudyGuide(text string) (*models.StudyGuide, error) {
	var guide models.StudyGuide
	if err := decodeArtifact(ArtifactStudyGuide, text, &guide); err != nil {
		return nil, err
	}
	guide.Title = strings.TrimSpace(guide.Title)
	if err := guide.Validate(); err != nil {
		return nil, &ParseError{Artifact: ArtifactStudyGuide, Reason: "validate", Err: err}
	}
	return &guide, nil
}

// ParseFlashcards extracts a flashcard set, renumbering ids the model left
// blank or repeated.
func ParseFlashcards(text string) (*models.FlashcardSet, error) {
	var set models.FlashcardSet
	if err := decodeArtifact(ArtifactFlashcards, text, &set); err != nil {
		return nil, err
	}
	ids := make([]int, len(set.Cards))
	for i, c := range set.Cards {
		ids[i] = c.ID
	}
	if needsRenumber(ids) {
		for i := range set.Cards {
			set.Cards[i].ID = i + 1
		}
	}
	if err := set.Validate(); err != nil {
		return nil, &ParseError{Artifact: ArtifactFlashcards, Reason: "validate", Err: err}
	}
	return &set, nil
}

// ParseQuiz extracts a quiz, renumbering ids the same way as flashcards.
func ParseQuiz(text string) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := decodeArtifact(ArtifactQuiz, text, &quiz); err != nil {
		return nil, err
	}
	ids := make([]int, len(quiz.Questions))
	for i, q := range quiz.Questions {
		ids[i] = q.ID
	}
	if needsRenumber(ids) {
		for i := range quiz.Questions {
			quiz.Questions[i].ID = i + 1
		}
	}
	if err := quiz.Validate(); err != nil {
		return nil, &ParseError{Artifact: ArtifactQuiz, Reason: "validate", Err: err}
	}
	return &quiz, nil
}

func needsRenumber(ids []int) bool {
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return true
		}
		if _, dup := seen[id]; dup {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// PlaceholderStudyGuide builds a guide from markdown headings when the model
// answered in prose. An answer that carried JSON which failed to decode or
// validate gets the single generic section instead.
func PlaceholderStudyGuide(fileName, text string) *models.StudyGuide {
	title := "Study Guide: " + fileName

	_, hasJSON := ExtractJSON(text)
	parts := headingRE.Split("\n"+text, -1)
	if !hasJSON && len(parts) > 1 {
		keyPoints := []string{}
		for _, m := range bulletRE.FindAllStringSubmatch(text, -1) {
			if point := strings.TrimSpace(m[1]); point != "" {
				keyPoints = append(keyPoints, point)
			}
		}
		if len(keyPoints) == 0 {
			keyPoints = []string{"Key point extracted from text"}
		}

		var sections []models.Section
		for _, part := range parts[1:] {
			lines := strings.Split(part, "\n")
			heading := strings.TrimSpace(lines[0])
			if heading == "" {
				continue
			}
			summary, _ := Truncate(strings.Join(strings.Fields(strings.Join(lines[1:], " ")), " "), 200)
			sections = append(sections, models.Section{
				Section:   heading,
				KeyPoints: append([]string(nil), keyPoints...),
				Summary:   summary + "...",
			})
			if len(sections) == 5 {
				break
			}
		}
		if len(sections) > 0 {
			return &models.StudyGuide{Title: title, Content: sections}
		}
	}

	return &models.StudyGuide{
		Title: title,
		Content: []models.Section{{
			Section:   "Main Concepts",
			KeyPoints: []string{"Key concept from document", "Important information extracted"},
			Summary:   "Summary of the document content...",
		}},
	}
}

func PlaceholderFlashcards(fileName string) *models.FlashcardSet {
	cards := make([]models.Flashcard, 5)
	for i := range cards {
		cards[i] = models.Flashcard{
			ID:       i + 1,
			Question: fmt.Sprintf("Question %d about the content", i+1),
			Answer:   fmt.Sprintf("Answer to question %d", i+1),
		}
	}
	return &models.FlashcardSet{Title: "Flashcards: " + fileName, Cards: cards}
}

func PlaceholderQuiz(fileName string) *models.Quiz {
	questions := make([]models.Question, 3)
	for i := range questions {
		questions[i] = models.Question{
			ID:                 i + 1,
			Question:           fmt.Sprintf("Question %d about the material", i+1),
			Options:            []string{"Option A", "Option B", "Option C", "Option D"},
			CorrectAnswerIndex: i % models.QuizOptionCount,
		}
	}
	return &models.Quiz{Title: "Quiz: " + fileName, Questions: questions}
}
