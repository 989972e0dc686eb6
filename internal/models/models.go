package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

var validate = validator.New()

// Section is one titled block of a study guide.
type Section struct {
	Section   string   `json:"section" validate:"required"`
	KeyPoints []string `json:"keyPoints" validate:"dive,required"`
	Summary   string   `json:"summary"`
}

// SpeechText is the passage read aloud for this section.
func (s Section) SpeechText() string {
	if len(s.KeyPoints) == 0 {
		return fmt.Sprintf("%s. %s", s.Section, s.Summary)
	}
	return fmt.Sprintf("%s. %s. Key points: %s", s.Section, s.Summary, strings.Join(s.KeyPoints, ". "))
}

type StudyGuide struct {
	Title   string    `json:"title" validate:"required"`
	Content []Section `json:"content" validate:"required,min=1,dive"`
}

// PlainText renders the guide the way it is copied to the clipboard.
func (g *StudyGuide) PlainText() string {
	blocks := make([]string, len(g.Content))
	for i, sec := range g.Content {
		points := make([]string, len(sec.KeyPoints))
		for j, p := range sec.KeyPoints {
			points[j] = "• " + p
		}
		blocks[i] = sec.Section + "\n\n" + sec.Summary + "\n\n" + strings.Join(points, "\n")
	}
	return strings.Join(blocks, "\n\n")
}

// Validate checks the guide has a title and at least one titled section.
func (g *StudyGuide) Validate() error {
	return validate.Struct(g)
}

type Flashcard struct {
	ID       int    `json:"id" validate:"min=1"`
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

type FlashcardSet struct {
	Title string      `json:"title" validate:"required"`
	Cards []Flashcard `json:"cards" validate:"required,min=1,unique=ID,dive"`
}

// Validate checks the set is non-empty and card ids are unique.
func (s *FlashcardSet) Validate() error {
	return validate.Struct(s)
}

// QuizOptionCount is the number of answer options every question carries.
const QuizOptionCount = 4

type Question struct {
	ID                 int      `json:"id" validate:"min=1"`
	Question           string   `json:"question" validate:"required"`
	Options            []string `json:"options" validate:"len=4,dive,required"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex" validate:"min=0,max=3"`
}

type Quiz struct {
	Title     string     `json:"title" validate:"required"`
	Questions []Question `json:"questions" validate:"required,min=1,unique=ID,dive"`
}

// Validate checks question ids are unique, each question has four options and
// the correct answer index points at one of them.
func (q *Quiz) Validate() error {
	return validate.Struct(q)
}

// AudioResource points at a playable clip. Fallback is set when the URL is the
// configured substitute rather than freshly synthesized speech.
type AudioResource struct {
	Title    string `json:"title"`
	AudioURL string `json:"audioUrl"`
	Fallback bool   `json:"fallback"`
}

// StudyMaterials bundles the four generated artifacts of one upload.
type StudyMaterials struct {
	StudyGuide *StudyGuide    `json:"studyGuide"`
	Flashcards *FlashcardSet  `json:"flashcards"`
	Quiz       *Quiz          `json:"quiz"`
	Audio      *AudioResource `json:"audio"`

	// Placeholders lists the artifact kinds that were substituted after a parse failure.
	Placeholders []string `json:"-"`
}

// Complete reports whether every artifact is present.
func (m *StudyMaterials) Complete() bool {
	return m != nil && m.StudyGuide != nil && m.Flashcards != nil && m.Quiz != nil && m.Audio != nil
}

// Clone returns a deep copy so readers never share slices with the owner.
func (m *StudyMaterials) Clone() *StudyMaterials {
	if m == nil {
		return nil
	}
	out := &StudyMaterials{Placeholders: append([]string(nil), m.Placeholders...)}
	if m.StudyGuide != nil {
		g := *m.StudyGuide
		g.Content = make([]Section, len(m.StudyGuide.Content))
		for i, sec := range m.StudyGuide.Content {
			sec.KeyPoints = append([]string(nil), sec.KeyPoints...)
			g.Content[i] = sec
		}
		out.StudyGuide = &g
	}
	if m.Flashcards != nil {
		s := *m.Flashcards
		s.Cards = append([]Flashcard(nil), m.Flashcards.Cards...)
		out.Flashcards = &s
	}
	if m.Quiz != nil {
		q := *m.Quiz
		q.Questions = make([]Question, len(m.Quiz.Questions))
		for i, question := range m.Quiz.Questions {
			question.Options = append([]string(nil), question.Options...)
			q.Questions[i] = question
		}
		out.Quiz = &q
	}
	if m.Audio != nil {
		a := *m.Audio
		out.Audio = &a
	}
	return out
}

// Upload is one user-selected file.
type Upload struct {
	Name      string
	MediaType string
	Data      []byte
}

// StudySet is the persisted record of one successful generation.
type StudySet struct {
	ID        string
	FileName  string
	Materials StudyMaterials
	CreatedAt time.Time
}

// AudioClip is synthesized speech kept for playback.
type AudioClip struct {
	ID        string
	MIMEType  string
	Data      []byte
	CreatedAt time.Time
}

// CardReview tracks spaced-repetition state for one card of a study set.
type CardReview struct {
	StudySetID    string
	CardID        int
	Due           sql.NullTime
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         int
	LastReview    sql.NullTime
	UpdatedAt     time.Time
}

func (c *CardReview) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   uint64(max(c.ElapsedDays, 0)),
		ScheduledDays: uint64(max(c.ScheduledDays, 0)),
		Reps:          uint64(max(c.Reps, 0)),
		Lapses:        uint64(max(c.Lapses, 0)),
		State:         fsrs.State(max(c.State, 0)),
	}
	if c.Due.Valid {
		card.Due = c.Due.Time
	}
	if c.LastReview.Valid {
		card.LastReview = c.LastReview.Time
	}
	return card
}

func (c *CardReview) ApplyFSRSCard(f fsrs.Card) {
	c.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	c.Stability = f.Stability
	c.Difficulty = f.Difficulty
	c.ElapsedDays = int(f.ElapsedDays)
	c.ScheduledDays = int(f.ScheduledDays)
	c.Reps = int(f.Reps)
	c.Lapses = int(f.Lapses)
	c.State = int(f.State)
	c.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}

// ReviewLog records one rating applied to a card.
type ReviewLog struct {
	StudySetID    string
	CardID        int
	Rating        int
	ScheduledDays int
	ElapsedDays   int
	State         int
	ReviewedAt    time.Time
}

// StudySetSummary is the listing view of a saved study set.
type StudySetSummary struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}
