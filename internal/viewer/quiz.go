package viewer

import (
	"errors"

	"studybuddy/internal/models"
)

var (
	ErrNoSelection     = errors.New("select an answer first")
	ErrNotSubmitted    = errors.New("submit the answer first")
	ErrQuizCompleted   = errors.New("quiz already completed")
	ErrAlreadyAnswered = errors.New("answer already submitted")
)

type Answer struct {
	QuestionID    int  `json:"questionId"`
	SelectedIndex int  `json:"selectedIndex"`
	Correct       bool `json:"correct"`
}

// QuizRunner steps through a quiz. The completion callback fires exactly once
// per run, when advancing past the last question.
type QuizRunner struct {
	quiz       *models.Quiz
	index      int
	selected   int
	submitted  bool
	answers    []Answer
	completed  bool
	onComplete func(score, total int)
}

func NewQuizRunner(quiz *models.Quiz, onComplete func(score, total int)) *QuizRunner {
	return &QuizRunner{quiz: quiz, selected: -1, onComplete: onComplete}
}

// Select picks an option of the current question. It is a no-op once the
// answer has been submitted.
func (r *QuizRunner) Select(option int) error {
	if r.completed {
		return ErrQuizCompleted
	}
	if r.submitted {
		return nil
	}
	q, err := r.current()
	if err != nil {
		return err
	}
	if option < 0 || option >= len(q.Options) {
		return ErrIndexOutOfRange
	}
	r.selected = option
	return nil
}

// Submit locks the selection and reveals whether it was correct.
func (r *QuizRunner) Submit() (Answer, error) {
	if r.completed {
		return Answer{}, ErrQuizCompleted
	}
	if r.submitted {
		return r.answers[len(r.answers)-1], ErrAlreadyAnswered
	}
	if r.selected < 0 {
		return Answer{}, ErrNoSelection
	}
	q, err := r.current()
	if err != nil {
		return Answer{}, err
	}
	answer := Answer{
		QuestionID:    q.ID,
		SelectedIndex: r.selected,
		Correct:       r.selected == q.CorrectAnswerIndex,
	}
	r.answers = append(r.answers, answer)
	r.submitted = true
	return answer, nil
}

// Next moves to the following question, or completes the quiz after the last one.
func (r *QuizRunner) Next() error {
	if r.completed {
		return ErrQuizCompleted
	}
	if !r.submitted {
		return ErrNotSubmitted
	}
	r.selected = -1
	r.submitted = false

	if r.index < len(r.quiz.Questions)-1 {
		r.index++
		return nil
	}

	r.completed = true
	if r.onComplete != nil {
		r.onComplete(r.Score(), len(r.quiz.Questions))
	}
	return nil
}

func (r *QuizRunner) Restart() {
	r.index = 0
	r.selected = -1
	r.submitted = false
	r.answers = nil
	r.completed = false
}

func (r *QuizRunner) Score() int {
	score := 0
	for _, a := range r.answers {
		if a.Correct {
			score++
		}
	}
	return score
}

func (r *QuizRunner) Completed() bool { return r.completed }

func (r *QuizRunner) current() (models.Question, error) {
	if len(r.quiz.Questions) == 0 {
		return models.Question{}, ErrEmptyArtifact
	}
	return r.quiz.Questions[r.index], nil
}

type QuizState struct {
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	Selected  *int     `json:"selected"`
	Submitted bool     `json:"submitted"`
	Correct   *bool    `json:"correct,omitempty"`
	Answers   []Answer `json:"answers"`
	Score     int      `json:"score"`
	Completed bool     `json:"completed"`
}

func (r *QuizRunner) State() QuizState {
	st := QuizState{
		Index:     r.index,
		Total:     len(r.quiz.Questions),
		Submitted: r.submitted,
		Answers:   append([]Answer{}, r.answers...),
		Score:     r.Score(),
		Completed: r.completed,
	}
	if r.selected >= 0 {
		sel := r.selected
		st.Selected = &sel
	}
	if r.submitted {
		correct := r.answers[len(r.answers)-1].Correct
		st.Correct = &correct
	}
	return st
}
