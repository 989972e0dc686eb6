package viewer

import (
	"sort"

	"studybuddy/internal/models"
)

// FlashcardViewer walks a flashcard set one card at a time. A card is in at
// most one of the known and unknown sets.
type FlashcardViewer struct {
	set     *models.FlashcardSet
	index   int
	flipped bool
	known   map[int]struct{}
	unknown map[int]struct{}
}

func NewFlashcardViewer(set *models.FlashcardSet) *FlashcardViewer {
	return &FlashcardViewer{
		set:     set,
		known:   make(map[int]struct{}),
		unknown: make(map[int]struct{}),
	}
}

// Next advances one card and shows its question side. It reports false at the last card.
func (v *FlashcardViewer) Next() bool {
	if v.index >= len(v.set.Cards)-1 {
		return false
	}
	v.index++
	v.flipped = false
	return true
}

func (v *FlashcardViewer) Previous() bool {
	if v.index <= 0 {
		return false
	}
	v.index--
	v.flipped = false
	return true
}

func (v *FlashcardViewer) Flip() bool {
	v.flipped = !v.flipped
	return v.flipped
}

func (v *FlashcardViewer) Current() (models.Flashcard, error) {
	if len(v.set.Cards) == 0 {
		return models.Flashcard{}, ErrEmptyArtifact
	}
	return v.set.Cards[v.index], nil
}

// MarkKnown moves the current card into the known set and advances. It
// returns the id of the card that was marked.
func (v *FlashcardViewer) MarkKnown() (int, error) {
	return v.mark(v.known, v.unknown)
}

func (v *FlashcardViewer) MarkUnknown() (int, error) {
	return v.mark(v.unknown, v.known)
}

func (v *FlashcardViewer) mark(into, from map[int]struct{}) (int, error) {
	card, err := v.Current()
	if err != nil {
		return 0, err
	}
	into[card.ID] = struct{}{}
	delete(from, card.ID)
	v.Next()
	return card.ID, nil
}

func (v *FlashcardViewer) Known() []int   { return sortedIDs(v.known) }
func (v *FlashcardViewer) Unknown() []int { return sortedIDs(v.unknown) }

// Progress is the percentage of the deck reached, counting the current card.
func (v *FlashcardViewer) Progress() float64 {
	if len(v.set.Cards) == 0 {
		return 0
	}
	return float64(v.index+1) / float64(len(v.set.Cards)) * 100
}

func sortedIDs(m map[int]struct{}) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type FlashcardState struct {
	Index    int     `json:"index"`
	Total    int     `json:"total"`
	Flipped  bool    `json:"flipped"`
	Known    []int   `json:"known"`
	Unknown  []int   `json:"unknown"`
	Progress float64 `json:"progress"`
}

func (v *FlashcardViewer) State() FlashcardState {
	return FlashcardState{
		Index:    v.index,
		Total:    len(v.set.Cards),
		Flipped:  v.flipped,
		Known:    v.Known(),
		Unknown:  v.Unknown(),
		Progress: v.Progress(),
	}
}
