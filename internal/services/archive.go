package services

import (
	"context"

	"studybuddy/internal/models"
)

// StudyArchive saves finished study sets and turns flashcard marks into
// spaced-repetition reviews.
type StudyArchive struct {
	sets  *StudySetService
	cards *FlashcardService
}

func NewStudyArchive(sets *StudySetService, cards *FlashcardService) *StudyArchive {
	return &StudyArchive{sets: sets, cards: cards}
}

func (a *StudyArchive) SaveStudySet(ctx context.Context, fileName string, materials *models.StudyMaterials) (string, error) {
	set, err := a.sets.Save(ctx, fileName, materials)
	if err != nil {
		return "", err
	}
	return set.ID, nil
}

func (a *StudyArchive) RecordMark(ctx context.Context, studySetID string, cardID int, known bool) error {
	_, _, err := a.cards.ReviewCard(ctx, studySetID, cardID, RatingForMark(known))
	return err
}
