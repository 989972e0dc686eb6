package services

import (
	"context"
	"testing"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy/internal/db"
)

func TestReviewCard(t *testing.T) {
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()
	ctx := context.Background()

	set, err := NewStudySetService(conn).Save(ctx, "bio.txt", sampleMaterials())
	require.NoError(t, err)

	svc := NewFlashcardService(conn)
	review, log, err := svc.ReviewCard(ctx, set.ID, 1, RatingForMark(true))
	require.NoError(t, err)
	assert.Equal(t, 1, review.Reps)
	assert.Equal(t, int(fsrs.Good), log.Rating)
	assert.True(t, review.Due.Valid)

	review, _, err = svc.ReviewCard(ctx, set.ID, 1, RatingForMark(false))
	require.NoError(t, err)
	assert.Equal(t, 2, review.Reps)

	_, _, err = svc.ReviewCard(ctx, set.ID, 2, fsrs.Again)
	require.NoError(t, err)

	reviews, err := svc.ListReviews(ctx, set.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 2)

	svc.now = func() time.Time { return time.Now().UTC().Add(400 * 24 * time.Hour) }
	due, err := svc.DueCount(ctx, set.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, due)
}

func TestReviewCardUnknownSet(t *testing.T) {
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = NewFlashcardService(conn).ReviewCard(context.Background(), "missing", 1, fsrs.Good)
	assert.Error(t, err, "reviews reference an existing study set")
}
