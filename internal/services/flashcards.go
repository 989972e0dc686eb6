package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"studybuddy/internal/models"
)

// FlashcardService schedules spaced-repetition reviews of saved flashcards with FSRS.
type FlashcardService struct {
	db     *sql.DB
	params fsrs.Parameters
	now    func() time.Time
}

func NewFlashcardService(db *sql.DB) *FlashcardService {
	params := fsrs.DefaultParam()
	return &FlashcardService{db: db, params: params, now: func() time.Time { return time.Now().UTC() }}
}

// RatingForMark maps the viewer's known/unknown mark onto an FSRS rating.
func RatingForMark(known bool) fsrs.Rating {
	if known {
		return fsrs.Good
	}
	return fsrs.Again
}

// ReviewCard applies a rating to one card of a study set, creating its
// scheduling row on first review.
func (s *FlashcardService) ReviewCard(ctx context.Context, studySetID string, cardID int, rating fsrs.Rating) (review *models.CardReview, log *models.ReviewLog, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	review = &models.CardReview{StudySetID: studySetID, CardID: cardID}
	row := tx.QueryRowContext(ctx, `
		SELECT due, stability, difficulty, elapsed_days, scheduled_days, reps, lapses, state, last_review, updated_at
		FROM card_reviews
		WHERE study_set_id = ? AND card_id = ?;
	`, studySetID, cardID)
	scanErr := row.Scan(
		&review.Due,
		&review.Stability,
		&review.Difficulty,
		&review.ElapsedDays,
		&review.ScheduledDays,
		&review.Reps,
		&review.Lapses,
		&review.State,
		&review.LastReview,
		&review.UpdatedAt,
	)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = fmt.Errorf("load review %s/%d: %w", studySetID, cardID, scanErr)
		return nil, nil, err
	}

	now := s.now()
	scheduling := s.params.Repeat(review.ToFSRSCard(), now)
	info, ok := scheduling[rating]
	if !ok {
		err = fmt.Errorf("rating %d not supported", rating)
		return nil, nil, err
	}
	review.ApplyFSRSCard(info.Card)
	review.UpdatedAt = now

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO card_reviews (study_set_id, card_id, due, stability, difficulty, elapsed_days,
		                          scheduled_days, reps, lapses, state, last_review, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(study_set_id, card_id) DO UPDATE SET
			due = excluded.due, stability = excluded.stability, difficulty = excluded.difficulty,
			elapsed_days = excluded.elapsed_days, scheduled_days = excluded.scheduled_days,
			reps = excluded.reps, lapses = excluded.lapses, state = excluded.state,
			last_review = excluded.last_review, updated_at = excluded.updated_at;
	`,
		studySetID,
		cardID,
		nullTimePtr(review.Due),
		review.Stability,
		review.Difficulty,
		review.ElapsedDays,
		review.ScheduledDays,
		review.Reps,
		review.Lapses,
		review.State,
		nullTimePtr(review.LastReview),
		review.UpdatedAt,
	); err != nil {
		err = fmt.Errorf("upsert review %s/%d: %w", studySetID, cardID, err)
		return nil, nil, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (study_set_id, card_id, rating, scheduled_days, elapsed_days, state, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?);
	`, studySetID, cardID, info.ReviewLog.Rating, info.ReviewLog.ScheduledDays, info.ReviewLog.ElapsedDays, info.ReviewLog.State, now); err != nil {
		err = fmt.Errorf("insert review log: %w", err)
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit review: %w", err)
		return nil, nil, err
	}

	log = &models.ReviewLog{
		StudySetID:    studySetID,
		CardID:        cardID,
		Rating:        int(info.ReviewLog.Rating),
		ScheduledDays: int(info.ReviewLog.ScheduledDays),
		ElapsedDays:   int(info.ReviewLog.ElapsedDays),
		State:         int(info.ReviewLog.State),
		ReviewedAt:    now,
	}
	return review, log, nil
}

// ListReviews returns every scheduled card of a study set, earliest due first.
func (s *FlashcardService) ListReviews(ctx context.Context, studySetID string) ([]models.CardReview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT card_id, due, stability, difficulty, elapsed_days, scheduled_days, reps, lapses, state, last_review, updated_at
		FROM card_reviews
		WHERE study_set_id = ?
		ORDER BY due ASC, card_id ASC;
	`, studySetID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.CardReview
	for rows.Next() {
		review := models.CardReview{StudySetID: studySetID}
		if err := rows.Scan(
			&review.CardID,
			&review.Due,
			&review.Stability,
			&review.Difficulty,
			&review.ElapsedDays,
			&review.ScheduledDays,
			&review.Reps,
			&review.Lapses,
			&review.State,
			&review.LastReview,
			&review.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// DueCount returns how many cards of the set are due at or before now.
func (s *FlashcardService) DueCount(ctx context.Context, studySetID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM card_reviews WHERE study_set_id = ? AND due <= ?;
	`, studySetID, s.now()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count due cards: %w", err)
	}
	return count, nil
}

func nullTimePtr(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}
