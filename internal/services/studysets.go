package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studybuddy/internal/models"
)

var (
	ErrStudySetNotFound  = errors.New("study set not found")
	ErrAudioClipNotFound = errors.New("audio clip not found")
)

// StudySetService persists generated study sets and synthesized audio clips.
type StudySetService struct {
	db *sql.DB
}

func NewStudySetService(db *sql.DB) *StudySetService {
	return &StudySetService{db: db}
}

func (s *StudySetService) Save(ctx context.Context, fileName string, materials *models.StudyMaterials) (*models.StudySet, error) {
	if !materials.Complete() {
		return nil, errors.New("study materials are incomplete")
	}

	columns := make([]string, 0, 4)
	for _, v := range []any{materials.StudyGuide, materials.Flashcards, materials.Quiz, materials.Audio} {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode study set: %w", err)
		}
		columns = append(columns, string(raw))
	}

	set := &models.StudySet{
		ID:        uuid.NewString(),
		FileName:  fileName,
		Materials: *materials.Clone(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO study_sets (id, file_name, study_guide, flashcards, quiz, audio, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?);
	`, set.ID, set.FileName, columns[0], columns[1], columns[2], columns[3], set.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert study set: %w", err)
	}
	return set, nil
}

func (s *StudySetService) Get(ctx context.Context, id string) (*models.StudySet, error) {
	var (
		set                          models.StudySet
		guide, cards, quiz, audioRaw string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, file_name, study_guide, flashcards, quiz, audio, created_at
		FROM study_sets WHERE id = ?;
	`, id).Scan(&set.ID, &set.FileName, &guide, &cards, &quiz, &audioRaw, &set.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudySetNotFound
		}
		return nil, fmt.Errorf("scan study set: %w", err)
	}

	set.Materials = models.StudyMaterials{
		StudyGuide: &models.StudyGuide{},
		Flashcards: &models.FlashcardSet{},
		Quiz:       &models.Quiz{},
		Audio:      &models.AudioResource{},
	}
	for _, col := range []struct {
		raw string
		out any
	}{
		{guide, set.Materials.StudyGuide},
		{cards, set.Materials.Flashcards},
		{quiz, set.Materials.Quiz},
		{audioRaw, set.Materials.Audio},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.out); err != nil {
			return nil, fmt.Errorf("decode study set %s: %w", id, err)
		}
	}
	return &set, nil
}

// List returns the newest study sets first.
func (s *StudySetService) List(ctx context.Context, limit int) ([]models.StudySetSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, json_extract(study_guide, '$.title'), created_at
		FROM study_sets
		ORDER BY created_at DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query study sets: %w", err)
	}
	defer rows.Close()

	summaries := []models.StudySetSummary{}
	for rows.Next() {
		var (
			summary models.StudySetSummary
			title   sql.NullString
		)
		if err := rows.Scan(&summary.ID, &summary.FileName, &title, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan study set: %w", err)
		}
		summary.Title = title.String
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (s *StudySetService) SaveAudioClip(ctx context.Context, clip models.AudioClip) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO audio_clips (id, mime_type, data, created_at) VALUES (?, ?, ?, ?);
	`, clip.ID, clip.MIMEType, clip.Data, clip.CreatedAt); err != nil {
		return fmt.Errorf("insert audio clip: %w", err)
	}
	return nil
}

func (s *StudySetService) GetAudioClip(ctx context.Context, id string) (*models.AudioClip, error) {
	var clip models.AudioClip
	err := s.db.QueryRowContext(ctx, `
		SELECT id, mime_type, data, created_at FROM audio_clips WHERE id = ?;
	`, id).Scan(&clip.ID, &clip.MIMEType, &clip.Data, &clip.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAudioClipNotFound
		}
		return nil, fmt.Errorf("scan audio clip: %w", err)
	}
	return &clip, nil
}

// PruneAudioClips deletes clips created before the cutoff and reports how many went.
func (s *StudySetService) PruneAudioClips(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audio_clips WHERE created_at < ?;`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune audio clips: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
