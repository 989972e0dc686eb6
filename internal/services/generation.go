package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"studybuddy/internal/models"
)

// GenerationService is the content requester backend: it extracts text from
// an upload, asks the model for the three artifacts and always returns a
// complete set unless the transport itself fails.
type GenerationService struct {
	documents     *DocumentService
	ai            *AIService
	speech        *SpeechService
	audioOnUpload bool
	fallbackAudio string
	logger        arbor.ILogger
}

func NewGenerationService(
	documents *DocumentService,
	ai *AIService,
	speech *SpeechService,
	audioOnUpload bool,
	fallbackAudio string,
	logger arbor.ILogger,
) *GenerationService {
	return &GenerationService{
		documents:     documents,
		ai:            ai,
		speech:        speech,
		audioOnUpload: audioOnUpload,
		fallbackAudio: fallbackAudio,
		logger:        logger,
	}
}

var generatedArtifacts = []string{ArtifactStudyGuide, ArtifactFlashcards, ArtifactQuiz}

// Process turns one upload into study materials.
func (s *GenerationService) Process(ctx context.Context, upload models.Upload) (*models.StudyMaterials, error) {
	start := time.Now()
	content, err := s.documents.ExtractText(upload)
	if err != nil {
		return nil, err
	}

	responses, err := s.requestAll(ctx, content)
	if err != nil {
		return nil, err
	}

	materials := &models.StudyMaterials{}

	guide, err := ParseStudyGuide(responses[0])
	if err != nil {
		s.logParseFallback(upload.Name, err)
		guide = PlaceholderStudyGuide(upload.Name, responses[0])
		materials.Placeholders = append(materials.Placeholders, ArtifactStudyGuide)
	}
	materials.StudyGuide = guide

	cards, err := ParseFlashcards(responses[1])
	if err != nil {
		s.logParseFallback(upload.Name, err)
		cards = PlaceholderFlashcards(upload.Name)
		materials.Placeholders = append(materials.Placeholders, ArtifactFlashcards)
	}
	materials.Flashcards = cards

	quiz, err := ParseQuiz(responses[2])
	if err != nil {
		s.logParseFallback(upload.Name, err)
		quiz = PlaceholderQuiz(upload.Name)
		materials.Placeholders = append(materials.Placeholders, ArtifactQuiz)
	}
	materials.Quiz = quiz

	materials.Audio = s.audioSummary(ctx, upload.Name, guide)

	s.logger.Info().
		Str("file", upload.Name).
		Int("sections", len(guide.Content)).
		Int("cards", len(cards.Cards)).
		Int("questions", len(quiz.Questions)).
		Int("placeholders", len(materials.Placeholders)).
		Dur("elapsed", time.Since(start)).
		Msg("Study materials generated")
	return materials, nil
}

// requestAll issues the three prompts concurrently. The first transport
// failure cancels the rest and is returned.
func (s *GenerationService) requestAll(ctx context.Context, content string) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	responses := make([]string, len(generatedArtifacts))

	for i, artifact := range generatedArtifacts {
		wg.Add(1)
		go func(idx int, artifact string) {
			defer wg.Done()
			text, err := s.ai.Generate(ctx, artifact, buildPrompt(artifact, content))
			if err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			responses[idx] = text
		}(i, artifact)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return responses, nil
}

func (s *GenerationService) audioSummary(ctx context.Context, fileName string, guide *models.StudyGuide) *models.AudioResource {
	title := "Audio Summary: " + fileName
	if s.audioOnUpload && s.speech != nil && len(guide.Content) > 0 {
		res, err := s.speech.Synthesize(ctx, guide.Content[0].SpeechText())
		if err == nil {
			res.Title = title
			return &res
		}
	}
	return &models.AudioResource{Title: title, AudioURL: s.fallbackAudio, Fallback: true}
}

func (s *GenerationService) logParseFallback(fileName string, err error) {
	var perr *ParseError
	if errors.As(err, &perr) {
		s.logger.Warn().
			Str("file", fileName).
			Str("artifact", perr.Artifact).
			Str("reason", perr.Reason).
			Err(perr.Err).
			Msg("Using placeholder artifact")
		return
	}
	s.logger.Warn().Str("file", fileName).Err(err).Msg("Using placeholder artifact")
}
