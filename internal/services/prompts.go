package services

import "fmt"

const studyGuidePrompt = `You are an expert study guide creator. I'll provide you with study material, and I want you to:
1. Create a comprehensive study guide with clear sections
2. For each section, extract key points and write a concise summary
3. Format your response as JSON with this structure:
{
  "title": "Study Guide: [Topic]",
  "content": [
    {
      "section": "Section Title",
      "keyPoints": ["Key point 1", "Key point 2"],
      "summary": "Section summary..."
    }
  ]
}

Only include 3-5 sections maximum. Here is the study material:
%s`

const flashcardPrompt = `You are an expert flashcard creator. I'll provide you with study material, and I want you to:
1. Create a set of question-answer flashcards based on the material
2. Focus on important concepts, definitions, and facts
3. Format your response as JSON with this structure:
{
  "title": "Flashcards: [Topic]",
  "cards": [
    {
      "id": 1,
      "question": "Question text",
      "answer": "Answer text"
    }
  ]
}

Create exactly 10 flashcards. Here is the study material:
%s`

const quizPrompt = `You are an expert quiz creator. I'll provide you with study material, and I want you to:
1. Create multiple-choice quiz questions based on the material
2. Each question should have 4 possible answers with one correct answer
3. Format your response as JSON with this structure, where correctAnswerIndex is the 0-based index of the correct option:
{
  "title": "Quiz: [Topic]",
  "questions": [
    {
      "id": 1,
      "question": "Question text",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correctAnswerIndex": 0
    }
  ]
}

Create exactly 5 quiz questions. Here is the study material:
%s`

func buildPrompt(artifact, content string) string {
	switch artifact {
	case ArtifactStudyGuide:
		return fmt.Sprintf(studyGuidePrompt, content)
	case ArtifactFlashcards:
		return fmt.Sprintf(flashcardPrompt, content)
	default:
		return fmt.Sprintf(quizPrompt, content)
	}
}
