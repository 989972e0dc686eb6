package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"studybuddy/internal/services"
)

func (s *Server) handleProcessFiles(c *gin.Context) {
	upload, err := s.readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := services.CheckUpload(upload); err != nil {
		s.fail(c, err)
		return
	}

	materials, err := s.svc.Content.Process(c.Request.Context(), upload)
	if err != nil {
		s.fail(c, err)
		return
	}

	writeJSON(c, http.StatusOK, gin.H{
		"success":      true,
		"studyGuide":   materials.StudyGuide,
		"flashcards":   materials.Flashcards,
		"quiz":         materials.Quiz,
		"audio":        materials.Audio,
		"placeholders": materials.Placeholders,
	})
}

type speechRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handleTextToSpeech(c *gin.Context) {
	var req speechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "text is required")
		return
	}

	res, err := s.svc.Speech.Synthesize(c.Request.Context(), req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"success":  true,
		"audioUrl": res.AudioURL,
		"fallback": res.Fallback,
	})
}

func (s *Server) handleAudio(c *gin.Context) {
	if s.svc.StudySets == nil {
		unavailable(c, "audio storage")
		return
	}
	clip, err := s.svc.StudySets.GetAudioClip(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, clip.MIMEType, clip.Data)
}

func (s *Server) handleListStudySets(c *gin.Context) {
	if s.svc.StudySets == nil {
		unavailable(c, "study set storage")
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}
	sets, err := s.svc.StudySets.List(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"studySets": sets})
}

func (s *Server) handleGetStudySet(c *gin.Context) {
	if s.svc.StudySets == nil {
		unavailable(c, "study set storage")
		return
	}
	set, err := s.svc.StudySets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"id":         set.ID,
		"fileName":   set.FileName,
		"createdAt":  set.CreatedAt,
		"studyGuide": set.Materials.StudyGuide,
		"flashcards": set.Materials.Flashcards,
		"quiz":       set.Materials.Quiz,
		"audio":      set.Materials.Audio,
	})
}

func (s *Server) handleStudySetReviews(c *gin.Context) {
	if s.svc.StudySets == nil || s.svc.Flashcards == nil {
		unavailable(c, "study set storage")
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.svc.StudySets.Get(ctx, id); err != nil {
		s.fail(c, err)
		return
	}

	reviews, err := s.svc.Flashcards.ListReviews(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	due, err := s.svc.Flashcards.DueCount(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]gin.H, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, gin.H{
			"cardId":        r.CardID,
			"due":           nullTimeToString(r.Due),
			"state":         r.State,
			"reps":          r.Reps,
			"lapses":        r.Lapses,
			"stability":     r.Stability,
			"scheduledDays": r.ScheduledDays,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"reviews": out, "due": due})
}

func nullTimeToString(t sql.NullTime) *string {
	if t.Valid {
		str := t.Time.Format(time.RFC3339)
		return &str
	}
	return nil
}
