package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy/internal/session"
	"studybuddy/internal/viewer"
)

var (
	errNoSession   = errors.New("no active session")
	errInvalidBody = errors.New("invalid request body")
)

// currentSession resolves the caller's session from the X-Session-ID header or
// the session cookie, creating one when neither names a live session.
func (s *Server) currentSession(c *gin.Context) *session.Session {
	cookie, _ := s.cookies.Get(c.Request, cookieName)
	id := c.GetHeader(sessionHeader)
	if id == "" {
		id, _ = cookie.Values[cookieKey].(string)
	}

	sess, created := s.sessions.GetOrCreate(id)
	if created || cookie.Values[cookieKey] != sess.ID {
		cookie.Values[cookieKey] = sess.ID
		if err := cookie.Save(c.Request, c.Writer); err != nil {
			s.logger.Warn().Str("session", sess.ID).Err(err).Msg("Failed to save session cookie")
		}
	}
	c.Header(sessionHeader, sess.ID)
	return sess
}

// lookupSession is currentSession without creation.
func (s *Server) lookupSession(c *gin.Context) (*session.Session, bool) {
	id := c.GetHeader(sessionHeader)
	if id == "" {
		id = c.Query("sessionId")
	}
	if id == "" {
		cookie, _ := s.cookies.Get(c.Request, cookieName)
		id, _ = cookie.Values[cookieKey].(string)
	}
	if id == "" {
		return nil, false
	}
	return s.sessions.Get(id)
}

// sessionAction runs fn against the caller's session and answers with the
// resulting snapshot.
func (s *Server) sessionAction(fn func(c *gin.Context, sess *session.Session) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := s.currentSession(c)
		if err := fn(c, sess); err != nil {
			s.fail(c, err)
			return
		}
		writeJSON(c, http.StatusOK, sess.Snapshot())
	}
}

func (s *Server) handleGetSession(c *gin.Context) {
	writeJSON(c, http.StatusOK, s.currentSession(c).Snapshot())
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		s.fail(c, errNoSession)
		return
	}
	s.sessions.Remove(sess.ID)

	cookie, _ := s.cookies.Get(c.Request, cookieName)
	cookie.Options.MaxAge = -1
	if err := cookie.Save(c.Request, c.Writer); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear session cookie")
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSessionUpload(c *gin.Context) {
	sess := s.currentSession(c)
	upload, err := s.readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := sess.Upload(upload); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, sess.Snapshot())
}

func (s *Server) handleExportGuide(c *gin.Context) {
	if s.svc.Export == nil {
		unavailable(c, "export")
		return
	}
	sess := s.currentSession(c)
	guide, err := sess.StudyGuide()
	if err != nil {
		s.fail(c, err)
		return
	}
	export, err := s.svc.Export.Render(guide, c.DefaultQuery("format", "text"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="study-guide.%s"`, export.Extension))
	c.Data(http.StatusOK, export.ContentType, export.Data)
}

type viewRequest struct {
	View string `json:"view" binding:"required"`
}

func bindView(c *gin.Context, sess *session.Session) error {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return errInvalidBody
	}
	return sess.SetView(req.View)
}

type indexRequest struct {
	Index *int `json:"index" binding:"required"`
}

func bindIndex(c *gin.Context) (int, error) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return 0, errInvalidBody
	}
	return *req.Index, nil
}

func selectSection(c *gin.Context, sess *session.Session) error {
	i, err := bindIndex(c)
	if err != nil {
		return err
	}
	return sess.SelectSection(i)
}

func toggleBookmark(_ *gin.Context, sess *session.Session) error {
	_, err := sess.ToggleBookmark()
	return err
}

func selectAnswer(c *gin.Context, sess *session.Session) error {
	var req struct {
		Option *int `json:"option" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return errInvalidBody
	}
	return sess.SelectAnswer(*req.Option)
}

func seekAudio(c *gin.Context, sess *session.Session) error {
	var req struct {
		Position float64 `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return errInvalidBody
	}
	_, err := sess.SeekAudio(req.Position)
	return err
}

func skipAudio(c *gin.Context, sess *session.Session) error {
	req := struct {
		Delta float64 `json:"delta"`
	}{Delta: viewer.SkipSeconds}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return errInvalidBody
		}
	}
	_, err := sess.SkipAudio(req.Delta)
	return err
}

func audioMetadata(c *gin.Context, sess *session.Session) error {
	var req struct {
		Duration *float64 `json:"duration"`
		Position *float64 `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return errInvalidBody
	}
	return sess.ReportAudioProgress(req.Duration, req.Position)
}

func playSection(c *gin.Context, sess *session.Session) error {
	i, err := bindIndex(c)
	if err != nil {
		return err
	}
	_, err = sess.PlaySection(c.Request.Context(), i)
	return err
}
