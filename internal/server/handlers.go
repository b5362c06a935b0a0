package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	yferrors "yuanfang/internal/errors"
	"yuanfang/internal/session"
)

type chatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Text      string `json:"text" binding:"required"`
}

type sessionView struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Turns        int       `json:"turns"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func viewOf(sess *session.Session) sessionView {
	return sessionView{
		ID:           sess.ID,
		Status:       string(sess.Status()),
		Turns:        len(sess.Turns()),
		CreatedAt:    sess.CreatedAt,
		LastActiveAt: sess.LastActiveAt,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleOpenSession(c *gin.Context) {
	sess := s.controller.OpenSession()
	c.JSON(http.StatusCreated, viewOf(sess))
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.controller.GetSession(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) handleCloseSession(c *gin.Context) {
	if err := s.controller.CloseSession(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := s.controller.SubmitUtterance(c.Request.Context(), req.SessionID, req.Text)
	if err != nil {
		s.writeTurnError(c, err)
		return
	}
	s.speech.Speak(outcome.Reply)
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) handleEmotions(c *gin.Context) {
	logs, err := s.controller.Emotions(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"emotions": logs})
}

func (s *Server) writeTurnError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case yferrors.IsSessionClosed(err):
		c.JSON(http.StatusGone, gin.H{"error": "session closed"})
	default:
		s.logger.Error("chat turn failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
