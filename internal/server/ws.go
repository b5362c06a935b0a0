package server

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"yuanfang/internal/session"
)

type wsInbound struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type wsOutbound struct {
	Type    string               `json:"type"`
	Error   string               `json:"error,omitempty"`
	Outcome *session.TurnOutcome `json:"outcome,omitempty"`
}

// handleWebSocket runs a chat loop over one connection. Each inbound message
// is a full turn; the reply is pushed back when the turn delivers. A missing
// session_id opens a fresh session bound to the connection.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var boundSession string
	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended: %v", err)
			}
			return
		}
		if in.Text == "" {
			s.writeWS(conn, wsOutbound{Type: "error", Error: "text is required"})
			continue
		}

		sessionID := in.SessionID
		if sessionID == "" {
			if boundSession == "" {
				boundSession = s.controller.OpenSession().ID
			}
			sessionID = boundSession
		}

		outcome, err := s.controller.SubmitUtterance(c.Request.Context(), sessionID, in.Text)
		if err != nil {
			s.writeWS(conn, wsOutbound{Type: "error", Error: turnErrorMessage(err)})
			continue
		}
		s.speech.Speak(outcome.Reply)
		s.writeWS(conn, wsOutbound{Type: "reply", Outcome: outcome})
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg wsOutbound) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("websocket write failed: %v", err)
	}
}

func turnErrorMessage(err error) string {
	if errors.Is(err, session.ErrSessionNotFound) {
		return "session not found"
	}
	return err.Error()
}
