package app

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ragavi-632007/visionx/internal/rbac"
)

// allow writes 403 and returns false when the session's role may not
// perform action.
func (s *HTTPServer) allow(w http.ResponseWriter, r *http.Request, session Session, action rbac.Action) bool {
	if s.service.Can(session.Role, action) {
		return true
	}
	s.forbid(w, r, session, action)
	return false
}

// forbid writes a 403 Forbidden response and logs the denial
func (s *HTTPServer) forbid(w http.ResponseWriter, r *http.Request, session Session, action rbac.Action) {
	s.requestLogger(r).WithFields(logrus.Fields{
		"user_id": session.UserID,
		"role":    session.Role,
		"action":  string(action),
	}).Info("Access denied")
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func (s *HTTPServer) handleReindex(w http.ResponseWriter, r *http.Request, session Session) {
	if !s.allow(w, r, session, rbac.ActionAdmin) {
		return
	}
	if err := s.service.ReindexSearch(r.Context()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
