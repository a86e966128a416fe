package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ragavi-632007/visionx/internal/auth"
	"github.com/ragavi-632007/visionx/internal/authpw"
	"github.com/ragavi-632007/visionx/internal/rbac"
	"github.com/ragavi-632007/visionx/internal/session"
)

// multipart bodies beyond the file itself: form fields and boundaries
const multipartOverhead = 1 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     logrus.FieldLogger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: service.logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/verify-email" {
		s.handleAuthVerifyEmail(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/reset-password/request" {
		s.handleAuthRequestReset(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/reset-password" {
		s.handleAuthResetPassword(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userName":      session.UserName,
			"userId":        session.UserID,
			"email":         session.Email,
			"role":          session.Role,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		session := Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				session = parsed
			}
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), session, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		if !s.service.Can(session.Role, rbac.ActionRead) {
			s.forbid(w, r, session, rbac.ActionRead)
			return
		}
		limit, offset, ok := pagination(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s.service.Search(r.Context(), session.UserID, r.URL.Query().Get("q"), limit, offset))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/admin/search/reindex" {
		s.handleReindex(w, r, session)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "documents" {
		s.handleDocuments(w, r, session, parts[2:])
		return
	}
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "chats" {
		s.handleChats(w, r, session, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.ReadinessChecks(ctx) {
		if err == nil {
			checks[name] = map[string]any{"status": "ok"}
			continue
		}
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks[name] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, r, session, rbac.ActionRead) {
				return
			}
			payload, err := s.service.ListDocuments(ctx, session.UserID)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodPost:
			if !s.allow(w, r, session, rbac.ActionUpload) {
				return
			}
			s.handleUpload(w, r, session)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if parts[0] == "pending" && len(parts) == 2 && r.Method == http.MethodDelete {
		if !s.allow(w, r, session, rbac.ActionUpload) {
			return
		}
		err := s.service.CancelPending(ctx, session.UserID, parts[1])
		s.respond(w, r, http.StatusOK, map[string]any{"ok": true}, err)
		return
	}

	documentID := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			if !s.allow(w, r, session, rbac.ActionRead) {
				return
			}
			payload, err := s.service.GetDocument(ctx, documentID, session.UserID)
			s.respond(w, r, http.StatusOK, payload, err)
		case http.MethodDelete:
			if !s.allow(w, r, session, rbac.ActionDelete) {
				return
			}
			err := s.service.DeleteDocument(ctx, documentID, session.UserID)
			s.respond(w, r, http.StatusOK, map[string]any{"ok": true}, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch {
	case parts[1] == "file" && len(parts) == 2 && r.Method == http.MethodGet:
		if !s.allow(w, r, session, rbac.ActionRead) {
			return
		}
		file, err := s.service.DocumentFile(ctx, documentID, session.UserID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeAttachment(w, file.Name, file.ContentType, file.Data)

	case parts[1] == "link" && len(parts) == 2 && r.Method == http.MethodGet:
		if !s.allow(w, r, session, rbac.ActionRead) {
			return
		}
		payload, err := s.service.DownloadLink(ctx, documentID, session.UserID)
		s.respond(w, r, http.StatusOK, payload, err)

	case parts[1] == "reanalyze" && len(parts) == 2 && r.Method == http.MethodPost:
		if !s.allow(w, r, session, rbac.ActionAnalyze) {
			return
		}
		var body struct {
			Language string `json:"language"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.Reanalyze(ctx, session, documentID, body.Language, body.Password)
		s.respond(w, r, http.StatusOK, payload, err)

	case parts[1] == "history" && len(parts) == 2 && r.Method == http.MethodGet:
		if !s.allow(w, r, session, rbac.ActionRead) {
			return
		}
		limit, _, ok := pagination(w, r)
		if !ok {
			return
		}
		payload, err := s.service.ListHistory(ctx, documentID, session.UserID, limit)
		s.respond(w, r, http.StatusOK, payload, err)

	case parts[1] == "history" && len(parts) == 3 && r.Method == http.MethodGet:
		if !s.allow(w, r, session, rbac.ActionRead) {
			return
		}
		payload, err := s.service.GetHistory(ctx, documentID, session.UserID, parts[2])
		s.respond(w, r, http.StatusOK, payload, err)

	case parts[1] == "insights" && len(parts) == 2 && r.Method == http.MethodGet:
		if !s.allow(w, r, session, rbac.ActionRead) {
			return
		}
		insights, err := s.service.Insights(ctx, documentID, session.UserID)
		s.respond(w, r, http.StatusOK, insights, err)

	case parts[1] == "export" && len(parts) == 2 && r.Method == http.MethodGet:
		if !s.allow(w, r, session, rbac.ActionExport) {
			return
		}
		query := r.URL.Query()
		includeChat, _ := strconv.ParseBool(query.Get("includeChat"))
		result, err := s.service.Export(ctx, session.UserID, documentID, query.Get("format"), includeChat)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeAttachment(w, result.Filename, result.MimeType, result.Data)

	case parts[1] == "chats" && len(parts) == 2 && r.Method == http.MethodGet:
		if !s.allow(w, r, session, rbac.ActionRead) {
			return
		}
		payload, err := s.service.ListChats(ctx, documentID, session.UserID)
		s.respond(w, r, http.StatusOK, payload, err)

	case parts[1] == "chats" && len(parts) == 2 && r.Method == http.MethodPost:
		if !s.allow(w, r, session, rbac.ActionChat) {
			return
		}
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateChat(ctx, documentID, session.UserID, body.Title)
		s.respond(w, r, http.StatusCreated, payload, err)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, session Session) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.cfg.MaxUploadBytes()+multipartOverhead)

	var in UploadInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "The file is larger than the upload limit.", nil)
				return
			}
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
			return
		}
		in.Language = r.FormValue("language")
		in.Password = r.FormValue("password")
		in.PendingID = r.FormValue("pendingId")
		if in.PendingID == "" {
			file, header, err := r.FormFile("file")
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is required", nil)
				return
			}
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read file", nil)
				return
			}
			in.FileName = header.Filename
			in.MIMEType = header.Header.Get("Content-Type")
			in.Data = data
		}
	} else {
		var body struct {
			PendingID string `json:"pendingId"`
			Password  string `json:"password"`
			Language  string `json:"language"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.PendingID) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "pendingId is required", nil)
			return
		}
		in = UploadInput{PendingID: body.PendingID, Password: body.Password, Language: body.Language}
	}

	payload, err := s.service.UploadDocument(r.Context(), session, in)
	s.respond(w, r, http.StatusCreated, payload, err)
}

func (s *HTTPServer) handleChats(w http.ResponseWriter, r *http.Request, session Session, chatID string, rest []string) {
	ctx := r.Context()
	switch {
	case len(rest) == 0 && r.Method == http.MethodDelete:
		if !s.allow(w, r, session, rbac.ActionChat) {
			return
		}
		err := s.service.DeleteChat(ctx, chatID, session.UserID)
		s.respond(w, r, http.StatusOK, map[string]any{"ok": true}, err)

	case len(rest) == 1 && rest[0] == "messages" && r.Method == http.MethodGet:
		if !s.allow(w, r, session, rbac.ActionRead) {
			return
		}
		payload, err := s.service.ListMessages(ctx, chatID, session.UserID)
		s.respond(w, r, http.StatusOK, payload, err)

	case len(rest) == 1 && rest[0] == "messages" && r.Method == http.MethodPost:
		if !s.allow(w, r, session, rbac.ActionChat) {
			return
		}
		var body struct {
			Question string `json:"question"`
			Language string `json:"language"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.AskQuestion(ctx, chatID, session.UserID, body.Question, body.Language)
		s.respond(w, r, http.StatusCreated, payload, err)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		s.requestLogger(r).WithError(err).Error("Session lookup failed")
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

// respond writes payload with status, or the mapped error.
func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, status int, payload any, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, payload)
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.requestLogger(r).WithError(err).WithField("code", code).Error("Request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) requestLogger(r *http.Request) logrus.FieldLogger {
	requestID, _ := r.Context().Value(requestIDKey{}).(string)
	return s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
	})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.requestLogger(r).WithFields(logrus.Fields{
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("Request handled")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeAttachment(w http.ResponseWriter, fileName, contentType string, data []byte) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func pagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return 0, 0, false
		}
		limit = parsed
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return 0, 0, false
		}
		offset = parsed
	}
	return limit, offset, true
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"email":        session.Email,
		"role":         session.Role,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, session.ErrPendingNotFound):
		return http.StatusNotFound, "PENDING_NOT_FOUND", "The upload expired. Please upload the document again.", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, authpw.ErrMissingFields), errors.Is(err, authpw.ErrInvalidEmail), errors.Is(err, authpw.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, authpw.ErrEmailNotVerified):
		return http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Please verify your email before signing in", nil
	case errors.Is(err, authpw.ErrInvalidToken):
		return http.StatusBadRequest, "INVALID_TOKEN", "Invalid or expired token", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// Auth handlers for email/password authentication

func (s *HTTPServer) authService(w http.ResponseWriter) (*authpw.Service, bool) {
	authSvc := s.service.AuthPasswordService()
	if authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
		return nil, false
	}
	return authSvc, true
}

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	authSvc, ok := s.authService(w)
	if !ok {
		return
	}

	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	resp, err := authSvc.SignUp(r.Context(), authpw.SignUpRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	response := map[string]any{
		"userId":  resp.User.ID,
		"message": "Please check your email to verify your account",
	}
	// Dev bypass: include verification token in response when email not configured
	if s.service.SMTPConfigured() {
		s.service.SendVerification(resp.User, resp.VerificationToken)
	} else {
		response["devVerificationToken"] = resp.VerificationToken
		response["message"] = "Account created. Verify your email to continue."
	}

	writeJSON(w, http.StatusCreated, response)
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	authSvc, ok := s.authService(w)
	if !ok {
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	user, err := authSvc.SignIn(r.Context(), authpw.SignInRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	session, err := s.service.CreateSession(r.Context(), user.ID)
	if err != nil {
		s.requestLogger(r).WithError(err).Error("Creating session failed")
		writeError(w, http.StatusInternalServerError, "SESSION_FAILED", "Failed to create session", nil)
		return
	}

	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleAuthVerifyEmail(w http.ResponseWriter, r *http.Request) {
	authSvc, ok := s.authService(w)
	if !ok {
		return
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	if err := authSvc.VerifyEmail(r.Context(), body.Token); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully",
	})
}

func (s *HTTPServer) handleAuthRequestReset(w http.ResponseWriter, r *http.Request) {
	authSvc, ok := s.authService(w)
	if !ok {
		return
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	token, user, err := authSvc.RequestPasswordReset(r.Context(), body.Email)
	if err != nil {
		s.requestLogger(r).WithError(err).Warn("Password reset request failed")
	}

	response := map[string]any{
		"message": "If an account exists, a reset email has been sent",
	}
	// Dev bypass: include reset token in response when email not configured and token was created
	if s.service.SMTPConfigured() {
		s.service.SendPasswordReset(user, token)
	} else if token != "" {
		response["devResetToken"] = token
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleAuthResetPassword(w http.ResponseWriter, r *http.Request) {
	authSvc, ok := s.authService(w)
	if !ok {
		return
	}

	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	if err := authSvc.ResetPassword(r.Context(), authpw.ResetPasswordRequest{
		Token:       body.Token,
		NewPassword: body.NewPassword,
	}); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successfully",
	})
}
