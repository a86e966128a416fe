package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ragavi-632007/visionx/internal/analysis"
	"github.com/ragavi-632007/visionx/internal/auth"
	"github.com/ragavi-632007/visionx/internal/authpw"
	"github.com/ragavi-632007/visionx/internal/classify"
	"github.com/ragavi-632007/visionx/internal/config"
	"github.com/ragavi-632007/visionx/internal/document"
	"github.com/ragavi-632007/visionx/internal/export"
	"github.com/ragavi-632007/visionx/internal/history"
	"github.com/ragavi-632007/visionx/internal/logging"
	"github.com/ragavi-632007/visionx/internal/objectstore"
	"github.com/ragavi-632007/visionx/internal/pipeline"
	"github.com/ragavi-632007/visionx/internal/rbac"
	"github.com/ragavi-632007/visionx/internal/search"
	"github.com/ragavi-632007/visionx/internal/session"
	"github.com/ragavi-632007/visionx/internal/store"
	"github.com/ragavi-632007/visionx/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	refreshStore
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	InsertDocument(ctx context.Context, item store.Document) (store.Document, error)
	UpdateDocumentAnalysis(ctx context.Context, item store.Document) (store.Document, error)
	GetDocument(ctx context.Context, documentID, ownerID string) (store.Document, error)
	ListDocuments(ctx context.Context, ownerID string) ([]store.Document, error)
	DeleteDocument(ctx context.Context, documentID, ownerID string) (store.Document, error)

	CreateChatSession(ctx context.Context, session store.ChatSession) (store.ChatSession, error)
	GetChatSession(ctx context.Context, sessionID, ownerID string) (store.ChatSession, error)
	ListChatSessions(ctx context.Context, documentID, ownerID string) ([]store.ChatSession, error)
	DeleteChatSession(ctx context.Context, sessionID, ownerID string) error
	InsertChatMessage(ctx context.Context, message store.ChatMessage) (store.ChatMessage, error)
	ListChatMessages(ctx context.Context, sessionID, ownerID string) ([]store.ChatMessage, error)

	Ping(ctx context.Context) error
}

// refreshStore is satisfied by both the Postgres store and the Redis session
// store.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type objectStore interface {
	Upload(ctx context.Context, ownerID, documentID, fileName, contentType string, data []byte) (string, error)
	Download(ctx context.Context, key string) (objectstore.Object, error)
	Remove(ctx context.Context, key string) error
}

// documentPipeline fails with pipeline.ErrPasswordRequired when a protected
// PDF arrives without a password.
type documentPipeline interface {
	Run(ctx context.Context, file document.File, password, language string) (pipeline.Outcome, error)
}

type chatAnswerer interface {
	Answer(ctx context.Context, req analysis.ChatRequest) (string, error)
	Provider() string
	Model() string
	Configured() bool
}

type historyService interface {
	Record(documentID string, snapshot history.Snapshot, author, message string) (history.CommitInfo, error)
	History(documentID string, limit int) ([]history.CommitInfo, error)
	Get(documentID, hash string) (history.Snapshot, history.CommitInfo, error)
	Remove(documentID string) error
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexDocument(doc search.DocumentRecord)
	DeleteDocument(id string)
	ReindexAll(ctx context.Context, loader search.RecordLoader)
}

type exportService interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type mailer interface {
	IsConfigured() bool
	SendVerificationEmail(to, userName, token string) error
	SendPasswordResetEmail(to, userName, token string) error
	SendAnalysisReadyEmail(to, userName, documentID, documentName, summary string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of Service. Sessions defaults to Store, Pending
// to an in-memory store and Classifier to the keyword classifier.
type Deps struct {
	Store         dataStore
	Sessions      refreshStore
	Pending       session.PendingStore
	Objects       objectStore
	Pipeline      documentPipeline
	Chat          chatAnswerer
	History       historyService
	Search        searchService
	SearchRecords search.RecordLoader
	Export        exportService
	Mail          mailer
	Auth          *authpw.Service
	Classifier    classify.Classifier
	Logger        logrus.FieldLogger
}

type Service struct {
	cfg        config.Config
	store      dataStore
	sessions   refreshStore
	pending    session.PendingStore
	objects    objectStore
	pipeline   documentPipeline
	chat       chatAnswerer
	history    historyService
	search     searchService
	records    search.RecordLoader
	exporter   exportService
	mail       mailer
	auth       *authpw.Service
	classifier classify.Classifier
	loader     document.Loader
	logger     logrus.FieldLogger
}

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:        cfg,
		store:      deps.Store,
		sessions:   deps.Sessions,
		pending:    deps.Pending,
		objects:    deps.Objects,
		pipeline:   deps.Pipeline,
		chat:       deps.Chat,
		history:    deps.History,
		search:     deps.Search,
		records:    deps.SearchRecords,
		exporter:   deps.Export,
		mail:       deps.Mail,
		auth:       deps.Auth,
		classifier: deps.Classifier,
		loader:     document.Loader{MaxBytes: cfg.MaxUploadBytes(), MaxImageSide: document.DefaultMaxImageSide},
		logger:     deps.Logger,
	}
	if s.sessions == nil {
		s.sessions = deps.Store
	}
	if s.pending == nil {
		s.pending = session.NewMemoryPendingStore()
	}
	if s.classifier == nil {
		s.classifier = classify.DefaultKeywords
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.auth
}

func (s *Service) SMTPConfigured() bool {
	return s.mail != nil && s.mail.IsConfigured()
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Ping verifies the database connection is alive
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ReadinessChecks pings every backing service that supports it. The database
// is always checked; the others only when configured.
func (s *Service) ReadinessChecks(ctx context.Context) map[string]error {
	checks := map[string]error{"database": s.store.Ping(ctx)}
	if p, ok := s.pending.(pinger); ok {
		checks["redis"] = p.Ping(ctx)
	}
	if p, ok := s.objects.(pinger); ok {
		checks["objectStore"] = p.Ping(ctx)
	}
	return checks
}

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	found, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// the Redis store only knows the user id
	user, err := s.store.GetUserByID(ctx, found.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh, err := auth.NewRefreshToken()
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if store.IsNotFound(err) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: claims.ExpiresAt(),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		if err := s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			s.logger.WithError(err).Warn("Revoking access token failed")
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.logger.WithError(err).Warn("Revoking refresh session failed")
		}
	}
	return nil
}

// SendVerification mails the verification link. Failures are only logged;
// the account exists either way.
func (s *Service) SendVerification(user store.User, token string) {
	if !s.SMTPConfigured() || token == "" {
		return
	}
	if err := s.mail.SendVerificationEmail(user.Email, user.DisplayName, token); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Sending verification email failed")
	}
}

func (s *Service) SendPasswordReset(user store.User, token string) {
	if !s.SMTPConfigured() || token == "" {
		return
	}
	if err := s.mail.SendPasswordResetEmail(user.Email, user.DisplayName, token); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Sending password reset email failed")
	}
}

// ReindexSearch rebuilds the search index from the database.
func (s *Service) ReindexSearch(ctx context.Context) error {
	if s.search == nil || s.records == nil {
		return domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search index is not configured", nil)
	}
	s.search.ReindexAll(ctx, s.records)
	return nil
}
