package app

import (
	"bytes"
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ragavi-632007/visionx/internal/analysis"
	"github.com/ragavi-632007/visionx/internal/authpw"
	"github.com/ragavi-632007/visionx/internal/classify"
	"github.com/ragavi-632007/visionx/internal/config"
	"github.com/ragavi-632007/visionx/internal/document"
	"github.com/ragavi-632007/visionx/internal/export"
	"github.com/ragavi-632007/visionx/internal/history"
	"github.com/ragavi-632007/visionx/internal/objectstore"
	"github.com/ragavi-632007/visionx/internal/pdfdoc"
	"github.com/ragavi-632007/visionx/internal/pipeline"
	"github.com/ragavi-632007/visionx/internal/search"
	"github.com/ragavi-632007/visionx/internal/store"
)

// fakeStore is an in-memory dataStore and authpw.UserStore. pingFn and
// insertDocumentFn override the defaults when set.
type fakeStore struct {
	mu               sync.Mutex
	users            map[string]store.User
	resets           map[string]string
	refresh          map[string]string
	revoked          map[string]bool
	documents        map[string]store.Document
	chats            map[string]store.ChatSession
	messages         []store.ChatMessage
	pingFn           func(context.Context) error
	insertDocumentFn func(context.Context, store.Document) (store.Document, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[string]store.User{},
		resets:    map[string]string{},
		refresh:   map[string]string{},
		revoked:   map[string]bool{},
		documents: map[string]store.Document{},
		chats:     map[string]store.ChatSession{},
	}
}

func (f *fakeStore) addUser(user store.User) store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return user
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) UpdateUserVerificationToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.VerificationToken = token
	user.VerificationExpiresAt = &expiresAt
	f.users[userID] = user
	return nil
}

func (f *fakeStore) VerifyUserEmail(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, user := range f.users {
		if token != "" && user.VerificationToken == token {
			user.IsEmailVerified = true
			user.VerificationToken = ""
			f.users[id] = user
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.PasswordHash = passwordHash
	f.users[userID] = user
	return nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, userID, token string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[token] = userID
	return nil
}

func (f *fakeStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.resets[token]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.resets, token)
	return nil
}

func (f *fakeStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = userID
	return nil
}

func (f *fakeStore) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.refresh[tokenHash]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return store.User{ID: userID}, nil
}

func (f *fakeStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeStore) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

func (f *fakeStore) InsertDocument(ctx context.Context, item store.Document) (store.Document, error) {
	if f.insertDocumentFn != nil {
		return f.insertDocumentFn(ctx, item)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	f.documents[item.ID] = item
	return item, nil
}

func (f *fakeStore) UpdateDocumentAnalysis(_ context.Context, item store.Document) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.documents[item.ID]
	if !ok || current.OwnerID != item.OwnerID {
		return store.Document{}, sql.ErrNoRows
	}
	item.UpdatedAt = time.Now().UTC()
	f.documents[item.ID] = item
	return item, nil
}

func (f *fakeStore) GetDocument(_ context.Context, documentID, ownerID string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.documents[documentID]
	if !ok || item.OwnerID != ownerID {
		return store.Document{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) ListDocuments(_ context.Context, ownerID string) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Document, 0)
	for _, item := range f.documents {
		if item.OwnerID == ownerID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, documentID, ownerID string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.documents[documentID]
	if !ok || item.OwnerID != ownerID {
		return store.Document{}, sql.ErrNoRows
	}
	delete(f.documents, documentID)
	return item, nil
}

func (f *fakeStore) CreateChatSession(_ context.Context, chat store.ChatSession) (store.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.documents[chat.DocumentID]; !ok || item.OwnerID != chat.OwnerID {
		return store.ChatSession{}, sql.ErrNoRows
	}
	now := time.Now().UTC()
	chat.CreatedAt, chat.UpdatedAt = now, now
	f.chats[chat.ID] = chat
	return chat, nil
}

func (f *fakeStore) GetChatSession(_ context.Context, sessionID, ownerID string) (store.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[sessionID]
	if !ok || chat.OwnerID != ownerID {
		return store.ChatSession{}, sql.ErrNoRows
	}
	return chat, nil
}

func (f *fakeStore) ListChatSessions(_ context.Context, documentID, ownerID string) ([]store.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.ChatSession, 0)
	for _, chat := range f.chats {
		if chat.DocumentID == documentID && chat.OwnerID == ownerID {
			items = append(items, chat)
		}
	}
	return items, nil
}

func (f *fakeStore) DeleteChatSession(_ context.Context, sessionID, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[sessionID]
	if !ok || chat.OwnerID != ownerID {
		return sql.ErrNoRows
	}
	delete(f.chats, sessionID)
	return nil
}

func (f *fakeStore) InsertChatMessage(_ context.Context, message store.ChatMessage) (store.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[message.SessionID]
	if !ok || chat.OwnerID != message.OwnerID {
		return store.ChatMessage{}, sql.ErrNoRows
	}
	message.CreatedAt = time.Now().UTC()
	f.messages = append(f.messages, message)
	return message, nil
}

func (f *fakeStore) ListChatMessages(_ context.Context, sessionID, ownerID string) ([]store.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.ChatMessage, 0)
	for _, message := range f.messages {
		if message.SessionID == sessionID && message.OwnerID == ownerID {
			items = append(items, message)
		}
	}
	return items, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]objectstore.Object
	removed []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string]objectstore.Object{}}
}

func (f *fakeObjects) Upload(_ context.Context, ownerID, documentID, fileName, contentType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := objectstore.ObjectKey(ownerID, documentID, fileName)
	f.objects[key] = objectstore.Object{Data: bytes.Clone(data), ContentType: contentType, Size: int64(len(data))}
	return key, nil
}

func (f *fakeObjects) Download(_ context.Context, key string) (objectstore.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	object, ok := f.objects[key]
	if !ok {
		return objectstore.Object{}, sql.ErrNoRows
	}
	return object, nil
}

func (f *fakeObjects) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeObjects) PresignedURL(_ context.Context, key, fileName string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key + "?name=" + fileName, nil
}

const (
	testPassword    = "s3cret"
	encryptedMarker = "/Encrypt"
)

// fakePipeline treats PDFs containing encryptedMarker as protected and
// accepts only testPassword for them.
type fakePipeline struct {
	mu        sync.Mutex
	runs      int
	analyzed  int
	passwords []string
	languages []string
	runFn     func(ctx context.Context, file document.File, password, language string) (pipeline.Outcome, error)
}

func (f *fakePipeline) protected(file document.File) bool {
	return file.IsPDF() && bytes.Contains(file.Data, []byte(encryptedMarker))
}

func (f *fakePipeline) Run(ctx context.Context, file document.File, password, language string) (pipeline.Outcome, error) {
	f.mu.Lock()
	f.runs++
	f.passwords = append(f.passwords, password)
	f.languages = append(f.languages, language)
	f.mu.Unlock()
	if f.runFn != nil {
		return f.runFn(ctx, file, password, language)
	}

	protected := f.protected(file)
	outcome := pipeline.Outcome{File: file, Protected: protected}
	if protected {
		if password == "" {
			return pipeline.Outcome{}, pipeline.ErrPasswordRequired
		}
		if password != testPassword {
			return pipeline.Outcome{}, pdfdoc.ErrInvalidPassword
		}
		outcome.RenderedPages = 2
	} else {
		outcome.DocumentText = "This lease agreement is made between the landlord and the tenant."
	}
	f.mu.Lock()
	f.analyzed++
	f.mu.Unlock()
	outcome.Result = sampleResult("Summary in " + language)
	outcome.Insights = classify.Resolve(classify.DefaultKeywords, outcome.Result, outcome.DocumentText)
	return outcome, nil
}

func sampleResult(summary string) analysis.Result {
	legal := true
	authenticity := analysis.AuthenticityReal
	return analysis.Result{
		Summary:             summary,
		Pros:                []string{"Fixed rent for two years"},
		Cons:                []string{"Large deposit"},
		PotentialLoopholes:  []string{"No repair deadline"},
		PotentialChallenges: []string{"Early termination penalty"},
		IsLegal:             &legal,
		Authenticity:        &authenticity,
	}
}

type fakeChat struct {
	mu       sync.Mutex
	requests []analysis.ChatRequest
	answerFn func(ctx context.Context, req analysis.ChatRequest) (string, error)
}

func (f *fakeChat) Answer(ctx context.Context, req analysis.ChatRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.answerFn != nil {
		return f.answerFn(ctx, req)
	}
	return "The deposit is two months of rent.", nil
}

func (f *fakeChat) Provider() string { return "googleai" }
func (f *fakeChat) Model() string    { return "gemini-test" }
func (f *fakeChat) Configured() bool { return true }

type fakeSearch struct {
	mu      sync.Mutex
	indexed []string
	deleted []string
	queries []search.Query
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return search.Response{Results: []search.Result{{ID: "doc_1", FileName: "lease.pdf"}}, Total: 1, Query: q.Text}
}

func (f *fakeSearch) IndexDocument(doc search.DocumentRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, doc.ID)
}

func (f *fakeSearch) DeleteDocument(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

func (f *fakeSearch) ReindexAll(context.Context, search.RecordLoader) {}

type fakeExport struct {
	requests []export.Request
}

func (f *fakeExport) Export(_ context.Context, req export.Request) (*export.Result, error) {
	f.requests = append(f.requests, req)
	return &export.Result{Data: []byte("%PDF-report"), Filename: "lease-analysis.pdf", MimeType: "application/pdf"}, nil
}

type sentMail struct {
	kind  string
	to    string
	token string
}

type fakeMailer struct {
	configured bool
	sent       []sentMail
}

func (f *fakeMailer) IsConfigured() bool { return f.configured }

func (f *fakeMailer) SendVerificationEmail(to, _, token string) error {
	f.sent = append(f.sent, sentMail{kind: "verify", to: to, token: token})
	return nil
}

func (f *fakeMailer) SendPasswordResetEmail(to, _, token string) error {
	f.sent = append(f.sent, sentMail{kind: "reset", to: to, token: token})
	return nil
}

func (f *fakeMailer) SendAnalysisReadyEmail(to, _, documentID, _, _ string) error {
	f.sent = append(f.sent, sentMail{kind: "analysis", to: to, token: documentID})
	return nil
}

type testEnv struct {
	store    *fakeStore
	objects  *fakeObjects
	pipeline *fakePipeline
	chat     *fakeChat
	search   *fakeSearch
	export   *fakeExport
	mail     *fakeMailer
	service  *Service
	server   *HTTPServer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    newFakeStore(),
		objects:  newFakeObjects(),
		pipeline: &fakePipeline{},
		chat:     &fakeChat{},
		search:   &fakeSearch{},
		export:   &fakeExport{},
		mail:     &fakeMailer{},
	}
	cfg := config.Config{
		JWTSecret:   "test-secret",
		AccessTTL:   time.Hour,
		RefreshTTL:  24 * time.Hour,
		PendingTTL:  time.Minute,
		MaxUploadMB: 1,
	}
	env.service = New(cfg, Deps{
		Store:    env.store,
		Objects:  env.objects,
		Pipeline: env.pipeline,
		Chat:     env.chat,
		History:  history.New(t.TempDir()),
		Search:   env.search,
		Export:   env.export,
		Mail:     env.mail,
		Auth:     authpw.NewService(env.store, nil),
	})
	env.server = NewHTTPServer(env.service, "*")
	return env
}

// login creates a verified user with role and returns its access token.
func (e *testEnv) login(t *testing.T, userID, role string) string {
	t.Helper()
	user := e.store.addUser(storeUser(userID, role))
	session, err := e.service.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return session.Token
}

func plainPDF() []byte {
	return []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << /Root 1 0 R >>\n%%EOF\n")
}

func protectedPDF() []byte {
	return []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << /Root 1 0 R " + encryptedMarker + " 2 0 R >>\n%%EOF\n")
}
