package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ragavi-632007/visionx/internal/analysis"
	"github.com/ragavi-632007/visionx/internal/classify"
	"github.com/ragavi-632007/visionx/internal/document"
	"github.com/ragavi-632007/visionx/internal/export"
	"github.com/ragavi-632007/visionx/internal/history"
	"github.com/ragavi-632007/visionx/internal/pdfdoc"
	"github.com/ragavi-632007/visionx/internal/pipeline"
	"github.com/ragavi-632007/visionx/internal/search"
	"github.com/ragavi-632007/visionx/internal/session"
	"github.com/ragavi-632007/visionx/internal/store"
	"github.com/ragavi-632007/visionx/internal/util"
)

const defaultLanguage = "en"

// UploadInput is either a new upload (FileName, MIMEType, Data) or a retry
// of a pending protected upload (PendingID). Password is used for this call
// only and never stored.
type UploadInput struct {
	FileName  string
	MIMEType  string
	Data      []byte
	Language  string
	Password  string
	PendingID string
}

// upload is the original file as received, before any normalization.
type upload struct {
	name     string
	mimeType string
	data     []byte
	language string
}

func (s *Service) UploadDocument(ctx context.Context, session Session, in UploadInput) (map[string]any, error) {
	original, err := s.resolveUpload(ctx, session.UserID, in)
	if err != nil {
		return nil, err
	}
	file, err := s.loader.Load(original.name, original.mimeType, original.data)
	if err != nil {
		return nil, analysisError(err)
	}

	logger := s.logger.WithFields(logrus.Fields{"user_id": session.UserID, "file": file.Name})
	pendingID := strings.TrimSpace(in.PendingID)

	outcome, err := s.pipeline.Run(ctx, file, in.Password, original.language)
	if err != nil {
		if errors.Is(err, pipeline.ErrPasswordRequired) {
			if pendingID == "" {
				if pendingID, err = s.savePending(ctx, session.UserID, original); err != nil {
					return nil, err
				}
			}
			return nil, passwordRequired(map[string]any{"pendingId": pendingID})
		}
		if errors.Is(err, pdfdoc.ErrInvalidPassword) {
			return nil, s.invalidPassword(ctx, session.UserID, pendingID, original)
		}
		logger.WithError(err).Warn("Document analysis failed")
		return nil, analysisError(err)
	}

	saved, err := s.persistDocument(ctx, session, original, outcome)
	if err != nil {
		return nil, err
	}
	if pendingID != "" {
		if err := s.pending.DeletePending(ctx, session.UserID, pendingID); err != nil {
			logger.WithError(err).Warn("Removing pending upload failed")
		}
	}

	s.recordHistory(saved, session, "Analyze "+saved.FileName)
	s.indexDocument(saved)
	s.notifyAnalysisReady(session, saved)

	payload := documentPayload(saved)
	payload["insights"] = outcome.Insights
	return payload, nil
}

func (s *Service) resolveUpload(ctx context.Context, ownerID string, in UploadInput) (upload, error) {
	language := strings.TrimSpace(in.Language)
	pendingID := strings.TrimSpace(in.PendingID)
	if pendingID == "" {
		if language == "" {
			language = defaultLanguage
		}
		return upload{name: in.FileName, mimeType: in.MIMEType, data: in.Data, language: language}, nil
	}

	pending, err := s.pending.GetPending(ctx, ownerID, pendingID)
	if err != nil {
		if errors.Is(err, session.ErrPendingNotFound) {
			return upload{}, domainError(http.StatusNotFound, "PENDING_NOT_FOUND", "The upload expired. Please upload the document again.", nil)
		}
		return upload{}, err
	}
	if language == "" {
		language = pending.Language
	}
	if language == "" {
		language = defaultLanguage
	}
	return upload{name: pending.FileName, mimeType: pending.MIMEType, data: pending.Data, language: language}, nil
}

func (s *Service) savePending(ctx context.Context, ownerID string, original upload) (string, error) {
	id := util.NewID("pnd")
	err := s.pending.SavePending(ctx, session.PendingUpload{
		ID:        id,
		OwnerID:   ownerID,
		FileName:  original.name,
		MIMEType:  original.mimeType,
		Language:  original.language,
		Data:      original.data,
		CreatedAt: time.Now().UTC(),
	}, s.cfg.PendingTTL)
	if err != nil {
		return "", err
	}
	return id, nil
}

// invalidPassword keeps the upload for another attempt until the attempts
// run out.
func (s *Service) invalidPassword(ctx context.Context, ownerID, pendingID string, original upload) error {
	remaining := session.MaxPasswordAttempts - 1
	var err error
	if pendingID == "" {
		pendingID, err = s.savePending(ctx, ownerID, original)
		if err == nil {
			remaining, err = s.pending.RecordFailedAttempt(ctx, ownerID, pendingID)
		}
	} else {
		remaining, err = s.pending.RecordFailedAttempt(ctx, ownerID, pendingID)
	}
	if err != nil && !errors.Is(err, session.ErrPendingNotFound) {
		return err
	}

	details := map[string]any{"attemptsRemaining": remaining}
	if remaining > 0 {
		details["pendingId"] = pendingID
	}
	return domainError(http.StatusUnprocessableEntity, "INVALID_PASSWORD", analysis.MessageInvalidPassword, details)
}

func passwordRequired(details map[string]any) error {
	return domainError(http.StatusLocked, "PASSWORD_REQUIRED", messagePasswordRequired, details)
}

// persistDocument stores the original bytes (still encrypted when the upload
// was protected) and the analysis. Decrypted text of protected files is never
// persisted.
func (s *Service) persistDocument(ctx context.Context, session Session, original upload, outcome pipeline.Outcome) (store.Document, error) {
	documentID := util.NewID("doc")
	fileName := util.SafeFileName(original.name)
	fileType := document.DetectMIME(original.name, original.mimeType, original.data)

	key, err := s.objects.Upload(ctx, session.UserID, documentID, fileName, fileType, original.data)
	if err != nil {
		return store.Document{}, err
	}

	item := store.Document{
		ID:          documentID,
		OwnerID:     session.UserID,
		FileName:    fileName,
		FileType:    fileType,
		FileSize:    int64(len(original.data)),
		ObjectKey:   key,
		Language:    original.language,
		IsProtected: outcome.Protected,
		PageCount:   outcome.RenderedPages,
		ContentText: outcome.DocumentText,
	}
	applyResult(&item, outcome.Result)
	item.Provider, item.Model = s.modelInfo()

	saved, err := s.store.InsertDocument(ctx, item)
	if err != nil {
		if removeErr := s.objects.Remove(ctx, key); removeErr != nil {
			s.logger.WithError(removeErr).WithField("object_key", key).Warn("Removing orphaned upload failed")
		}
		return store.Document{}, err
	}
	return saved, nil
}

func applyResult(item *store.Document, result analysis.Result) {
	item.Summary = result.Summary
	item.Pros = result.Pros
	item.Cons = result.Cons
	item.PotentialLoopholes = result.PotentialLoopholes
	item.PotentialChallenges = result.PotentialChallenges
	item.IsLegal = result.IsLegal
	item.Authenticity = nil
	if result.Authenticity != nil {
		value := string(*result.Authenticity)
		item.Authenticity = &value
	}
}

func resultFromDocument(item store.Document) analysis.Result {
	result := analysis.Result{
		Summary:             item.Summary,
		Pros:                item.Pros,
		Cons:                item.Cons,
		PotentialLoopholes:  item.PotentialLoopholes,
		PotentialChallenges: item.PotentialChallenges,
		IsLegal:             item.IsLegal,
	}
	if item.Authenticity != nil {
		if value, ok := analysis.ParseAuthenticity(*item.Authenticity); ok {
			result.Authenticity = &value
		}
	}
	return result
}

func snapshotFromDocument(item store.Document) history.Snapshot {
	return history.Snapshot{
		Summary:             item.Summary,
		Pros:                item.Pros,
		Cons:                item.Cons,
		PotentialLoopholes:  item.PotentialLoopholes,
		PotentialChallenges: item.PotentialChallenges,
		IsLegal:             item.IsLegal,
		Authenticity:        item.Authenticity,
		Language:            item.Language,
		Provider:            item.Provider,
		Model:               item.Model,
		PageCount:           item.PageCount,
	}
}

func (s *Service) modelInfo() (provider, model string) {
	if s.chat == nil {
		return "", ""
	}
	return s.chat.Provider(), s.chat.Model()
}

func (s *Service) recordHistory(item store.Document, session Session, message string) {
	if s.history == nil {
		return
	}
	author := session.UserName
	if author == "" {
		author = session.Email
	}
	if _, err := s.history.Record(item.ID, snapshotFromDocument(item), author, message); err != nil {
		s.logger.WithError(err).WithField("document_id", item.ID).Warn("Recording analysis history failed")
	}
}

func (s *Service) indexDocument(item store.Document) {
	if s.search != nil {
		s.search.IndexDocument(search.RecordFromDocument(item))
	}
}

func (s *Service) notifyAnalysisReady(session Session, item store.Document) {
	if !s.SMTPConfigured() || session.Email == "" {
		return
	}
	if err := s.mail.SendAnalysisReadyEmail(session.Email, session.UserName, item.ID, item.FileName, item.Summary); err != nil {
		s.logger.WithError(err).WithField("document_id", item.ID).Warn("Sending analysis email failed")
	}
}

func (s *Service) CancelPending(ctx context.Context, ownerID, pendingID string) error {
	return s.pending.DeletePending(ctx, ownerID, pendingID)
}

func (s *Service) ListDocuments(ctx context.Context, ownerID string) (map[string]any, error) {
	items, err := s.store.ListDocuments(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	documents := make([]map[string]any, 0, len(items))
	for _, item := range items {
		documents = append(documents, documentSummaryPayload(item))
	}
	return map[string]any{"documents": documents}, nil
}

func (s *Service) GetDocument(ctx context.Context, documentID, ownerID string) (map[string]any, error) {
	item, err := s.store.GetDocument(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	return documentPayload(item), nil
}

// DeleteDocument removes the record first so a failure leaves nothing
// visible; the stored file, history and index entry are cleaned up after.
func (s *Service) DeleteDocument(ctx context.Context, documentID, ownerID string) error {
	item, err := s.store.DeleteDocument(ctx, documentID, ownerID)
	if err != nil {
		return err
	}
	logger := s.logger.WithField("document_id", item.ID)
	if item.ObjectKey != "" {
		if err := s.objects.Remove(ctx, item.ObjectKey); err != nil {
			logger.WithError(err).Warn("Removing stored file failed")
		}
	}
	if s.history != nil {
		if err := s.history.Remove(item.ID); err != nil {
			logger.WithError(err).Warn("Removing analysis history failed")
		}
	}
	if s.search != nil {
		s.search.DeleteDocument(item.ID)
	}
	return nil
}

// DocumentFile is the original upload as stored.
type DocumentFile struct {
	Name        string
	ContentType string
	Data        []byte
}

func (s *Service) DocumentFile(ctx context.Context, documentID, ownerID string) (DocumentFile, error) {
	item, err := s.store.GetDocument(ctx, documentID, ownerID)
	if err != nil {
		return DocumentFile{}, err
	}
	object, err := s.objects.Download(ctx, item.ObjectKey)
	if err != nil {
		return DocumentFile{}, err
	}
	contentType := object.ContentType
	if contentType == "" {
		contentType = item.FileType
	}
	return DocumentFile{Name: item.FileName, ContentType: contentType, Data: object.Data}, nil
}

type presigner interface {
	PresignedURL(ctx context.Context, key, fileName string, expiry time.Duration) (string, error)
}

const downloadLinkTTL = 15 * time.Minute

// DownloadLink returns a short-lived direct link to the original upload when
// the object store can sign one.
func (s *Service) DownloadLink(ctx context.Context, documentID, ownerID string) (map[string]any, error) {
	signer, ok := s.objects.(presigner)
	if !ok {
		return nil, domainError(http.StatusNotImplemented, "LINK_UNAVAILABLE", "Direct download links are not available", nil)
	}
	item, err := s.store.GetDocument(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	link, err := signer.PresignedURL(ctx, item.ObjectKey, item.FileName, downloadLinkTTL)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"url":       link,
		"expiresAt": time.Now().UTC().Add(downloadLinkTTL),
	}, nil
}

// Reanalyze runs the stored original through the pipeline again, typically
// in another language. Protected documents need their password every time.
func (s *Service) Reanalyze(ctx context.Context, session Session, documentID, language, password string) (map[string]any, error) {
	item, err := s.store.GetDocument(ctx, documentID, session.UserID)
	if err != nil {
		return nil, err
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = item.Language
	}

	object, err := s.objects.Download(ctx, item.ObjectKey)
	if err != nil {
		return nil, err
	}
	file, err := s.loader.Load(item.FileName, item.FileType, object.Data)
	if err != nil {
		return nil, analysisError(err)
	}
	outcome, err := s.pipeline.Run(ctx, file, password, language)
	if err != nil {
		if errors.Is(err, pipeline.ErrPasswordRequired) {
			return nil, passwordRequired(map[string]any{"documentId": item.ID})
		}
		if !errors.Is(err, pdfdoc.ErrInvalidPassword) {
			s.logger.WithError(err).WithField("document_id", item.ID).Warn("Reanalysis failed")
		}
		return nil, analysisError(err)
	}

	applyResult(&item, outcome.Result)
	item.Language = language
	item.PageCount = outcome.RenderedPages
	item.Provider, item.Model = s.modelInfo()

	saved, err := s.store.UpdateDocumentAnalysis(ctx, item)
	if err != nil {
		return nil, err
	}
	s.recordHistory(saved, session, "Reanalyze in "+analysis.LanguageName(language))
	s.indexDocument(saved)

	payload := documentPayload(saved)
	payload["insights"] = outcome.Insights
	return payload, nil
}

func (s *Service) ListHistory(ctx context.Context, documentID, ownerID string, limit int) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID, ownerID); err != nil {
		return nil, err
	}
	commits := []history.CommitInfo{}
	if s.history != nil {
		items, err := s.history.History(documentID, limit)
		if err != nil && !errors.Is(err, history.ErrNoHistory) {
			return nil, err
		}
		if items != nil {
			commits = items
		}
	}
	return map[string]any{"documentId": documentID, "history": commits}, nil
}

// GetHistory returns one recorded run and how it differs from the current
// analysis.
func (s *Service) GetHistory(ctx context.Context, documentID, ownerID, hash string) (map[string]any, error) {
	item, err := s.store.GetDocument(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, domainError(http.StatusNotFound, "HISTORY_NOT_FOUND", "History entry not found", nil)
	}
	snapshot, commit, err := s.history.Get(documentID, hash)
	if err != nil {
		s.logger.WithError(err).WithField("document_id", documentID).Debug("History lookup failed")
		return nil, domainError(http.StatusNotFound, "HISTORY_NOT_FOUND", "History entry not found", nil)
	}
	return map[string]any{
		"documentId": documentID,
		"commit":     commit,
		"analysis":   snapshot,
		"changes":    history.DiffSnapshots(snapshot, snapshotFromDocument(item)),
	}, nil
}

// Insights reruns the classifier over the stored analysis and text.
func (s *Service) Insights(ctx context.Context, documentID, ownerID string) (classify.Insights, error) {
	item, err := s.store.GetDocument(ctx, documentID, ownerID)
	if err != nil {
		return classify.Insights{}, err
	}
	return classify.Resolve(s.classifier, resultFromDocument(item), item.ContentText), nil
}

func (s *Service) Export(ctx context.Context, ownerID, documentID, format string, includeChat bool) (*export.Result, error) {
	if s.exporter == nil {
		return nil, exportError(export.ErrPDFDependencyMissing)
	}
	parsed, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, exportError(err)
	}
	result, err := s.exporter.Export(ctx, export.Request{
		DocumentID:  documentID,
		OwnerID:     ownerID,
		Format:      parsed,
		IncludeChat: includeChat,
	})
	if err != nil {
		return nil, exportError(err)
	}
	return result, nil
}

func (s *Service) Search(ctx context.Context, ownerID, text string, limit, offset int) search.Response {
	if s.search == nil || strings.TrimSpace(text) == "" {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	return s.search.Search(ctx, search.Query{OwnerID: ownerID, Text: strings.TrimSpace(text), Limit: limit, Offset: offset})
}

func documentSummaryPayload(item store.Document) map[string]any {
	return map[string]any{
		"id":           item.ID,
		"fileName":     item.FileName,
		"fileType":     item.FileType,
		"fileSize":     item.FileSize,
		"summary":      item.Summary,
		"isLegal":      item.IsLegal,
		"authenticity": item.Authenticity,
		"language":     item.Language,
		"isProtected":  item.IsProtected,
		"createdAt":    item.CreatedAt,
		"updatedAt":    item.UpdatedAt,
	}
}

func documentPayload(item store.Document) map[string]any {
	payload := documentSummaryPayload(item)
	payload["pros"] = nonNilList(item.Pros)
	payload["cons"] = nonNilList(item.Cons)
	payload["potentialLoopholes"] = nonNilList(item.PotentialLoopholes)
	payload["potentialChallenges"] = nonNilList(item.PotentialChallenges)
	payload["provider"] = item.Provider
	payload["model"] = item.Model
	payload["pageCount"] = item.PageCount
	return payload
}

func nonNilList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
