package export

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/ragavi-632007/visionx/internal/analysis"
	"github.com/ragavi-632007/visionx/internal/store"
)

// DataStore is the slice of the persistence gateway the report needs.
type DataStore interface {
	GetDocument(ctx context.Context, documentID, ownerID string) (store.Document, error)
	ListChatSessions(ctx context.Context, documentID, ownerID string) ([]store.ChatSession, error)
	ListChatMessages(ctx context.Context, sessionID, ownerID string) ([]store.ChatMessage, error)
}

// Converter turns report HTML into a binary format.
type Converter func(ctx context.Context, html string) ([]byte, error)

type Service struct {
	store      DataStore
	converters map[Format]Converter
	now        func() time.Time
}

func NewService(store DataStore) *Service {
	return &Service{
		store: store,
		converters: map[Format]Converter{
			FormatPDF:  htmlToPDF,
			FormatDOCX: htmlToDOCX,
		},
		now: time.Now,
	}
}

// WithConverter overrides the converter for one format.
func (s *Service) WithConverter(format Format, convert Converter) *Service {
	s.converters[format] = convert
	return s
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	convert, ok := s.converters[req.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	doc, err := s.store.GetDocument(ctx, req.DocumentID, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	data := TemplateData{
		FileName:            doc.FileName,
		Language:            analysis.LanguageName(doc.Language),
		Summary:             doc.Summary,
		Pros:                doc.Pros,
		Cons:                doc.Cons,
		PotentialLoopholes:  doc.PotentialLoopholes,
		PotentialChallenges: doc.PotentialChallenges,
		IsLegal:             doc.IsLegal,
		Authenticity:        doc.Authenticity,
		Protected:           doc.IsProtected,
		AnalyzedAt:          doc.UpdatedAt,
		GeneratedAt:         s.now(),
		Model:               doc.Model,
	}

	if req.IncludeChat {
		chats, err := s.loadChats(ctx, doc)
		if err != nil {
			return nil, err
		}
		data.Chats = chats
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	output, err := convert(ctx, html)
	if err != nil {
		return nil, err
	}
	result := &Result{Data: output, Filename: sanitizeFilename(doc.FileName) + "-analysis"}
	switch req.Format {
	case FormatDOCX:
		result.Filename += ".docx"
		result.MimeType = mimeDOCX
	default:
		result.Filename += ".pdf"
		result.MimeType = mimePDF
	}
	return result, nil
}

func (s *Service) loadChats(ctx context.Context, doc store.Document) ([]TemplateChat, error) {
	sessions, err := s.store.ListChatSessions(ctx, doc.ID, doc.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	chats := make([]TemplateChat, 0, len(sessions))
	for _, session := range sessions {
		messages, err := s.store.ListChatMessages(ctx, session.ID, doc.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("list chat messages: %w", err)
		}
		if len(messages) == 0 {
			continue
		}
		chat := TemplateChat{Title: session.Title, Messages: make([]TemplateMessage, 0, len(messages))}
		for _, message := range messages {
			chat.Messages = append(chat.Messages, TemplateMessage{
				Role:     message.Role,
				BodyHTML: template.HTML(markdownToHTML(message.Content)),
				At:       message.CreatedAt,
			})
		}
		chats = append(chats, chat)
	}
	return chats, nil
}
