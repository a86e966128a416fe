package app

import (
	"context"
	"net/http"
	"strings"

	"github.com/ragavi-632007/visionx/internal/analysis"
	"github.com/ragavi-632007/visionx/internal/store"
	"github.com/ragavi-632007/visionx/internal/util"
)

const maxChatTitle = 80

func (s *Service) ListChats(ctx context.Context, documentID, ownerID string) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID, ownerID); err != nil {
		return nil, err
	}
	sessions, err := s.store.ListChatSessions(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	chats := make([]map[string]any, 0, len(sessions))
	for _, item := range sessions {
		chats = append(chats, chatPayload(item))
	}
	return map[string]any{"documentId": documentID, "chats": chats}, nil
}

func (s *Service) CreateChat(ctx context.Context, documentID, ownerID, title string) (map[string]any, error) {
	item, err := s.store.GetDocument(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Questions about " + item.FileName
	}
	saved, err := s.store.CreateChatSession(ctx, store.ChatSession{
		ID:         util.NewID("cht"),
		OwnerID:    ownerID,
		DocumentID: item.ID,
		Title:      truncateRunes(title, maxChatTitle),
	})
	if err != nil {
		return nil, err
	}
	return chatPayload(saved), nil
}

func (s *Service) DeleteChat(ctx context.Context, sessionID, ownerID string) error {
	return s.store.DeleteChatSession(ctx, sessionID, ownerID)
}

func (s *Service) ListMessages(ctx context.Context, sessionID, ownerID string) (map[string]any, error) {
	chat, err := s.store.GetChatSession(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListChatMessages(ctx, chat.ID, ownerID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		items = append(items, messagePayload(message))
	}
	return map[string]any{"chat": chatPayload(chat), "messages": items}, nil
}

// AskQuestion answers a question about the chat's document and stores both
// sides of the exchange. The question is stored only once the answer exists,
// so a failed model call leaves the conversation unchanged.
func (s *Service) AskQuestion(ctx context.Context, sessionID, ownerID, question, language string) (map[string]any, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Question is required", nil)
	}
	if s.chat == nil {
		return nil, analysisError(analysis.ErrServiceUnavailable)
	}
	chat, err := s.store.GetChatSession(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	item, err := s.store.GetDocument(ctx, chat.DocumentID, ownerID)
	if err != nil {
		return nil, err
	}
	previous, err := s.store.ListChatMessages(ctx, chat.ID, ownerID)
	if err != nil {
		return nil, err
	}

	turns := make([]analysis.ChatTurn, 0, len(previous))
	for _, message := range previous {
		turns = append(turns, analysis.ChatTurn{Role: message.Role, Content: message.Content})
	}
	if strings.TrimSpace(language) == "" {
		language = item.Language
	}

	answer, err := s.chat.Answer(ctx, analysis.ChatRequest{
		DocumentName: item.FileName,
		DocumentText: item.ContentText,
		Analysis:     resultFromDocument(item),
		History:      turns,
		Question:     question,
		Language:     language,
	})
	if err != nil {
		s.logger.WithError(err).WithField("chat_id", chat.ID).Warn("Answering question failed")
		return nil, analysisError(err)
	}

	asked, err := s.store.InsertChatMessage(ctx, store.ChatMessage{
		ID:        util.NewID("msg"),
		SessionID: chat.ID,
		OwnerID:   ownerID,
		Role:      analysis.RoleUser,
		Content:   question,
	})
	if err != nil {
		return nil, err
	}
	answered, err := s.store.InsertChatMessage(ctx, store.ChatMessage{
		ID:        util.NewID("msg"),
		SessionID: chat.ID,
		OwnerID:   ownerID,
		Role:      analysis.RoleAssistant,
		Content:   answer,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"question": messagePayload(asked),
		"answer":   messagePayload(answered),
	}, nil
}

func chatPayload(item store.ChatSession) map[string]any {
	return map[string]any{
		"id":         item.ID,
		"documentId": item.DocumentID,
		"title":      item.Title,
		"createdAt":  item.CreatedAt,
		"updatedAt":  item.UpdatedAt,
	}
}

func messagePayload(item store.ChatMessage) map[string]any {
	return map[string]any{
		"id":        item.ID,
		"role":      item.Role,
		"content":   item.Content,
		"createdAt": item.CreatedAt,
	}
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
