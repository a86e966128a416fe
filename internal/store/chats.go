package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) CreateChatSession(ctx context.Context, session ChatSession) (ChatSession, error) {
	var saved ChatSession
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO chat_sessions (id, owner_id, document_id, title)
		SELECT $1, $2, d.id, $4
		FROM documents d
		WHERE d.id=$3 AND d.owner_id=$2
		RETURNING id, owner_id, document_id, title, created_at, updated_at
	`, session.ID, session.OwnerID, session.DocumentID, session.Title).Scan(
		&saved.ID, &saved.OwnerID, &saved.DocumentID, &saved.Title, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return ChatSession{}, err
	}
	return saved, nil
}

func (s *PostgresStore) GetChatSession(ctx context.Context, sessionID, ownerID string) (ChatSession, error) {
	var session ChatSession
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, document_id, title, created_at, updated_at
		FROM chat_sessions WHERE id=$1 AND owner_id=$2
	`, sessionID, ownerID).Scan(&session.ID, &session.OwnerID, &session.DocumentID, &session.Title, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return ChatSession{}, err
	}
	return session, nil
}

func (s *PostgresStore) ListChatSessions(ctx context.Context, documentID, ownerID string) ([]ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, document_id, title, created_at, updated_at
		FROM chat_sessions
		WHERE document_id=$1 AND owner_id=$2
		ORDER BY updated_at DESC
	`, documentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	defer rows.Close()

	items := make([]ChatSession, 0)
	for rows.Next() {
		var item ChatSession
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.DocumentID, &item.Title, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat session: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat sessions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteChatSession(ctx context.Context, sessionID, ownerID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id=$1 AND owner_id=$2`, sessionID, ownerID)
	if err != nil {
		return fmt.Errorf("delete chat session: %w", err)
	}
	return expectRow(result)
}

// InsertChatMessage appends to a session owned by message.OwnerID and bumps
// the session's updated_at.
func (s *PostgresStore) InsertChatMessage(ctx context.Context, message ChatMessage) (ChatMessage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("begin chat message tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET updated_at=NOW() WHERE id=$1 AND owner_id=$2`, message.SessionID, message.OwnerID)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("touch chat session: %w", err)
	}
	if err := expectRow(result); err != nil {
		return ChatMessage{}, err
	}

	var saved ChatMessage
	err = tx.QueryRowContext(ctx, `
		INSERT INTO chat_messages (id, session_id, owner_id, role, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, session_id, owner_id, role, content, created_at
	`, message.ID, message.SessionID, message.OwnerID, message.Role, message.Content).Scan(
		&saved.ID, &saved.SessionID, &saved.OwnerID, &saved.Role, &saved.Content, &saved.CreatedAt)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ChatMessage{}, fmt.Errorf("commit chat message: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) ListChatMessages(ctx context.Context, sessionID, ownerID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, owner_id, role, content, created_at
		FROM chat_messages
		WHERE session_id=$1 AND owner_id=$2
		ORDER BY created_at ASC, id ASC
	`, sessionID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	items := make([]ChatMessage, 0)
	for rows.Next() {
		var item ChatMessage
		if err := rows.Scan(&item.ID, &item.SessionID, &item.OwnerID, &item.Role, &item.Content, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return items, nil
}
