package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// EnsureChatSession creates the session row on first use. userID may be empty for anonymous sessions.
func (s *PostgresStore) EnsureChatSession(ctx context.Context, sessionID, userID string) error {
	var owner any
	if userID != "" {
		owner = userID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, sessionID, owner)
	if err != nil {
		return fmt.Errorf("ensure chat session %s: %w", sessionID, err)
	}
	return nil
}

func (s *PostgresStore) GetChatSession(ctx context.Context, sessionID string) (ChatSession, error) {
	var session ChatSession
	var contextData []byte
	var userID *string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, context_data, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1
	`, sessionID).Scan(&session.ID, &userID, &contextData, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return ChatSession{}, fmt.Errorf("get chat session %s: %w", sessionID, classify(err))
	}
	session.UserID = userID
	session.ContextData = json.RawMessage(contextData)
	return session, nil
}

// AppendChatMessage inserts one message. created_at comes from clock_timestamp() so that
// messages appended within one transaction still order by insertion.
func (s *PostgresStore) AppendChatMessage(ctx context.Context, sessionID, role, content string) (ChatMessage, error) {
	msg := ChatMessage{SessionID: sessionID, Role: role, Content: content}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (session_id, role, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, sessionID, role, content).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("append chat message: %w", classify(err))
	}
	return msg, nil
}

func (s *PostgresStore) ListChatMessages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	items := make([]ChatMessage, 0)
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		items = append(items, msg)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateSessionContext(ctx context.Context, sessionID string, contextData json.RawMessage) (ChatSession, error) {
	if len(contextData) == 0 {
		contextData = json.RawMessage(`{}`)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions
		SET context_data = $2::jsonb,
			updated_at = NOW()
		WHERE id = $1
	`, sessionID, string(contextData))
	if err != nil {
		return ChatSession{}, fmt.Errorf("update session context %s: %w", sessionID, err)
	}
	if err := requireAffected(result, "update session context "+sessionID); err != nil {
		return ChatSession{}, err
	}
	return s.GetChatSession(ctx, sessionID)
}
