package store

import (
	"context"
	"fmt"
)

const draftColumns = `id, session_id, title, content, updated_at`

func scanDraft(row interface{ Scan(...any) error }) (Draft, error) {
	var draft Draft
	if err := row.Scan(&draft.ID, &draft.SessionID, &draft.Title, &draft.Content, &draft.UpdatedAt); err != nil {
		return Draft{}, err
	}
	return draft, nil
}

// CreateDraft inserts the session's draft. The drafts table allows one row per session,
// so a second insert reports ErrDuplicate.
func (s *PostgresStore) CreateDraft(ctx context.Context, sessionID, title, content string) (Draft, error) {
	draft, err := scanDraft(s.db.QueryRowContext(ctx, `
		INSERT INTO drafts (session_id, title, content, updated_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING `+draftColumns,
		sessionID, title, content,
	))
	if err != nil {
		return Draft{}, fmt.Errorf("insert draft for session %s: %w", sessionID, classify(err))
	}
	return draft, nil
}

func (s *PostgresStore) GetDraft(ctx context.Context, sessionID string) (Draft, error) {
	draft, err := scanDraft(s.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE session_id = $1`, sessionID))
	if err != nil {
		return Draft{}, fmt.Errorf("get draft for session %s: %w", sessionID, classify(err))
	}
	return draft, nil
}

func (s *PostgresStore) UpdateDraftContent(ctx context.Context, sessionID, content string) (Draft, error) {
	draft, err := scanDraft(s.db.QueryRowContext(ctx, `
		UPDATE drafts
		SET content = $2,
			updated_at = NOW()
		WHERE session_id = $1
		RETURNING `+draftColumns,
		sessionID, content,
	))
	if err != nil {
		return Draft{}, fmt.Errorf("update draft for session %s: %w", sessionID, classify(err))
	}
	return draft, nil
}
