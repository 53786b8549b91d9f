package store

import (
	"context"
	"fmt"
)

const docPromptColumns = `id, case_type, doc_type, prompt_text, created_at, updated_at`

func scanDocPrompt(row interface{ Scan(...any) error }) (DocPrompt, error) {
	var prompt DocPrompt
	if err := row.Scan(&prompt.ID, &prompt.CaseType, &prompt.DocType, &prompt.PromptText, &prompt.CreatedAt, &prompt.UpdatedAt); err != nil {
		return DocPrompt{}, err
	}
	return prompt, nil
}

func (s *PostgresStore) GetDocPrompt(ctx context.Context, caseType, docType string) (DocPrompt, error) {
	prompt, err := scanDocPrompt(s.db.QueryRowContext(ctx, `
		SELECT `+docPromptColumns+`
		FROM doc_prompts
		WHERE case_type = $1 AND doc_type = $2
	`, caseType, docType))
	if err != nil {
		return DocPrompt{}, fmt.Errorf("get doc prompt %s/%s: %w", caseType, docType, classify(err))
	}
	return prompt, nil
}

func (s *PostgresStore) GetDocPromptByID(ctx context.Context, promptID string) (DocPrompt, error) {
	prompt, err := scanDocPrompt(s.db.QueryRowContext(ctx, `SELECT `+docPromptColumns+` FROM doc_prompts WHERE id = $1`, promptID))
	if err != nil {
		return DocPrompt{}, fmt.Errorf("get doc prompt %s: %w", promptID, classify(err))
	}
	return prompt, nil
}

func (s *PostgresStore) ListDocPrompts(ctx context.Context, offset, limit int) ([]DocPrompt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+docPromptColumns+`
		FROM doc_prompts
		ORDER BY case_type, doc_type
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list doc prompts: %w", err)
	}
	defer rows.Close()

	items := make([]DocPrompt, 0)
	for rows.Next() {
		prompt, err := scanDocPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan doc prompt: %w", err)
		}
		items = append(items, prompt)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CreateDocPrompt(ctx context.Context, caseType, docType, promptText string) (DocPrompt, error) {
	prompt, err := scanDocPrompt(s.db.QueryRowContext(ctx, `
		INSERT INTO doc_prompts (case_type, doc_type, prompt_text)
		VALUES ($1, $2, $3)
		RETURNING `+docPromptColumns,
		caseType, docType, promptText,
	))
	if err != nil {
		return DocPrompt{}, fmt.Errorf("insert doc prompt: %w", classify(err))
	}
	return prompt, nil
}

func (s *PostgresStore) UpdateDocPrompt(ctx context.Context, promptID string, update DocPromptUpdate) (DocPrompt, error) {
	prompt, err := scanDocPrompt(s.db.QueryRowContext(ctx, `
		UPDATE doc_prompts
		SET case_type = COALESCE($2, case_type),
			doc_type = COALESCE($3, doc_type),
			prompt_text = COALESCE($4, prompt_text),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+docPromptColumns,
		promptID, update.CaseType, update.DocType, update.PromptText,
	))
	if err != nil {
		return DocPrompt{}, fmt.Errorf("update doc prompt %s: %w", promptID, classify(err))
	}
	return prompt, nil
}

func (s *PostgresStore) DeleteDocPrompt(ctx context.Context, promptID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM doc_prompts WHERE id = $1`, promptID)
	if err != nil {
		return fmt.Errorf("delete doc prompt %s: %w", promptID, err)
	}
	return requireAffected(result, "delete doc prompt "+promptID)
}
