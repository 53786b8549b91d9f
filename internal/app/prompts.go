package app

import (
	"context"
	"strings"

	"lexdraft/api/internal/rbac"
	"lexdraft/api/internal/search"
	"lexdraft/api/internal/store"
)

type DocPromptInput struct {
	CaseType   string `json:"caseType" validate:"required,max=100"`
	DocType    string `json:"docType" validate:"required,max=100"`
	PromptText string `json:"promptText" validate:"required"`
}

type DocPromptPatch struct {
	CaseType   *string `json:"caseType" validate:"omitempty,min=1,max=100"`
	DocType    *string `json:"docType" validate:"omitempty,min=1,max=100"`
	PromptText *string `json:"promptText" validate:"omitempty,min=1"`
}

func (s *Service) ListDocPrompts(ctx context.Context, offset, limit int) (map[string]any, error) {
	offset, limit = pageBounds(offset, limit)
	items, err := s.store.ListDocPrompts(ctx, offset, limit)
	if err != nil {
		return nil, persistenceError("list doc prompts", err)
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, docPromptView(item))
	}
	return map[string]any{"prompts": views, "offset": offset, "limit": limit}, nil
}

func (s *Service) CreateDocPrompt(ctx context.Context, caller Session, input DocPromptInput) (map[string]any, error) {
	if !s.Can(caller.Role, rbac.ActionManagePrompts) {
		return nil, forbidden("Admin only")
	}
	caseType := strings.TrimSpace(input.CaseType)
	docType := strings.TrimSpace(input.DocType)
	text := strings.TrimSpace(input.PromptText)
	if caseType == "" || docType == "" || text == "" {
		return nil, validation("caseType, docType and promptText are required", nil)
	}
	created, err := s.store.CreateDocPrompt(ctx, caseType, docType, text)
	if err != nil {
		return nil, storeError("create doc prompt", err, "Document prompt")
	}
	s.indexPrompt(created)
	return docPromptView(created), nil
}

func (s *Service) UpdateDocPrompt(ctx context.Context, caller Session, promptID string, input DocPromptPatch) (map[string]any, error) {
	if !s.Can(caller.Role, rbac.ActionManagePrompts) {
		return nil, forbidden("Admin only")
	}
	update := store.DocPromptUpdate{
		CaseType:   trimmedPtr(input.CaseType),
		DocType:    trimmedPtr(input.DocType),
		PromptText: trimmedPtr(input.PromptText),
	}
	if update.Empty() {
		current, err := s.store.GetDocPromptByID(ctx, promptID)
		if err != nil {
			return nil, storeError("load doc prompt", err, "Document prompt")
		}
		return docPromptView(current), nil
	}
	updated, err := s.store.UpdateDocPrompt(ctx, promptID, update)
	if err != nil {
		return nil, storeError("update doc prompt", err, "Document prompt")
	}
	s.indexPrompt(updated)
	return docPromptView(updated), nil
}

func (s *Service) DeleteDocPrompt(ctx context.Context, caller Session, promptID string) error {
	if !s.Can(caller.Role, rbac.ActionManagePrompts) {
		return forbidden("Admin only")
	}
	if err := s.store.DeleteDocPrompt(ctx, promptID); err != nil {
		return storeError("delete doc prompt", err, "Document prompt")
	}
	if s.search != nil {
		s.search.DeletePrompt(promptID)
	}
	return nil
}

func (s *Service) indexPrompt(prompt store.DocPrompt) {
	if s.search == nil {
		return
	}
	s.search.IndexPrompt(search.PromptRecord{
		ID:         prompt.ID,
		CaseType:   prompt.CaseType,
		DocType:    prompt.DocType,
		PromptText: prompt.PromptText,
	})
}

// Search looks through prompts and, for non-admins, only the caller's own drafts.
func (s *Service) Search(ctx context.Context, caller Session, text, filterType string, offset, limit int) (search.Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	offset, limit = pageBounds(offset, limit)
	query := search.Query{
		Text:   text,
		Limit:  limit,
		Offset: offset,
	}
	switch search.ResultType(filterType) {
	case search.ResultDraft, search.ResultPrompt:
		query.FilterType = search.ResultType(filterType)
	case "":
	default:
		return search.Response{}, validation("type must be draft or prompt", nil)
	}
	if caller.Role != store.UserTypeAdmin {
		query.OwnerID = caller.UserID
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, query), nil
}

func docPromptView(item store.DocPrompt) map[string]any {
	return map[string]any{
		"id":         item.ID,
		"caseType":   item.CaseType,
		"docType":    item.DocType,
		"promptText": item.PromptText,
		"createdAt":  formatTime(item.CreatedAt),
		"updatedAt":  formatTime(item.UpdatedAt),
	}
}
