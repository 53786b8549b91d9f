package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"lexdraft/api/internal/diff"
	"lexdraft/api/internal/export"
	"lexdraft/api/internal/llm"
	"lexdraft/api/internal/revisions"
	"lexdraft/api/internal/search"
	"lexdraft/api/internal/store"
)

const revisionHistoryLimit = 50

type CreateDraftInput struct {
	SessionID string `json:"sessionId" validate:"required,sessionid"`
	DocType   string `json:"docType" validate:"required"`
	Content   string `json:"content"`
}

type GenerateDraftInput struct {
	SessionID string `json:"sessionId" validate:"omitempty,sessionid"`
	CaseType  string `json:"caseType" validate:"required"`
	DocType   string `json:"docType" validate:"required"`
}

type DraftResult struct {
	Draft   store.Draft
	Changes diff.ChangeSet
}

// generationRequest is the user turn that asks for the draft itself.
func generationRequest(docType string) string {
	return fmt.Sprintf("지금까지의 대화 내용을 바탕으로 %s 초안을 작성해 주세요.", docType)
}

func (s *Service) CreateDraft(ctx context.Context, caller Session, input CreateDraftInput) (DraftResult, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	docType := strings.TrimSpace(input.DocType)
	if sessionID == "" || docType == "" {
		return DraftResult{}, validation("sessionId and docType are required", nil)
	}
	if !revisions.ValidSessionID(sessionID) {
		return DraftResult{}, invalidSessionID()
	}

	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return DraftResult{}, err
	}
	defer unlock()

	chat, err := s.ensureChatSession(ctx, caller, sessionID)
	if err != nil {
		return DraftResult{}, err
	}
	if _, err := s.store.GetDraft(ctx, sessionID); err == nil {
		return DraftResult{}, conflict("Session already has a draft")
	} else if !errors.Is(err, store.ErrNotFound) {
		return DraftResult{}, persistenceError("load draft", err)
	}

	draft, err := s.store.CreateDraft(ctx, sessionID, docType, input.Content)
	if err != nil {
		return DraftResult{}, storeError("create draft", err, "Draft")
	}
	s.afterDraftWrite(chat, draft, caller.UserName, "Create draft")
	return DraftResult{Draft: draft, Changes: diff.Compute("", draft.Content)}, nil
}

// UpdateDraft overwrites the session's draft and reports what changed.
func (s *Service) UpdateDraft(ctx context.Context, caller Session, sessionID, content string) (DraftResult, error) {
	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return DraftResult{}, err
	}
	defer unlock()

	chat, err := s.authorizeChatSession(ctx, caller, sessionID)
	if err != nil {
		var domainErr *DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "NOT_FOUND" {
			return DraftResult{}, notFound("Draft not found")
		}
		return DraftResult{}, err
	}
	current, err := s.store.GetDraft(ctx, sessionID)
	if err != nil {
		return DraftResult{}, storeError("load draft", err, "Draft")
	}
	updated, err := s.store.UpdateDraftContent(ctx, sessionID, content)
	if err != nil {
		return DraftResult{}, storeError("update draft", err, "Draft")
	}
	s.afterDraftWrite(chat, updated, caller.UserName, "Update draft")
	return DraftResult{Draft: updated, Changes: diff.Compute(current.Content, updated.Content)}, nil
}

// GenerateDraft asks the model for a draft using the DocPrompt for (caseType, docType).
// A missing prompt fails before anything is written or sent.
func (s *Service) GenerateDraft(ctx context.Context, caller Session, input GenerateDraftInput) (DraftResult, error) {
	sessionID, err := resolveSessionID(input.SessionID)
	if err != nil {
		return DraftResult{}, err
	}
	caseType := strings.TrimSpace(input.CaseType)
	docType := strings.TrimSpace(input.DocType)
	prompt, err := s.store.GetDocPrompt(ctx, caseType, docType)
	if err != nil {
		return DraftResult{}, storeError("load doc prompt", err, "Document prompt")
	}

	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return DraftResult{}, err
	}
	defer unlock()

	chat, err := s.ensureChatSession(ctx, caller, sessionID)
	if err != nil {
		return DraftResult{}, err
	}
	history, err := s.LoadHistory(ctx, sessionID)
	if err != nil {
		return DraftResult{}, err
	}

	request := generationRequest(docType)
	if len(history) > 0 {
		request = prompt.PromptText + "\n\n" + request
	}
	outbound := assemblePrompt(history, prompt.PromptText, llm.Message{Role: llm.RoleUser, Content: request})

	if len(history) == 0 {
		if _, err := s.AppendMessage(ctx, sessionID, store.RoleSystem, prompt.PromptText); err != nil {
			return DraftResult{}, err
		}
	}
	if _, err := s.AppendMessage(ctx, sessionID, store.RoleUser, request); err != nil {
		return DraftResult{}, err
	}
	reply, err := s.generate(ctx, outbound, s.cfg.LLM.MaxTokens)
	if err != nil {
		return DraftResult{}, err
	}
	if _, err := s.AppendMessage(ctx, sessionID, store.RoleAssistant, reply); err != nil {
		return DraftResult{}, err
	}

	previous := ""
	draft, err := s.store.GetDraft(ctx, sessionID)
	switch {
	case err == nil:
		previous = draft.Content
		draft, err = s.store.UpdateDraftContent(ctx, sessionID, reply)
		if err != nil {
			return DraftResult{}, storeError("update draft", err, "Draft")
		}
	case errors.Is(err, store.ErrNotFound):
		draft, err = s.store.CreateDraft(ctx, sessionID, docType, reply)
		if err != nil {
			return DraftResult{}, storeError("create draft", err, "Draft")
		}
	default:
		return DraftResult{}, persistenceError("load draft", err)
	}
	s.afterDraftWrite(chat, draft, caller.UserName, "Generate "+docType)
	return DraftResult{Draft: draft, Changes: diff.Compute(previous, draft.Content)}, nil
}

func (s *Service) GetDraft(ctx context.Context, caller Session, sessionID string) (store.Draft, error) {
	if _, err := s.authorizeChatSession(ctx, caller, sessionID); err != nil {
		return store.Draft{}, err
	}
	draft, err := s.store.GetDraft(ctx, sessionID)
	if err != nil {
		return store.Draft{}, storeError("load draft", err, "Draft")
	}
	return draft, nil
}

func (s *Service) DraftRevisions(ctx context.Context, caller Session, sessionID string) (map[string]any, error) {
	if _, err := s.authorizeChatSession(ctx, caller, sessionID); err != nil {
		return nil, err
	}
	if s.revisions == nil {
		return map[string]any{"sessionId": sessionID, "revisions": []revisions.Revision{}}, nil
	}
	items, err := s.revisions.History(sessionID, revisionHistoryLimit)
	if err != nil {
		if errors.Is(err, revisions.ErrNoHistory) {
			items = []revisions.Revision{}
		} else {
			return nil, persistenceError("load revisions", err)
		}
	}
	return map[string]any{"sessionId": sessionID, "revisions": items}, nil
}

// CompareRevisions diffs the draft between two revisions. An empty to means the current draft.
func (s *Service) CompareRevisions(ctx context.Context, caller Session, sessionID, from, to string) (map[string]any, error) {
	if strings.TrimSpace(from) == "" {
		return nil, validation("from is required", nil)
	}
	draft, err := s.GetDraft(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}
	oldText, err := s.revisionContent(sessionID, from)
	if err != nil {
		return nil, err
	}
	newText := draft.Content
	if strings.TrimSpace(to) != "" {
		newText, err = s.revisionContent(sessionID, to)
		if err != nil {
			return nil, err
		}
	}
	changes := diff.Compute(oldText, newText)
	if changes == nil {
		changes = diff.ChangeSet{}
	}
	removed, added := changes.Stats()
	return map[string]any{
		"sessionId": sessionID,
		"from":      from,
		"to":        to,
		"changes":   changes,
		"redline":   diff.Redline(oldText, newText),
		"removed":   removed,
		"added":     added,
	}, nil
}

// ExportDraft renders the current draft. A non-empty since adds a redline against that revision.
func (s *Service) ExportDraft(ctx context.Context, caller Session, sessionID string, format export.Format, since string) (*export.Result, error) {
	chat, err := s.authorizeChatSession(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}
	draft, err := s.store.GetDraft(ctx, sessionID)
	if err != nil {
		return nil, storeError("load draft", err, "Draft")
	}
	doc := export.Document{
		Title:     draft.Title,
		CaseType:  contextString(chat.ContextData, "caseType"),
		DocType:   draft.Title,
		Content:   draft.Content,
		UpdatedAt: draft.UpdatedAt,
	}
	if strings.TrimSpace(since) != "" {
		base, err := s.revisionContent(sessionID, since)
		if err != nil {
			return nil, err
		}
		doc.Redline = diff.Redline(base, draft.Content)
	}

	result, err := s.exporter.Export(ctx, doc, format)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export runtime is not installed", map[string]any{"format": format})
		default:
			return nil, fmt.Errorf("export draft %s: %w", sessionID, err)
		}
	}
	return result, nil
}

func (s *Service) revisionContent(sessionID, hash string) (string, error) {
	if s.revisions == nil {
		return "", notFound("Revision not found")
	}
	content, err := s.revisions.ContentAt(sessionID, hash)
	if err != nil {
		if errors.Is(err, revisions.ErrNoHistory) || errors.Is(err, revisions.ErrUnknownRevision) {
			return "", notFound("Revision not found")
		}
		return "", persistenceError("load revision", err)
	}
	return content, nil
}

// afterDraftWrite records the revision and refreshes the search index. Both are secondary
// to the database write, so failures are logged and not returned.
func (s *Service) afterDraftWrite(chat store.ChatSession, draft store.Draft, author, message string) {
	if s.revisions != nil {
		if _, err := s.revisions.Record(draft.SessionID, draft.Content, author, message); err != nil {
			zap.S().Warnw("record draft revision failed", "session_id", draft.SessionID, "error", err)
		}
	}
	if s.search != nil {
		s.search.IndexDraft(search.DraftRecord{
			ID:      draft.SessionID,
			Title:   draft.Title,
			Content: draft.Content,
			OwnerID: derefString(chat.UserID),
		})
	}
}

func draftPayload(result DraftResult) map[string]any {
	removed, added := result.Changes.Stats()
	changes := result.Changes
	if changes == nil {
		changes = diff.ChangeSet{}
	}
	return map[string]any{
		"draft":   draftView(result.Draft),
		"changes": changes,
		"removed": removed,
		"added":   added,
	}
}

func draftView(draft store.Draft) map[string]any {
	return map[string]any{
		"id":        draft.ID,
		"sessionId": draft.SessionID,
		"title":     draft.Title,
		"content":   draft.Content,
		"updatedAt": formatTime(draft.UpdatedAt),
	}
}

func contextString(raw json.RawMessage, key string) string {
	if len(raw) == 0 {
		return ""
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}
	value, _ := data[key].(string)
	return value
}
