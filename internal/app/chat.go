package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"lexdraft/api/internal/llm"
	"lexdraft/api/internal/revisions"
	"lexdraft/api/internal/store"
	"lexdraft/api/internal/util"
)

// assistantInstruction opens every new chat session.
const assistantInstruction = `당신은 비법조인의 법률 전문가입니다. 아래 사항을 준수하세요.
1. 사용자가 초안 작성에 도움이 되도록 1가지 대답만 할 수 있는 질문을 하세요.
2. 사용자가 법률 문서 작성 외의 질문을 하면 관련 질문을 하도록 유도해주세요.
3. 사용자가 요청한 문서 작성에 필요한 정보를 모두 받았다면 초안 작성 버튼을 누르도록 유도해주세요.
4. 당신은 절대로 초안 작성 또는 예시 작성을 하지마세요.`

type ChatInput struct {
	SessionID string `json:"sessionId" validate:"omitempty,sessionid"`
	Message   string `json:"message" validate:"required"`
}

type ChatReply struct {
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
}

// assemblePrompt builds the outbound message list. systemPrompt is only used when
// history is empty; persisted history is replayed as stored.
func assemblePrompt(history []store.ChatMessage, systemPrompt string, userTurn llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	if len(history) == 0 && systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return append(messages, userTurn)
}

func (s *Service) AppendMessage(ctx context.Context, sessionID, role, content string) (store.ChatMessage, error) {
	msg, err := s.store.AppendChatMessage(ctx, sessionID, role, content)
	if err != nil {
		return store.ChatMessage{}, persistenceError("append message", err)
	}
	return msg, nil
}

// LoadHistory returns the session's messages in append order. An unknown session has none.
func (s *Service) LoadHistory(ctx context.Context, sessionID string) ([]store.ChatMessage, error) {
	history, err := s.store.ListChatMessages(ctx, sessionID)
	if err != nil {
		return nil, persistenceError("load history", err)
	}
	return history, nil
}

func (s *Service) ChatHistory(ctx context.Context, caller Session, sessionID string) (map[string]any, error) {
	if _, err := s.authorizeChatSession(ctx, caller, sessionID); err != nil {
		return nil, err
	}
	history, err := s.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(history))
	for _, msg := range history {
		items = append(items, map[string]any{
			"id":        msg.ID,
			"role":      msg.Role,
			"content":   msg.Content,
			"createdAt": formatTime(msg.CreatedAt),
		})
	}
	return map[string]any{"sessionId": sessionID, "messages": items}, nil
}

// Chat runs one conversational turn. The user message is stored before the model is
// called, so a failed call still leaves the turn in history.
func (s *Service) Chat(ctx context.Context, caller Session, input ChatInput) (ChatReply, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return ChatReply{}, validation("message is required", nil)
	}
	sessionID, err := resolveSessionID(input.SessionID)
	if err != nil {
		return ChatReply{}, err
	}

	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return ChatReply{}, err
	}
	defer unlock()

	if _, err := s.ensureChatSession(ctx, caller, sessionID); err != nil {
		return ChatReply{}, err
	}

	history, err := s.LoadHistory(ctx, sessionID)
	if err != nil {
		return ChatReply{}, err
	}
	userTurn := llm.Message{Role: llm.RoleUser, Content: message}
	outbound := assemblePrompt(history, assistantInstruction, userTurn)

	if len(history) == 0 {
		if _, err := s.AppendMessage(ctx, sessionID, store.RoleSystem, assistantInstruction); err != nil {
			return ChatReply{}, err
		}
	}
	if _, err := s.AppendMessage(ctx, sessionID, store.RoleUser, message); err != nil {
		return ChatReply{}, err
	}

	reply, err := s.generate(ctx, outbound, s.cfg.LLM.MaxTokens)
	if err != nil {
		return ChatReply{}, err
	}
	if _, err := s.AppendMessage(ctx, sessionID, store.RoleAssistant, reply); err != nil {
		return ChatReply{}, err
	}
	return ChatReply{SessionID: sessionID, Reply: reply}, nil
}

// UpdateSessionContext replaces the structured context stored alongside a session.
func (s *Service) UpdateSessionContext(ctx context.Context, caller Session, sessionID string, data map[string]any) (map[string]any, error) {
	if _, err := s.authorizeChatSession(ctx, caller, sessionID); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, validation("context must be a JSON object", nil)
	}
	updated, err := s.store.UpdateSessionContext(ctx, sessionID, raw)
	if err != nil {
		return nil, storeError("update session context", err, "Session")
	}
	return map[string]any{
		"sessionId":   updated.ID,
		"contextData": updated.ContextData,
		"updatedAt":   formatTime(updated.UpdatedAt),
	}, nil
}

// authorizeChatSession loads sessionID and lets the owner and admins through. Ownerless
// sessions are open to any signed-in caller.
func (s *Service) authorizeChatSession(ctx context.Context, caller Session, sessionID string) (store.ChatSession, error) {
	chat, err := s.store.GetChatSession(ctx, sessionID)
	if err != nil {
		return store.ChatSession{}, storeError("load session", err, "Session")
	}
	if chat.UserID == nil || *chat.UserID == caller.UserID || caller.Role == store.UserTypeAdmin {
		return chat, nil
	}
	return store.ChatSession{}, forbidden("Session belongs to another user")
}

// ensureChatSession creates sessionID for caller on first use, then authorizes it.
func (s *Service) ensureChatSession(ctx context.Context, caller Session, sessionID string) (store.ChatSession, error) {
	if err := s.store.EnsureChatSession(ctx, sessionID, caller.UserID); err != nil {
		return store.ChatSession{}, persistenceError("ensure session", err)
	}
	return s.authorizeChatSession(ctx, caller, sessionID)
}

func (s *Service) lockSession(ctx context.Context, sessionID string) (func(), error) {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		zap.S().Warnw("session lock failed", "session_id", sessionID, "error", err)
		return nil, domainError(http.StatusServiceUnavailable, "SESSION_BUSY", "Session is busy, retry shortly", nil)
	}
	return unlock, nil
}

// generate calls the model with the configured sampling settings.
func (s *Service) generate(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	if s.llm == nil {
		return "", upstreamFailure("Text generation is not configured", nil)
	}
	reply, err := s.llm.Generate(ctx, llm.Request{
		Model:       s.cfg.LLM.Model,
		Messages:    messages,
		Temperature: s.cfg.LLM.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		zap.S().Warnw("text generation failed", "error", err)
		return "", upstreamFailure("Text generation failed", err)
	}
	return strings.TrimSpace(reply), nil
}

// resolveSessionID trims raw and mints a new id when it is blank.
func resolveSessionID(raw string) (string, error) {
	sessionID := strings.TrimSpace(raw)
	if sessionID == "" {
		return util.NewSessionID(), nil
	}
	if !revisions.ValidSessionID(sessionID) {
		return "", invalidSessionID()
	}
	return sessionID, nil
}

func invalidSessionID() *DomainError {
	return validation("sessionId may only use letters, digits, '.', '_' and '-' (max 50)", map[string]any{"sessionId": "sessionid"})
}
