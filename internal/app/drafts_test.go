package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"lexdraft/api/internal/diff"
	"lexdraft/api/internal/export"
	"lexdraft/api/internal/llm"
	"lexdraft/api/internal/store"
)

func requireCode(t *testing.T, err error, status int) {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error with status %d, got %v", status, err)
	}
	if domainErr.Status != status {
		t.Fatalf("expected status %d, got %d (%s)", status, domainErr.Status, domainErr.Message)
	}
}

func TestCreateThenUpdateDraftReportsInsert(t *testing.T) {
	env := newTestEnv()
	caller := env.customer()
	ctx := context.Background()

	created, err := env.service.CreateDraft(ctx, caller, CreateDraftInput{SessionID: "s1", DocType: "소장", Content: "Hello"})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if created.Draft.Title != "소장" || created.Draft.Content != "Hello" {
		t.Fatalf("unexpected draft %+v", created.Draft)
	}

	updated, err := env.service.UpdateDraft(ctx, caller, "s1", "Hello world")
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if updated.Draft.Content != "Hello world" {
		t.Fatalf("expected updated content, got %q", updated.Draft.Content)
	}
	want := diff.ChangeSet{{Op: diff.OpInsert, OldText: "", NewText: " world", Start: 5, End: 5}}
	if len(updated.Changes) != 1 || updated.Changes[0] != want[0] {
		t.Fatalf("expected %+v, got %+v", want, updated.Changes)
	}

	history, err := env.revisions.History("s1", 10)
	if err != nil || len(history) != 2 {
		t.Fatalf("expected two recorded revisions, got %v (%v)", history, err)
	}
	if len(env.search.drafts) != 2 || env.search.drafts[1].OwnerID != caller.UserID {
		t.Fatalf("expected draft indexed with owner, got %+v", env.search.drafts)
	}
}

func TestCreateDraftTwiceConflicts(t *testing.T) {
	env := newTestEnv()
	caller := env.customer()
	ctx := context.Background()

	if _, err := env.service.CreateDraft(ctx, caller, CreateDraftInput{SessionID: "s1", DocType: "소장", Content: "a"}); err != nil {
		t.Fatalf("create draft: %v", err)
	}
	_, err := env.service.CreateDraft(ctx, caller, CreateDraftInput{SessionID: "s1", DocType: "답변서", Content: "b"})
	requireCode(t, err, http.StatusConflict)

	draft, _ := env.store.GetDraft(ctx, "s1")
	if draft.Content != "a" || draft.Title != "소장" {
		t.Fatalf("expected first draft untouched, got %+v", draft)
	}
}

func TestUpdateMissingDraftIsNotFound(t *testing.T) {
	env := newTestEnv()
	caller := env.customer()
	ctx := context.Background()

	_, err := env.service.UpdateDraft(ctx, caller, "nope", "text")
	requireCode(t, err, http.StatusNotFound)

	if _, err := env.service.Chat(ctx, caller, ChatInput{SessionID: "s1", Message: "hi"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	_, err = env.service.UpdateDraft(ctx, caller, "s1", "text")
	requireCode(t, err, http.StatusNotFound)
	if len(env.revisions.contents["s1"]) != 0 {
		t.Fatalf("expected no revision for a failed update")
	}
}

func TestGenerateDraftMissingPromptHasNoSideEffects(t *testing.T) {
	env := newTestEnv()
	caller := env.customer()

	_, err := env.service.GenerateDraft(context.Background(), caller, GenerateDraftInput{SessionID: "s1", CaseType: "민사", DocType: "없는문서"})
	requireCode(t, err, http.StatusNotFound)

	if env.llm.calls() != 0 {
		t.Fatalf("expected no generation call")
	}
	if env.store.messageCount("s1") != 0 {
		t.Fatalf("expected no persisted messages")
	}
	if _, ok := env.store.sessions["s1"]; ok {
		t.Fatalf("expected no session created")
	}
}

func TestGenerateDraftNewSessionUsesPromptAsSystem(t *testing.T) {
	env := newTestEnv()
	env.store.addPrompt("민사", "소장", "소장 작성 지침")
	env.llm.replies = []string{"소 장\n\n원고 김민수"}
	caller := env.customer()
	ctx := context.Background()

	result, err := env.service.GenerateDraft(ctx, caller, GenerateDraftInput{SessionID: "s1", CaseType: "민사", DocType: "소장"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Draft.Content != "소 장\n\n원고 김민수" || result.Draft.Title != "소장" {
		t.Fatalf("unexpected draft %+v", result.Draft)
	}
	if len(result.Changes) != 1 || result.Changes[0].Op != diff.OpInsert {
		t.Fatalf("expected a single insert for a new draft, got %+v", result.Changes)
	}

	sent := env.llm.requests[0].Messages
	if len(sent) != 2 || sent[0].Role != llm.RoleSystem || sent[0].Content != "소장 작성 지침" {
		t.Fatalf("expected doc prompt as system entry, got %+v", sent)
	}
	if sent[1].Role != llm.RoleUser || !strings.Contains(sent[1].Content, "소장") {
		t.Fatalf("expected generation request as user turn, got %+v", sent[1])
	}

	history, _ := env.service.LoadHistory(ctx, "s1")
	if len(history) != 3 || history[0].Role != store.RoleSystem || history[2].Role != store.RoleAssistant {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestGenerateDraftExistingHistoryUpdatesDraft(t *testing.T) {
	env := newTestEnv()
	env.store.addPrompt("민사", "소장", "소장 작성 지침")
	env.llm.replies = []string{"질문 있습니다", "The dog sat."}
	caller := env.customer()
	ctx := context.Background()

	if _, err := env.service.Chat(ctx, caller, ChatInput{SessionID: "s1", Message: "hi"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, err := env.service.CreateDraft(ctx, caller, CreateDraftInput{SessionID: "s1", DocType: "소장", Content: "The cat sat."}); err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := env.service.GenerateDraft(ctx, caller, GenerateDraftInput{SessionID: "s1", CaseType: "민사", DocType: "소장"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := diff.Change{Op: diff.OpReplace, OldText: "cat", NewText: "dog", Start: 4, End: 7}
	if len(result.Changes) != 1 || result.Changes[0] != want {
		t.Fatalf("expected %+v, got %+v", want, result.Changes)
	}

	sent := env.llm.requests[1].Messages
	systems := 0
	for _, msg := range sent {
		if msg.Role == llm.RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Fatalf("expected only the persisted system entry, got %d", systems)
	}
	last := sent[len(sent)-1]
	if !strings.HasPrefix(last.Content, "소장 작성 지침") {
		t.Fatalf("expected doc prompt to lead the generation turn, got %q", last.Content)
	}
}

func TestCompareRevisionsAndExport(t *testing.T) {
	env := newTestEnv()
	caller := env.customer()
	ctx := context.Background()

	if _, err := env.service.CreateDraft(ctx, caller, CreateDraftInput{SessionID: "s1", DocType: "소장", Content: "The cat sat."}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.service.UpdateDraft(ctx, caller, "s1", "The dog sat."); err != nil {
		t.Fatalf("update: %v", err)
	}

	compared, err := env.service.CompareRevisions(ctx, caller, "s1", "rev1", "")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	changes, _ := compared["changes"].(diff.ChangeSet)
	if len(changes) != 1 || changes[0].NewText != "dog" {
		t.Fatalf("unexpected changes %+v", compared["changes"])
	}
	if redline, _ := compared["redline"].(string); !strings.Contains(redline, "dog") {
		t.Fatalf("expected redline to mention the insertion, got %q", redline)
	}

	_, err = env.service.CompareRevisions(ctx, caller, "s1", "rev9", "")
	requireCode(t, err, http.StatusNotFound)

	result, err := env.service.ExportDraft(ctx, caller, "s1", export.FormatPDF, "rev1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Filename != "draft.pdf" || env.exporter.last.Redline == "" || env.exporter.last.DocType != "소장" {
		t.Fatalf("unexpected export %+v / %+v", result, env.exporter.last)
	}
}

func TestDraftRevisionsEmptyHistory(t *testing.T) {
	env := newTestEnv()
	caller := env.customer()
	ctx := context.Background()
	if _, err := env.service.Chat(ctx, caller, ChatInput{SessionID: "s1", Message: "hi"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	result, err := env.service.DraftRevisions(ctx, caller, "s1")
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if items, ok := result["revisions"]; !ok || items == nil {
		t.Fatalf("expected empty revision list, got %v", result)
	}
}

func TestUnsafeSessionIDsAreRejectedBeforeAnyWrite(t *testing.T) {
	env := newTestEnv()
	env.store.addPrompt("민사", "소장", "지침")
	caller := env.customer()
	ctx := context.Background()

	for _, id := range []string{"../escape", "세션 하나", "a/b"} {
		_, err := env.service.Chat(ctx, caller, ChatInput{SessionID: id, Message: "hi"})
		requireCode(t, err, http.StatusUnprocessableEntity)
		_, err = env.service.CreateDraft(ctx, caller, CreateDraftInput{SessionID: id, DocType: "소장", Content: "x"})
		requireCode(t, err, http.StatusUnprocessableEntity)
		_, err = env.service.GenerateDraft(ctx, caller, GenerateDraftInput{SessionID: id, CaseType: "민사", DocType: "소장"})
		requireCode(t, err, http.StatusUnprocessableEntity)
		if _, ok := env.store.sessions[id]; ok {
			t.Fatalf("session %q should not be created", id)
		}
	}
	if env.llm.calls() != 0 {
		t.Fatalf("expected no generation calls")
	}
}
