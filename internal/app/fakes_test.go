package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"lexdraft/api/internal/config"
	"lexdraft/api/internal/export"
	"lexdraft/api/internal/identity"
	"lexdraft/api/internal/llm"
	"lexdraft/api/internal/revisions"
	"lexdraft/api/internal/search"
	"lexdraft/api/internal/session"
	"lexdraft/api/internal/store"
)

// fakeStore keeps rows in memory. The Fn fields override individual methods.
type fakeStore struct {
	mu sync.Mutex

	users         map[string]store.User
	cases         map[string]store.Case
	sessions      map[string]store.ChatSession
	messages      map[string][]store.ChatMessage
	drafts        map[string]store.Draft
	prompts       map[string]store.DocPrompt
	oauth         map[string]store.OAuthAccount
	verifications map[string]store.AttorneyVerification
	nextID        int

	appendChatMessageFn func(context.Context, string, string, string) (store.ChatMessage, error)
	getDocPromptFn      func(context.Context, string, string) (store.DocPrompt, error)
	pingFn              func(context.Context) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         map[string]store.User{},
		cases:         map[string]store.Case{},
		sessions:      map[string]store.ChatSession{},
		messages:      map[string][]store.ChatMessage{},
		drafts:        map[string]store.Draft{},
		prompts:       map[string]store.DocPrompt{},
		oauth:         map[string]store.OAuthAccount{},
		verifications: map[string]store.AttorneyVerification{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) addUser(user store.User) store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		user.ID = f.id("user")
	}
	f.users[user.ID] = user
	return user
}

func (f *fakeStore) addPrompt(caseType, docType, text string) store.DocPrompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	prompt := store.DocPrompt{ID: f.id("prompt"), CaseType: caseType, DocType: docType, PromptText: text}
	f.prompts[prompt.ID] = prompt
	return prompt
}

func (f *fakeStore) messageCount(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[sessionID])
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return store.User{}, store.ErrDuplicate
		}
	}
	user.ID = f.id("user")
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) ListUsers(context.Context, int, int) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.User, 0, len(f.users))
	for _, user := range f.users {
		items = append(items, user)
	}
	return items, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, userID string, update store.UserUpdate) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	if update.Email != nil {
		for id, existing := range f.users {
			if id != userID && existing.Email == *update.Email {
				return store.User{}, store.ErrDuplicate
			}
		}
		user.Email = *update.Email
	}
	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.SubscriptionType != nil {
		user.SubscriptionType = update.SubscriptionType
	}
	f.users[userID] = user
	return user, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, userID)
	return nil
}

func (f *fakeStore) CreateCase(_ context.Context, item store.Case) (store.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = f.id("case")
	item.PlaintiffName = f.users[item.PlaintiffID].Name
	f.cases[item.ID] = item
	return item, nil
}

func (f *fakeStore) GetCase(_ context.Context, caseID string) (store.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[caseID]
	if !ok {
		return store.Case{}, store.ErrNotFound
	}
	return item, nil
}

func (f *fakeStore) ListCasesByPlaintiff(_ context.Context, userID string, _, _ int) ([]store.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []store.Case{}
	for _, item := range f.cases {
		if item.PlaintiffID == userID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeStore) ListCasesByAttorney(_ context.Context, attorneyID string, _, _ int) ([]store.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []store.Case{}
	for _, item := range f.cases {
		if derefString(item.AssignedAttorneyID) == attorneyID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeStore) UpdateCase(_ context.Context, caseID string, update store.CaseUpdate) (store.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[caseID]
	if !ok {
		return store.Case{}, store.ErrNotFound
	}
	if update.CaseType != nil {
		item.CaseType = *update.CaseType
	}
	if update.DefendantID != nil {
		item.DefendantID = update.DefendantID
	}
	if update.Status != nil {
		item.Status = *update.Status
	}
	f.cases[caseID] = item
	return item, nil
}

func (f *fakeStore) AssignAttorney(_ context.Context, caseID, attorneyID string) (store.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[caseID]
	if !ok {
		return store.Case{}, store.ErrNotFound
	}
	item.AssignedAttorneyID = &attorneyID
	item.AttorneyName = f.users[attorneyID].Name
	item.Status = store.CaseStatusAssigned
	f.cases[caseID] = item
	return item, nil
}

func (f *fakeStore) DeleteCase(_ context.Context, caseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cases[caseID]; !ok {
		return store.ErrNotFound
	}
	delete(f.cases, caseID)
	return nil
}

func (f *fakeStore) EnsureChatSession(_ context.Context, sessionID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; ok {
		return nil
	}
	chat := store.ChatSession{ID: sessionID, ContextData: json.RawMessage(`{}`), CreatedAt: time.Now()}
	if userID != "" {
		owner := userID
		chat.UserID = &owner
	}
	f.sessions[sessionID] = chat
	return nil
}

func (f *fakeStore) GetChatSession(_ context.Context, sessionID string) (store.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.sessions[sessionID]
	if !ok {
		return store.ChatSession{}, store.ErrNotFound
	}
	return chat, nil
}

func (f *fakeStore) AppendChatMessage(ctx context.Context, sessionID, role, content string) (store.ChatMessage, error) {
	if f.appendChatMessageFn != nil {
		return f.appendChatMessageFn(ctx, sessionID, role, content)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := store.ChatMessage{ID: int64(f.nextID), SessionID: sessionID, Role: role, Content: content, CreatedAt: time.Now()}
	f.messages[sessionID] = append(f.messages[sessionID], msg)
	return msg, nil
}

func (f *fakeStore) ListChatMessages(_ context.Context, sessionID string) ([]store.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.ChatMessage{}, f.messages[sessionID]...), nil
}

func (f *fakeStore) UpdateSessionContext(_ context.Context, sessionID string, data json.RawMessage) (store.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.sessions[sessionID]
	if !ok {
		return store.ChatSession{}, store.ErrNotFound
	}
	chat.ContextData = data
	f.sessions[sessionID] = chat
	return chat, nil
}

func (f *fakeStore) CreateDraft(_ context.Context, sessionID, title, content string) (store.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.drafts[sessionID]; ok {
		return store.Draft{}, store.ErrDuplicate
	}
	draft := store.Draft{ID: f.id("draft"), SessionID: sessionID, Title: title, Content: content, UpdatedAt: time.Now()}
	f.drafts[sessionID] = draft
	return draft, nil
}

func (f *fakeStore) GetDraft(_ context.Context, sessionID string) (store.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft, ok := f.drafts[sessionID]
	if !ok {
		return store.Draft{}, store.ErrNotFound
	}
	return draft, nil
}

func (f *fakeStore) UpdateDraftContent(_ context.Context, sessionID, content string) (store.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft, ok := f.drafts[sessionID]
	if !ok {
		return store.Draft{}, store.ErrNotFound
	}
	draft.Content = content
	draft.UpdatedAt = time.Now()
	f.drafts[sessionID] = draft
	return draft, nil
}

func (f *fakeStore) GetDocPrompt(ctx context.Context, caseType, docType string) (store.DocPrompt, error) {
	if f.getDocPromptFn != nil {
		return f.getDocPromptFn(ctx, caseType, docType)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, prompt := range f.prompts {
		if prompt.CaseType == caseType && prompt.DocType == docType {
			return prompt, nil
		}
	}
	return store.DocPrompt{}, store.ErrNotFound
}

func (f *fakeStore) GetDocPromptByID(_ context.Context, promptID string) (store.DocPrompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prompt, ok := f.prompts[promptID]
	if !ok {
		return store.DocPrompt{}, store.ErrNotFound
	}
	return prompt, nil
}

func (f *fakeStore) ListDocPrompts(context.Context, int, int) ([]store.DocPrompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.DocPrompt, 0, len(f.prompts))
	for _, prompt := range f.prompts {
		items = append(items, prompt)
	}
	return items, nil
}

func (f *fakeStore) CreateDocPrompt(_ context.Context, caseType, docType, text string) (store.DocPrompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, prompt := range f.prompts {
		if prompt.CaseType == caseType && prompt.DocType == docType {
			return store.DocPrompt{}, store.ErrDuplicate
		}
	}
	prompt := store.DocPrompt{ID: f.id("prompt"), CaseType: caseType, DocType: docType, PromptText: text}
	f.prompts[prompt.ID] = prompt
	return prompt, nil
}

func (f *fakeStore) UpdateDocPrompt(_ context.Context, promptID string, update store.DocPromptUpdate) (store.DocPrompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prompt, ok := f.prompts[promptID]
	if !ok {
		return store.DocPrompt{}, store.ErrNotFound
	}
	if update.CaseType != nil {
		prompt.CaseType = *update.CaseType
	}
	if update.DocType != nil {
		prompt.DocType = *update.DocType
	}
	if update.PromptText != nil {
		prompt.PromptText = *update.PromptText
	}
	f.prompts[promptID] = prompt
	return prompt, nil
}

func (f *fakeStore) DeleteDocPrompt(_ context.Context, promptID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.prompts[promptID]; !ok {
		return store.ErrNotFound
	}
	delete(f.prompts, promptID)
	return nil
}

func (f *fakeStore) GetOAuthAccount(_ context.Context, provider, providerUserID string) (store.OAuthAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.oauth[provider+"/"+providerUserID]
	if !ok {
		return store.OAuthAccount{}, store.ErrNotFound
	}
	return account, nil
}

func (f *fakeStore) CreateOAuthAccount(_ context.Context, account store.OAuthAccount) (store.OAuthAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := account.Provider + "/" + account.ProviderUserID
	if _, ok := f.oauth[key]; ok {
		return store.OAuthAccount{}, store.ErrDuplicate
	}
	account.ID = f.id("oauth")
	f.oauth[key] = account
	return account, nil
}

func (f *fakeStore) UpdateOAuthProviderData(_ context.Context, accountID string, data json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, account := range f.oauth {
		if account.ID == accountID {
			account.ProviderData = data
			f.oauth[key] = account
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) CreateAttorneyVerification(_ context.Context, item store.AttorneyVerification) (store.AttorneyVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.verifications {
		if existing.LicenseNumber == item.LicenseNumber || existing.UserID == item.UserID {
			return store.AttorneyVerification{}, store.ErrDuplicate
		}
	}
	item.ID = f.id("verification")
	item.VerificationStatus = store.VerificationPending
	f.verifications[item.UserID] = item
	return item, nil
}

func (f *fakeStore) GetAttorneyVerificationByUser(_ context.Context, userID string) (store.AttorneyVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.verifications[userID]
	if !ok {
		return store.AttorneyVerification{}, store.ErrNotFound
	}
	return item, nil
}

func (f *fakeStore) GetAttorneyVerificationByLicense(_ context.Context, license string) (store.AttorneyVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.verifications {
		if item.LicenseNumber == license {
			return item, nil
		}
	}
	return store.AttorneyVerification{}, store.ErrNotFound
}

func (f *fakeStore) UpdateVerificationStatus(_ context.Context, userID, status, reason string) (store.AttorneyVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.verifications[userID]
	if !ok {
		return store.AttorneyVerification{}, store.ErrNotFound
	}
	now := time.Now()
	item.VerificationStatus = status
	item.RejectionReason = reason
	item.VerificationDate = &now
	f.verifications[userID] = item
	return item, nil
}

func (f *fakeStore) ListPendingVerifications(context.Context, int, int) ([]store.AttorneyVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []store.AttorneyVerification{}
	for _, item := range f.verifications {
		if item.VerificationStatus == store.VerificationPending {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

// fakeLLM records every request and answers from replies in order.
type fakeLLM struct {
	mu       sync.Mutex
	requests []llm.Request
	replies  []string
	err      error
}

func (f *fakeLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "reply", nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeRevisions struct {
	mu       sync.Mutex
	contents map[string][]string
}

func (f *fakeRevisions) Record(sessionID, content, author, message string) (revisions.Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contents == nil {
		f.contents = map[string][]string{}
	}
	f.contents[sessionID] = append(f.contents[sessionID], content)
	hash := fmt.Sprintf("rev%d", len(f.contents[sessionID]))
	return revisions.Revision{Hash: hash, Message: message, Author: author}, nil
}

func (f *fakeRevisions) History(sessionID string, limit int) ([]revisions.Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.contents[sessionID]
	if len(items) == 0 {
		return nil, revisions.ErrNoHistory
	}
	out := []revisions.Revision{}
	for i := len(items); i > 0 && len(out) < limit; i-- {
		out = append(out, revisions.Revision{Hash: fmt.Sprintf("rev%d", i)})
	}
	return out, nil
}

func (f *fakeRevisions) ContentAt(sessionID, hash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.contents[sessionID]
	if len(items) == 0 {
		return "", revisions.ErrNoHistory
	}
	var index int
	if _, err := fmt.Sscanf(hash, "rev%d", &index); err != nil || index < 1 || index > len(items) {
		return "", revisions.ErrUnknownRevision
	}
	return items[index-1], nil
}

type fakeSearch struct {
	mu      sync.Mutex
	drafts  []search.DraftRecord
	prompts []search.PromptRecord
	deleted []string
	queries []search.Query
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (f *fakeSearch) IndexDraft(d search.DraftRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, d)
}

func (f *fakeSearch) IndexPrompt(p search.PromptRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
}

func (f *fakeSearch) DeletePrompt(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

type fakeExporter struct {
	last export.Document
}

func (f *fakeExporter) Export(_ context.Context, doc export.Document, format export.Format) (*export.Result, error) {
	f.last = doc
	return &export.Result{Data: []byte(doc.Content), Filename: "draft." + string(format), MimeType: "application/octet-stream"}, nil
}

type fakeMailer struct {
	configured bool
	decisions  []string
	receipts   []string
}

func (f *fakeMailer) IsConfigured() bool { return f.configured }

func (f *fakeMailer) SendVerificationDecision(to, _ string, approved bool, _ string) error {
	f.decisions = append(f.decisions, fmt.Sprintf("%s:%t", to, approved))
	return nil
}

func (f *fakeMailer) SendVerificationReceived(to, _, license string) error {
	f.receipts = append(f.receipts, to+":"+license)
	return nil
}

type fakeIdentity struct {
	result identity.Result
}

func (f *fakeIdentity) Verify(_ context.Context, provider, _ string) identity.Result {
	result := f.result
	result.Provider = provider
	return result
}

type testEnv struct {
	store     *fakeStore
	llm       *fakeLLM
	revisions *fakeRevisions
	search    *fakeSearch
	exporter  *fakeExporter
	mailer    *fakeMailer
	identity  *fakeIdentity
	service   *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:     newFakeStore(),
		llm:       &fakeLLM{},
		revisions: &fakeRevisions{},
		search:    &fakeSearch{},
		exporter:  &fakeExporter{},
		mailer:    &fakeMailer{},
		identity:  &fakeIdentity{},
	}
	cfg := config.Config{
		JWTSecret: "test-secret",
		AccessTTL: time.Hour,
		LLM: config.LLMConfig{
			Model:           "gpt-4o-mini",
			Temperature:     0.7,
			MaxTokens:       2048,
			RefineMaxTokens: 500,
		},
	}
	env.service = New(cfg, Deps{
		Store:     env.store,
		LLM:       env.llm,
		Locks:     session.NewMemoryLocker(),
		Revisions: env.revisions,
		Exporter:  env.exporter,
		Search:    env.search,
		Mailer:    env.mailer,
		Identity:  env.identity,
	})
	return env
}

func (e *testEnv) customer() Session {
	user := e.store.addUser(store.User{Email: "kim@example.com", Name: "김민수", UserType: store.UserTypeCustomer})
	return Session{UserID: user.ID, UserName: user.Name, Role: user.UserType}
}

func (e *testEnv) admin() Session {
	user := e.store.addUser(store.User{Email: "admin@example.com", Name: "관리자", UserType: store.UserTypeAdmin})
	return Session{UserID: user.ID, UserName: user.Name, Role: user.UserType}
}

func (e *testEnv) attorney(email string) Session {
	user := e.store.addUser(store.User{Email: email, Name: "이변호", UserType: store.UserTypeAttorney})
	return Session{UserID: user.ID, UserName: user.Name, Role: user.UserType}
}
