package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"lexdraft/api/internal/auth"
	"lexdraft/api/internal/authpw"
	"lexdraft/api/internal/blob"
	"lexdraft/api/internal/config"
	"lexdraft/api/internal/email"
	"lexdraft/api/internal/export"
	"lexdraft/api/internal/identity"
	"lexdraft/api/internal/llm"
	"lexdraft/api/internal/rbac"
	"lexdraft/api/internal/revisions"
	"lexdraft/api/internal/search"
	"lexdraft/api/internal/session"
	"lexdraft/api/internal/store"
)

// Session is the authenticated caller behind a request.
type Session struct {
	Token     string
	UserID    string
	UserName  string
	Role      string
	ExpiresAt time.Time
}

type dataStore interface {
	CreateUser(context.Context, store.User) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	ListUsers(context.Context, int, int) ([]store.User, error)
	UpdateUser(context.Context, string, store.UserUpdate) (store.User, error)
	DeleteUser(context.Context, string) error

	CreateCase(context.Context, store.Case) (store.Case, error)
	GetCase(context.Context, string) (store.Case, error)
	ListCasesByPlaintiff(context.Context, string, int, int) ([]store.Case, error)
	ListCasesByAttorney(context.Context, string, int, int) ([]store.Case, error)
	UpdateCase(context.Context, string, store.CaseUpdate) (store.Case, error)
	AssignAttorney(context.Context, string, string) (store.Case, error)
	DeleteCase(context.Context, string) error

	EnsureChatSession(context.Context, string, string) error
	GetChatSession(context.Context, string) (store.ChatSession, error)
	AppendChatMessage(context.Context, string, string, string) (store.ChatMessage, error)
	ListChatMessages(context.Context, string) ([]store.ChatMessage, error)
	UpdateSessionContext(context.Context, string, json.RawMessage) (store.ChatSession, error)

	CreateDraft(context.Context, string, string, string) (store.Draft, error)
	GetDraft(context.Context, string) (store.Draft, error)
	UpdateDraftContent(context.Context, string, string) (store.Draft, error)

	GetDocPrompt(context.Context, string, string) (store.DocPrompt, error)
	GetDocPromptByID(context.Context, string) (store.DocPrompt, error)
	ListDocPrompts(context.Context, int, int) ([]store.DocPrompt, error)
	CreateDocPrompt(context.Context, string, string, string) (store.DocPrompt, error)
	UpdateDocPrompt(context.Context, string, store.DocPromptUpdate) (store.DocPrompt, error)
	DeleteDocPrompt(context.Context, string) error

	GetOAuthAccount(context.Context, string, string) (store.OAuthAccount, error)
	CreateOAuthAccount(context.Context, store.OAuthAccount) (store.OAuthAccount, error)
	UpdateOAuthProviderData(context.Context, string, json.RawMessage) error

	CreateAttorneyVerification(context.Context, store.AttorneyVerification) (store.AttorneyVerification, error)
	GetAttorneyVerificationByUser(context.Context, string) (store.AttorneyVerification, error)
	GetAttorneyVerificationByLicense(context.Context, string) (store.AttorneyVerification, error)
	UpdateVerificationStatus(context.Context, string, string, string) (store.AttorneyVerification, error)
	ListPendingVerifications(context.Context, int, int) ([]store.AttorneyVerification, error)

	Ping(ctx context.Context) error
}

type revisionLog interface {
	Record(sessionID, content, author, message string) (revisions.Revision, error)
	History(sessionID string, limit int) ([]revisions.Revision, error)
	ContentAt(sessionID, hash string) (string, error)
}

type searchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexDraft(d search.DraftRecord)
	IndexPrompt(p search.PromptRecord)
	DeletePrompt(id string)
}

type documentExporter interface {
	Export(ctx context.Context, doc export.Document, format export.Format) (*export.Result, error)
}

type mailer interface {
	IsConfigured() bool
	SendVerificationDecision(to, userName string, approved bool, reason string) error
	SendVerificationReceived(to, userName, licenseNumber string) error
}

type identityVerifier interface {
	Verify(ctx context.Context, provider, token string) identity.Result
}

// Deps are the collaborators wired in by cmd/api.
type Deps struct {
	Store     dataStore
	LLM       llm.Generator
	Locks     session.Locker
	Revisions revisionLog
	Blobs     blob.Store
	Exporter  documentExporter
	Search    searchIndex
	Mailer    mailer
	Identity  identityVerifier
}

type Service struct {
	cfg       config.Config
	store     dataStore
	llm       llm.Generator
	locks     session.Locker
	revisions revisionLog
	blobs     blob.Store
	exporter  documentExporter
	search    searchIndex
	mailer    mailer
	identity  identityVerifier
	accounts  *authpw.Service
}

func New(cfg config.Config, deps Deps) *Service {
	locks := deps.Locks
	if locks == nil {
		locks = session.NewMemoryLocker()
	}
	exporter := deps.Exporter
	if exporter == nil {
		exporter = export.NewService()
	}
	verifier := deps.Identity
	if verifier == nil {
		verifier = identity.NewVerifier(identity.DefaultEndpoints(), nil)
	}
	mail := deps.Mailer
	if mail == nil {
		mail = email.NewService(email.Config{})
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		llm:       deps.LLM,
		locks:     locks,
		revisions: deps.Revisions,
		blobs:     deps.Blobs,
		exporter:  exporter,
		search:    deps.Search,
		mailer:    mail,
		identity:  verifier,
		accounts:  authpw.NewService(deps.Store),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) issueSession(user store.User) (Session, error) {
	claims := auth.NewClaims(user.ID, user.Name, user.UserType, s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Role:      user.UserType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SessionFromToken validates token and reloads the user so deleted accounts lose access.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, persistenceError("load session user", err)
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Role:      user.UserType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"accessToken": session.Token,
		"userId":      session.UserID,
		"userName":    session.UserName,
		"role":        session.Role,
		"expiresAt":   session.ExpiresAt.Unix(),
	}
}

func pageBounds(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
